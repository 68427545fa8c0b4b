package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/llmfactory/internal/config"
)

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), config.VectorConfig{Backend: "memory"}, "")
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Backend())
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.VectorConfig
		dsn  string
		want string
	}{
		{"unknown backend", config.VectorConfig{Backend: "pinecone"}, "", `unknown vector backend "pinecone"`},
		{"timescale without url", config.VectorConfig{Backend: "timescale", TableName: "embeddings", EmbeddingDimensions: 8}, "", "empty service url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.cfg, tt.dsn)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
