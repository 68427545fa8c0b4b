package timescale

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/llmfactory/internal/vector"
)

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", VectorLiteral(nil))
	assert.Equal(t, "[0.1,-0.25,3]", VectorLiteral([]float64{0.1, -0.25, 3}))
	assert.Equal(t, "[1e-07]", VectorLiteral([]float64{1e-7}))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Options{Table: "embeddings; drop table x", Dimensions: 3})
	assert.Error(t, err)

	_, err = New(nil, Options{Table: "embeddings", Dimensions: 0})
	assert.Error(t, err)

	r, err := New(nil, Options{Table: "embeddings", Dimensions: 1024})
	require.NoError(t, err)
	assert.Equal(t, "7 days", r.opts.PartitionInterval)
	assert.Equal(t, "timescale", r.Backend())
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open("", Options{Table: "embeddings", Dimensions: 3})
	assert.Error(t, err)
}

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements(Options{Table: "embeddings", Dimensions: 1024, PartitionInterval: "7 days"})
	require.Len(t, stmts, 5)
	assert.Contains(t, stmts[2], "CREATE TABLE IF NOT EXISTS embeddings")
	assert.Contains(t, stmts[2], "VECTOR(1024)")
	assert.Contains(t, stmts[3], "INTERVAL '7 days'")
	assert.Contains(t, stmts[4], "vector_cosine_ops")
}

func TestStatements(t *testing.T) {
	up := upsertSQL("embeddings")
	assert.True(t, strings.HasPrefix(up, "INSERT INTO embeddings"))
	assert.Contains(t, up, "?::vector")
	assert.Equal(t, 5, strings.Count(up, "?"))

	search := searchSQL("embeddings")
	assert.Contains(t, search, "<=>")
	assert.Equal(t, 3, strings.Count(search, "?"))
}

func TestUpsert_RejectsWrongDimensions(t *testing.T) {
	r, err := New(nil, Options{Table: "embeddings", Dimensions: 3})
	require.NoError(t, err)

	err = r.Upsert(context.Background(), []vector.Document{{ID: "x", Vector: []float64{1, 2}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 3")
}
