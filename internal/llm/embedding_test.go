package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/llmfactory/internal/config"
)

// stubEmbedder returns a fixed vector or error and records the model it was asked for.
type stubEmbedder struct {
	vec   []float64
	err   error
	model string
	text  string
}

func (s *stubEmbedder) Embed(_ context.Context, text, model string) ([]float64, error) {
	s.text, s.model = text, model
	return s.vec, s.err
}

func embeddingFactory(t *testing.T, provider string, e *stubEmbedder) *EmbeddingFactory {
	t.Helper()
	r := NewRegistry[EmbeddingConstructor](KindEmbedding)
	r.Register(provider, func(config.ProviderSettings) (Embedder, error) { return e, nil })
	f, err := NewEmbeddingFactory(testSettings(t), r, provider)
	require.NoError(t, err)
	return f
}

func TestEmbeddingFactory_ExactValues(t *testing.T) {
	for _, provider := range []string{"openai", "bedrock"} {
		t.Run(provider, func(t *testing.T) {
			e := &stubEmbedder{vec: []float64{0.1, 0.2, 0.3}}
			f := embeddingFactory(t, provider, e)

			got, err := f.CreateEmbedding(context.Background(), "hello", nil)
			require.NoError(t, err)
			assert.Equal(t, []float64{0.1, 0.2, 0.3}, got)
			assert.Equal(t, "hello", e.text)
		})
	}
}

func TestEmbeddingFactory_DefaultAndOverrideModel(t *testing.T) {
	e := &stubEmbedder{vec: []float64{1}}
	f := embeddingFactory(t, "openai", e)

	_, err := f.CreateEmbedding(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", e.model)

	_, err = f.CreateEmbedding(context.Background(), "x", &EmbeddingOptions{Model: Ptr("text-embedding-3-large")})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-large", e.model)
}

func TestEmbeddingFactory_UnknownProvider(t *testing.T) {
	r := NewRegistry[EmbeddingConstructor](KindEmbedding)
	_, err := NewEmbeddingFactory(testSettings(t), r, "anthropic")

	var unknown *UnknownProviderError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, KindEmbedding, unknown.Kind)
}

func TestEmbeddingFactory_EmptyVector(t *testing.T) {
	f := embeddingFactory(t, "llama", &stubEmbedder{vec: nil})

	_, err := f.CreateEmbedding(context.Background(), "x", nil)
	var respErr *EmbeddingResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "mxbai-embed-large:latest", respErr.Model)
}

func TestEmbeddingFactory_ErrorClassification(t *testing.T) {
	t.Run("transport failure", func(t *testing.T) {
		cause := errors.New("dial tcp: connection refused")
		f := embeddingFactory(t, "openai", &stubEmbedder{err: cause})

		_, err := f.CreateEmbedding(context.Background(), "x", nil)
		var reqErr *EmbeddingRequestError
		require.ErrorAs(t, err, &reqErr)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, StageCall, FailureStage(err))
	})

	t.Run("malformed response", func(t *testing.T) {
		cause := fmt.Errorf("no data: %w", ErrMalformedResponse)
		f := embeddingFactory(t, "openai", &stubEmbedder{err: cause})

		_, err := f.CreateEmbedding(context.Background(), "x", nil)
		var respErr *EmbeddingResponseError
		require.ErrorAs(t, err, &respErr)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("already classified", func(t *testing.T) {
		orig := &EmbeddingRequestError{Provider: "custom", Err: errors.New("x")}
		f := embeddingFactory(t, "openai", &stubEmbedder{err: orig})

		_, err := f.CreateEmbedding(context.Background(), "x", nil)
		assert.Same(t, orig, err)
	})
}
