package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/efebarandurmaz/llmfactory/internal/config"
	"github.com/efebarandurmaz/llmfactory/internal/observability"
)

// EmbeddingFactory issues embedding calls through one provider's client.
type EmbeddingFactory struct {
	provider string
	settings config.ProviderSettings
	client   Embedder
	opts     factoryOptions
}

// NewEmbeddingFactory mirrors NewCompletionFactory for the embedding namespace.
func NewEmbeddingFactory(settings *config.Settings, registry *Registry[EmbeddingConstructor], provider string, opts ...FactoryOption) (*EmbeddingFactory, error) {
	ps, ok := settings.Embedding(provider)
	if !ok {
		return nil, &UnknownProviderError{Kind: KindEmbedding, Provider: provider}
	}
	ctor, err := registry.Resolve(provider)
	if err != nil {
		return nil, err
	}
	client, err := ctor(ps)
	if err != nil {
		return nil, &ClientConstructionError{Kind: KindEmbedding, Provider: provider, Err: err}
	}
	return &EmbeddingFactory{
		provider: provider,
		settings: ps,
		client:   client,
		opts:     buildOptions(opts),
	}, nil
}

// Provider returns the provider name the factory was built for.
func (f *EmbeddingFactory) Provider() string { return f.provider }

// Model returns the model a call with opts would use.
func (f *EmbeddingFactory) Model(opts *EmbeddingOptions) string {
	return EmbeddingModel(f.settings.Defaults().Model, opts)
}

// CreateEmbedding returns the embedding vector for text. Values are passed
// through exactly as the provider returned them.
func (f *EmbeddingFactory) CreateEmbedding(ctx context.Context, text string, opts *EmbeddingOptions) ([]float64, error) {
	model := f.Model(opts)

	ctx, span := observability.StartEmbeddingSpan(ctx, f.provider, model)
	defer span.End()

	start := time.Now()
	vec, err := f.client.Embed(ctx, text, model)
	elapsed := time.Since(start)

	if err == nil && len(vec) == 0 {
		err = &EmbeddingResponseError{Provider: f.provider, Model: model, Err: ErrMalformedResponse}
	} else if err != nil {
		err = f.classify(model, err)
	}

	f.opts.metrics.ObserveRequest(string(KindEmbedding), f.provider, model, elapsed, err)
	if err != nil {
		observability.RecordError(span, err)
		f.opts.logger.Warn("embedding failed",
			zap.String("provider", f.provider),
			zap.String("model", model),
			zap.Error(err),
		)
		return nil, err
	}

	observability.RecordEmbedding(span, len(vec), elapsed)
	return vec, nil
}

func (f *EmbeddingFactory) classify(model string, err error) error {
	var (
		reqErr  *EmbeddingRequestError
		respErr *EmbeddingResponseError
	)
	if errors.As(err, &reqErr) || errors.As(err, &respErr) {
		return err
	}
	if errors.Is(err, ErrMalformedResponse) {
		return &EmbeddingResponseError{Provider: f.provider, Model: model, Err: err}
	}
	return &EmbeddingRequestError{Provider: f.provider, Model: model, Err: err}
}
