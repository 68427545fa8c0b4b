package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/efebarandurmaz/llmfactory/internal/config"
	"github.com/efebarandurmaz/llmfactory/internal/observability"
)

// CompletionFactory issues structured completions through one provider's
// client. It is immutable after construction.
type CompletionFactory struct {
	provider string
	settings config.ProviderSettings
	client   Completer
	opts     factoryOptions
}

// NewCompletionFactory resolves the provider's settings and constructor and
// builds its client. Failures surface as *UnknownProviderError,
// *NotRegisteredError or *ClientConstructionError, in that order of checking.
func NewCompletionFactory(settings *config.Settings, registry *Registry[CompletionConstructor], provider string, opts ...FactoryOption) (*CompletionFactory, error) {
	ps, ok := settings.Completion(provider)
	if !ok {
		return nil, &UnknownProviderError{Kind: KindCompletion, Provider: provider}
	}
	ctor, err := registry.Resolve(provider)
	if err != nil {
		return nil, err
	}
	client, err := ctor(ps)
	if err != nil {
		return nil, &ClientConstructionError{Kind: KindCompletion, Provider: provider, Err: err}
	}
	return &CompletionFactory{
		provider: provider,
		settings: ps,
		client:   client,
		opts:     buildOptions(opts),
	}, nil
}

// Provider returns the provider name the factory was built for.
func (f *CompletionFactory) Provider() string { return f.provider }

// Settings returns the provider settings the factory resolved.
func (f *CompletionFactory) Settings() config.ProviderSettings { return f.settings }

// Request returns the merged request parameters for opts without sending anything.
func (f *CompletionFactory) Request(model *ResponseModel, messages []Message, opts *RequestOptions) *ChatRequest {
	req := MergeRequest(f.settings.Defaults(), opts)
	req.Response = model
	req.Messages = messages
	return &req
}

// CreateCompletion sends messages to the provider and decodes the reply,
// validated against model, into target.
func (f *CompletionFactory) CreateCompletion(ctx context.Context, model *ResponseModel, messages []Message, opts *RequestOptions, target any) error {
	req := f.Request(model, messages, opts)

	f.opts.logger.Info("using LLM",
		zap.String("provider", f.provider),
		zap.String("model", req.Model),
	)

	ctx, span := observability.StartCompletionSpan(ctx, f.provider, req.Model)
	defer span.End()

	start := time.Now()
	err := f.client.Complete(ctx, req, target)
	elapsed := time.Since(start)

	observability.RecordCompletion(span, req.Temperature, req.MaxRetries, elapsed)
	f.opts.metrics.ObserveRequest(string(KindCompletion), f.provider, req.Model, elapsed, err)
	if err != nil {
		var verr *CompletionValidationError
		if errors.As(err, &verr) {
			f.opts.metrics.ObserveValidationFailure(f.provider, req.Model)
		}
		observability.RecordError(span, err)
		f.opts.logger.Warn("completion failed",
			zap.String("provider", f.provider),
			zap.String("model", req.Model),
			zap.String("stage", string(FailureStage(err))),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// CreateCompletion infers the response model from T and returns the decoded value.
func CreateCompletion[T any](ctx context.Context, f *CompletionFactory, messages []Message, opts *RequestOptions) (*T, error) {
	model, err := ResponseModelFor[T]()
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := f.CreateCompletion(ctx, model, messages, opts, out); err != nil {
		return nil, err
	}
	return out, nil
}
