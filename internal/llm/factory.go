package llm

import (
	"go.uber.org/zap"

	"github.com/efebarandurmaz/llmfactory/internal/observability"
)

type factoryOptions struct {
	logger  *zap.Logger
	metrics *observability.Metrics
}

// FactoryOption configures a CompletionFactory or EmbeddingFactory.
type FactoryOption func(*factoryOptions)

// WithLogger sets the logger used for per-call logging.
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(o *factoryOptions) { o.logger = logger }
}

// WithMetrics records call counts and latency on m.
func WithMetrics(m *observability.Metrics) FactoryOption {
	return func(o *factoryOptions) { o.metrics = m }
}

func buildOptions(opts []FactoryOption) factoryOptions {
	o := factoryOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.L()
	}
	return o
}
