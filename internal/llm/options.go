package llm

import "github.com/efebarandurmaz/llmfactory/internal/config"

// RequestOptions carries per-call completion overrides. A nil field falls
// back to the provider's settings value.
type RequestOptions struct {
	Model       *string
	Temperature *float64
	MaxTokens   *int
	MaxRetries  *int
}

// EmbeddingOptions carries per-call embedding overrides.
type EmbeddingOptions struct {
	Model *string
}

// MergeRequest builds the effective request parameters from the provider
// defaults and the caller's overrides, field by field.
func MergeRequest(defaults config.Defaults, opts *RequestOptions) ChatRequest {
	req := ChatRequest{
		Model:       defaults.Model,
		Temperature: defaults.Temperature,
		MaxTokens:   defaults.MaxTokens,
		MaxRetries:  defaults.MaxRetries,
	}
	if opts == nil {
		return req
	}
	if opts.Model != nil {
		req.Model = *opts.Model
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.MaxRetries != nil {
		req.MaxRetries = *opts.MaxRetries
	}
	return req
}

// EmbeddingModel returns the override model if set, else the default.
func EmbeddingModel(defaultModel string, opts *EmbeddingOptions) string {
	if opts != nil && opts.Model != nil {
		return *opts.Model
	}
	return defaultModel
}

// Ptr returns a pointer to v. It keeps override literals short.
func Ptr[T any](v T) *T { return &v }
