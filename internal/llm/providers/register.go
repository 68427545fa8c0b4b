// Package providers holds the static registration tables that map provider
// names to client constructors. Both cmd/llmfactory and cmd/worker build their
// registries here so the binaries cannot drift apart.
package providers

import (
	"fmt"

	"github.com/efebarandurmaz/llmfactory/internal/config"
	"github.com/efebarandurmaz/llmfactory/internal/llm"
	"github.com/efebarandurmaz/llmfactory/internal/llm/anthropic"
	"github.com/efebarandurmaz/llmfactory/internal/llm/bedrock"
	"github.com/efebarandurmaz/llmfactory/internal/llm/openai"
)

// DefaultBaseURLs are the endpoints used when a provider's settings carry no
// base URL.
var DefaultBaseURLs = map[string]string{
	"openai":    openai.DefaultBaseURL,
	"llama":     "http://localhost:11434/v1",
	"anthropic": "https://api.anthropic.com",
}

func settingsAs[T config.ProviderSettings](ps config.ProviderSettings) (T, error) {
	s, ok := ps.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("expected %T settings, got %T", zero, ps)
	}
	return s, nil
}

func baseURL(provider, configured string) string {
	if configured != "" {
		return configured
	}
	return DefaultBaseURLs[provider]
}

// Completion returns the completion registry: openai, anthropic, llama and bedrock.
func Completion() *llm.Registry[llm.CompletionConstructor] {
	r := llm.NewRegistry[llm.CompletionConstructor](llm.KindCompletion)

	r.Register("openai", func(ps config.ProviderSettings) (llm.Completer, error) {
		s, err := settingsAs[config.OpenAISettings](ps)
		if err != nil {
			return nil, err
		}
		c, err := openai.New(s.APIKey, baseURL("openai", s.BaseURL))
		if err != nil {
			return nil, err
		}
		return llm.NewExtractor(c, llm.ModeJSONSchema, nil), nil
	})

	r.Register("llama", func(ps config.ProviderSettings) (llm.Completer, error) {
		s, err := settingsAs[config.OllamaSettings](ps)
		if err != nil {
			return nil, err
		}
		c, err := openai.New(s.APIKey, baseURL("llama", s.BaseURL), openai.WithName("llama"))
		if err != nil {
			return nil, err
		}
		return llm.NewExtractor(c, llm.ModeJSON, nil), nil
	})

	r.Register("anthropic", func(ps config.ProviderSettings) (llm.Completer, error) {
		s, err := settingsAs[config.AnthropicSettings](ps)
		if err != nil {
			return nil, err
		}
		return llm.NewExtractor(anthropic.New(s.APIKey, s.BaseURL), llm.ModeTools, nil), nil
	})

	r.Register("bedrock", func(ps config.ProviderSettings) (llm.Completer, error) {
		s, err := settingsAs[config.BedrockSettings](ps)
		if err != nil {
			return nil, err
		}
		cfg, err := bedrock.AWSConfig(s.AWS)
		if err != nil {
			return nil, err
		}
		return llm.NewExtractor(anthropic.NewBedrock(cfg), llm.ModeTools, nil), nil
	})

	return r
}

// Embedding returns the embedding registry: openai, llama and bedrock.
func Embedding() *llm.Registry[llm.EmbeddingConstructor] {
	r := llm.NewRegistry[llm.EmbeddingConstructor](llm.KindEmbedding)

	r.Register("openai", func(ps config.ProviderSettings) (llm.Embedder, error) {
		s, err := settingsAs[config.OpenAIEmbeddingSettings](ps)
		if err != nil {
			return nil, err
		}
		c, err := openai.New(s.APIKey, baseURL("openai", s.BaseURL))
		if err != nil {
			return nil, err
		}
		return c, nil
	})

	r.Register("llama", func(ps config.ProviderSettings) (llm.Embedder, error) {
		s, err := settingsAs[config.OllamaEmbeddingSettings](ps)
		if err != nil {
			return nil, err
		}
		c, err := openai.New(s.APIKey, baseURL("llama", s.BaseURL), openai.WithName("llama"))
		if err != nil {
			return nil, err
		}
		return c, nil
	})

	r.Register("bedrock", func(ps config.ProviderSettings) (llm.Embedder, error) {
		s, err := settingsAs[config.BedrockEmbeddingSettings](ps)
		if err != nil {
			return nil, err
		}
		client, err := bedrock.NewRuntimeClient(s.AWS)
		if err != nil {
			return nil, err
		}
		e := bedrock.NewTitanEmbedder(client)
		e.Dimensions = s.Dimensions
		e.Normalize = s.Normalize
		return e, nil
	})

	return r
}
