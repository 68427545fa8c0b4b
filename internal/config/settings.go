package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/spf13/viper"
)

// Generation holds the sampling parameters a completion provider applies
// when the caller does not override them.
type Generation struct {
	Temperature float64 `env:"TEMPERATURE" envDefault:"0.0"`
	MaxTokens   *int    `env:"MAX_TOKENS"`
	MaxRetries  int     `env:"MAX_RETRIES" envDefault:"3"`
}

// Defaults is the provider-independent view of a settings variant.
type Defaults struct {
	Model       string
	Temperature float64
	MaxTokens   *int
	MaxRetries  int
}

// ProviderSettings is implemented by the per-provider settings variants in
// this package only.
type ProviderSettings interface {
	Defaults() Defaults
	isProviderSettings()
}

// AWSCredentials are shared by every Bedrock-backed variant. All fields are
// optional; the AWS call fails if they turn out to be needed.
type AWSCredentials struct {
	AccessKey    string `env:"AWS_ACCESS_KEY_ID"`
	SecretKey    string `env:"AWS_SECRET_ACCESS_KEY"`
	SessionToken string `env:"AWS_SESSION_TOKEN"`
	Region       string `env:"AWS_DEFAULT_REGION"`
}

// OpenAISettings configures the OpenAI chat completion client.
type OpenAISettings struct {
	APIKey       string     `env:"OPENAI_API_KEY"`
	BaseURL      string     `env:"OPENAI_BASE_URL"`
	DefaultModel string     `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	Generation   Generation `envPrefix:"OPENAI_"`
}

// OllamaSettings configures the OpenAI-compatible client pointed at Ollama.
type OllamaSettings struct {
	APIKey       string     `env:"OLLAMA_API_KEY"`
	BaseURL      string     `env:"OLLAMA_BASE_URL"`
	DefaultModel string     `env:"OLLAMA_MODEL" envDefault:"deepseek-r1:8b"`
	Generation   Generation `envPrefix:"OLLAMA_"`
}

// AnthropicSettings configures the Anthropic Messages client.
type AnthropicSettings struct {
	APIKey       string     `env:"ANTHROPIC_API_KEY"`
	BaseURL      string     `env:"ANTHROPIC_BASE_URL"`
	DefaultModel string     `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
	Generation   Generation `envPrefix:"ANTHROPIC_"`
}

// BedrockSettings configures Anthropic models served through AWS Bedrock.
type BedrockSettings struct {
	AWS          AWSCredentials
	DefaultModel string     `env:"BEDROCK_MODEL" envDefault:"anthropic.claude-3-5-sonnet-20241022-v2:0"`
	Generation   Generation `envPrefix:"BEDROCK_"`
}

// OpenAIEmbeddingSettings configures the OpenAI embeddings client.
type OpenAIEmbeddingSettings struct {
	APIKey       string `env:"OPENAI_API_KEY"`
	BaseURL      string `env:"OPENAI_BASE_URL"`
	DefaultModel string `env:"OPENAI_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
}

// OllamaEmbeddingSettings configures embeddings served by Ollama.
type OllamaEmbeddingSettings struct {
	APIKey       string `env:"OLLAMA_API_KEY"`
	BaseURL      string `env:"OLLAMA_BASE_URL"`
	DefaultModel string `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"mxbai-embed-large:latest"`
}

// BedrockEmbeddingSettings configures the Titan embedding adapter.
type BedrockEmbeddingSettings struct {
	AWS          AWSCredentials
	DefaultModel string `env:"BEDROCK_EMBEDDING_MODEL" envDefault:"amazon.titan-embed-text-v2:0"`
	Dimensions   int    `env:"BEDROCK_EMBEDDING_DIMENSIONS" envDefault:"1024"`
	Normalize    bool   `env:"BEDROCK_EMBEDDING_NORMALIZE" envDefault:"true"`
}

func (s OpenAISettings) Defaults() Defaults    { return s.Generation.defaults(s.DefaultModel) }
func (s OllamaSettings) Defaults() Defaults    { return s.Generation.defaults(s.DefaultModel) }
func (s AnthropicSettings) Defaults() Defaults { return s.Generation.defaults(s.DefaultModel) }
func (s BedrockSettings) Defaults() Defaults   { return s.Generation.defaults(s.DefaultModel) }

func (s OpenAIEmbeddingSettings) Defaults() Defaults  { return Defaults{Model: s.DefaultModel} }
func (s OllamaEmbeddingSettings) Defaults() Defaults  { return Defaults{Model: s.DefaultModel} }
func (s BedrockEmbeddingSettings) Defaults() Defaults { return Defaults{Model: s.DefaultModel} }

func (OpenAISettings) isProviderSettings()           {}
func (OllamaSettings) isProviderSettings()           {}
func (AnthropicSettings) isProviderSettings()        {}
func (BedrockSettings) isProviderSettings()          {}
func (OpenAIEmbeddingSettings) isProviderSettings()  {}
func (OllamaEmbeddingSettings) isProviderSettings()  {}
func (BedrockEmbeddingSettings) isProviderSettings() {}

func (g Generation) defaults(model string) Defaults {
	return Defaults{
		Model:       model,
		Temperature: g.Temperature,
		MaxTokens:   g.MaxTokens,
		MaxRetries:  g.MaxRetries,
	}
}

// DatabaseSettings locates the Timescale/pgvector database.
type DatabaseSettings struct {
	ServiceURL string `env:"TIMESCALE_SERVICE_URL"`
}

// Settings is the process-wide provider configuration. Build it once with
// LoadSettings and pass it to the factories; it is never mutated afterwards.
type Settings struct {
	OpenAI    OpenAISettings
	Llama     OllamaSettings
	Anthropic AnthropicSettings
	Bedrock   BedrockSettings

	OpenAIEmbedding  OpenAIEmbeddingSettings
	LlamaEmbedding   OllamaEmbeddingSettings
	BedrockEmbedding BedrockEmbeddingSettings

	Database DatabaseSettings
}

const bedrockMaxTokens = 1024

// LoadSettings reads provider settings from the process environment.
func LoadSettings() (*Settings, error) {
	return loadSettings(env.Options{})
}

// LoadSettingsFrom reads provider settings from the given variables only.
func LoadSettingsFrom(environ map[string]string) (*Settings, error) {
	return loadSettings(env.Options{Environment: environ})
}

func loadSettings(opts env.Options) (*Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, opts); err != nil {
		return nil, fmt.Errorf("parsing provider settings: %w", err)
	}
	if s.Bedrock.Generation.MaxTokens == nil {
		n := bedrockMaxTokens
		s.Bedrock.Generation.MaxTokens = &n
	}
	return &s, nil
}

// Completion returns the completion settings for a provider name.
func (s *Settings) Completion(provider string) (ProviderSettings, bool) {
	switch provider {
	case "openai":
		return s.OpenAI, true
	case "llama":
		return s.Llama, true
	case "anthropic":
		return s.Anthropic, true
	case "bedrock":
		return s.Bedrock, true
	}
	return nil, false
}

// Embedding returns the embedding settings for a provider name.
func (s *Settings) Embedding(provider string) (ProviderSettings, bool) {
	switch provider {
	case "openai":
		return s.OpenAIEmbedding, true
	case "llama":
		return s.LlamaEmbedding, true
	case "bedrock":
		return s.BedrockEmbedding, true
	}
	return nil, false
}

// LoadDotEnv copies KEY=VALUE pairs from a dotenv file into the process
// environment. Variables that are already set keep their value. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return fmt.Errorf("setting %s: %w", name, err)
		}
	}
	return nil
}
