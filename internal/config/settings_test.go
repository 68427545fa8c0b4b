package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsFrom_Defaults(t *testing.T) {
	s, err := LoadSettingsFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", s.OpenAI.DefaultModel)
	assert.Equal(t, 0.0, s.OpenAI.Generation.Temperature)
	assert.Nil(t, s.OpenAI.Generation.MaxTokens)
	assert.Equal(t, 3, s.OpenAI.Generation.MaxRetries)

	assert.Equal(t, "deepseek-r1:8b", s.Llama.DefaultModel)
	assert.Equal(t, "claude-3-5-sonnet-20241022", s.Anthropic.DefaultModel)
	assert.Equal(t, "anthropic.claude-3-5-sonnet-20241022-v2:0", s.Bedrock.DefaultModel)
	require.NotNil(t, s.Bedrock.Generation.MaxTokens)
	assert.Equal(t, 1024, *s.Bedrock.Generation.MaxTokens)

	assert.Equal(t, "text-embedding-3-small", s.OpenAIEmbedding.DefaultModel)
	assert.Equal(t, "mxbai-embed-large:latest", s.LlamaEmbedding.DefaultModel)
	assert.Equal(t, "amazon.titan-embed-text-v2:0", s.BedrockEmbedding.DefaultModel)
	assert.Equal(t, 1024, s.BedrockEmbedding.Dimensions)
	assert.True(t, s.BedrockEmbedding.Normalize)
}

func TestLoadSettingsFrom_Environment(t *testing.T) {
	s, err := LoadSettingsFrom(map[string]string{
		"OPENAI_API_KEY":        "sk-test",
		"OPENAI_BASE_URL":       "http://proxy.local/v1",
		"OPENAI_TEMPERATURE":    "0.4",
		"OLLAMA_BASE_URL":       "http://localhost:11434/v1",
		"AWS_DEFAULT_REGION":    "us-west-2",
		"AWS_ACCESS_KEY_ID":     "AKIA",
		"BEDROCK_MAX_TOKENS":    "2048",
		"TIMESCALE_SERVICE_URL": "postgres://localhost/db",
	})
	require.NoError(t, err)

	assert.Equal(t, "sk-test", s.OpenAI.APIKey)
	assert.Equal(t, "sk-test", s.OpenAIEmbedding.APIKey)
	assert.Equal(t, "http://proxy.local/v1", s.OpenAI.BaseURL)
	assert.Equal(t, 0.4, s.OpenAI.Generation.Temperature)
	assert.Equal(t, "http://localhost:11434/v1", s.Llama.BaseURL)
	assert.Equal(t, "us-west-2", s.Bedrock.AWS.Region)
	assert.Equal(t, "AKIA", s.BedrockEmbedding.AWS.AccessKey)
	require.NotNil(t, s.Bedrock.Generation.MaxTokens)
	assert.Equal(t, 2048, *s.Bedrock.Generation.MaxTokens)
	assert.Equal(t, "postgres://localhost/db", s.Database.ServiceURL)
}

func TestSettings_Lookup(t *testing.T) {
	s, err := LoadSettingsFrom(map[string]string{})
	require.NoError(t, err)

	for _, name := range []string{"openai", "llama", "anthropic", "bedrock"} {
		ps, ok := s.Completion(name)
		assert.True(t, ok, name)
		assert.NotEmpty(t, ps.Defaults().Model, name)
	}
	for _, name := range []string{"openai", "llama", "bedrock"} {
		ps, ok := s.Embedding(name)
		assert.True(t, ok, name)
		assert.NotEmpty(t, ps.Defaults().Model, name)
	}

	_, ok := s.Completion("mistral")
	assert.False(t, ok)
	_, ok = s.Embedding("anthropic")
	assert.False(t, ok, "anthropic has no embedding settings")

	ps, _ := s.Completion("openai")
	assert.IsType(t, OpenAISettings{}, ps)
	d := ps.Defaults()
	assert.Equal(t, "gpt-4o", d.Model)
	assert.Equal(t, 0.0, d.Temperature)
	assert.Equal(t, 3, d.MaxRetries)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	body := "LLMFACTORY_DOTENV_NEW=from-file\nLLMFACTORY_DOTENV_SET=from-file\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	t.Setenv("LLMFACTORY_DOTENV_NEW", "")
	require.NoError(t, os.Unsetenv("LLMFACTORY_DOTENV_NEW"))
	t.Setenv("LLMFACTORY_DOTENV_SET", "from-env")

	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "from-file", os.Getenv("LLMFACTORY_DOTENV_NEW"))
	assert.Equal(t, "from-env", os.Getenv("LLMFACTORY_DOTENV_SET"))
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}
