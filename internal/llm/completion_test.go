package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/efebarandurmaz/llmfactory/internal/config"
	"github.com/efebarandurmaz/llmfactory/internal/observability"
)

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	s, err := config.LoadSettingsFrom(map[string]string{})
	require.NoError(t, err)
	return s
}

func completionRegistry(tr *scriptedTransport) *Registry[CompletionConstructor] {
	r := NewRegistry[CompletionConstructor](KindCompletion)
	ctor := func(config.ProviderSettings) (Completer, error) {
		return NewExtractor(tr, ModeJSON, zap.NewNop()), nil
	}
	for _, name := range []string{"openai", "anthropic", "llama", "bedrock"} {
		r.Register(name, ctor)
	}
	return r
}

func TestNewCompletionFactory_UnknownProvider(t *testing.T) {
	called := false
	r := NewRegistry[CompletionConstructor](KindCompletion)
	r.Register("mistral", func(config.ProviderSettings) (Completer, error) {
		called = true
		return nil, nil
	})

	_, err := NewCompletionFactory(testSettings(t), r, "mistral")

	var unknown *UnknownProviderError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "mistral", unknown.Provider)
	assert.False(t, called, "constructor must not run for a provider without settings")
	assert.Equal(t, StageSettings, FailureStage(err))
}

func TestNewCompletionFactory_NotRegistered(t *testing.T) {
	r := NewRegistry[CompletionConstructor](KindCompletion)

	_, err := NewCompletionFactory(testSettings(t), r, "openai")

	var nr *NotRegisteredError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, KindCompletion, nr.Kind)
	assert.Equal(t, StageRegistry, FailureStage(err))
}

func TestNewCompletionFactory_ConstructionFailure(t *testing.T) {
	cause := errors.New("bad base url")
	r := NewRegistry[CompletionConstructor](KindCompletion)
	r.Register("openai", func(config.ProviderSettings) (Completer, error) { return nil, cause })

	_, err := NewCompletionFactory(testSettings(t), r, "openai")

	var ce *ClientConstructionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "openai", ce.Provider)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StageConstruction, FailureStage(err))
}

func TestNewCompletionFactory_PassesProviderSettings(t *testing.T) {
	var got config.ProviderSettings
	r := NewRegistry[CompletionConstructor](KindCompletion)
	r.Register("bedrock", func(ps config.ProviderSettings) (Completer, error) {
		got = ps
		return NewExtractor(&scriptedTransport{}, ModeTools, nil), nil
	})

	f, err := NewCompletionFactory(testSettings(t), r, "bedrock")
	require.NoError(t, err)

	assert.Equal(t, "bedrock", f.Provider())
	require.IsType(t, config.BedrockSettings{}, got)
	assert.Equal(t, "anthropic.claude-3-5-sonnet-20241022-v2:0", got.Defaults().Model)
}

func TestCompletionFactory_DefaultsWithoutOverrides(t *testing.T) {
	tr := &scriptedTransport{replies: []string{`{"answer":"ok","confidence":1}`}}
	f, err := NewCompletionFactory(testSettings(t), completionRegistry(tr), "openai")
	require.NoError(t, err)

	out, err := CreateCompletion[answer](context.Background(), f, []Message{UserMessage("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Answer)

	require.Len(t, tr.requests, 1)
	req := tr.requests[0]
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, 0.0, req.Temperature)
	assert.Nil(t, req.MaxTokens)
	assert.Equal(t, 3, req.MaxRetries)
}

func TestCompletionFactory_OverridesWin(t *testing.T) {
	tr := &scriptedTransport{replies: []string{`{"answer":"ok","confidence":1}`}}
	f, err := NewCompletionFactory(testSettings(t), completionRegistry(tr), "openai")
	require.NoError(t, err)

	_, err = CreateCompletion[answer](context.Background(), f, []Message{UserMessage("hi")}, &RequestOptions{Temperature: Ptr(0.7)})
	require.NoError(t, err)

	req := tr.requests[0]
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, 3, req.MaxRetries)
}

func TestCompletionFactory_AllOverridesReachTransport(t *testing.T) {
	tr := &scriptedTransport{replies: []string{"still not json"}}
	f, err := NewCompletionFactory(testSettings(t), completionRegistry(tr), "bedrock")
	require.NoError(t, err)

	opts := &RequestOptions{
		Model:       Ptr("anthropic.claude-3-haiku-20240307-v1:0"),
		Temperature: Ptr(0.4),
		MaxTokens:   Ptr(256),
		MaxRetries:  Ptr(2),
	}
	_, err = CreateCompletion[answer](context.Background(), f, []Message{UserMessage("hi")}, opts)
	var verr *CompletionValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Attempts)

	// settings would give 3 attempts, the default model, 0.0 and 1024
	require.Len(t, tr.requests, 2)
	for _, req := range tr.requests {
		assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", req.Model)
		assert.Equal(t, 0.4, req.Temperature)
		require.NotNil(t, req.MaxTokens)
		assert.Equal(t, 256, *req.MaxTokens)
		assert.Equal(t, 2, req.MaxRetries)
	}
}

func TestCompletionFactory_BedrockMaxTokensDefault(t *testing.T) {
	tr := &scriptedTransport{replies: []string{`{"answer":"ok","confidence":1}`}}
	f, err := NewCompletionFactory(testSettings(t), completionRegistry(tr), "bedrock")
	require.NoError(t, err)

	req := f.Request(nil, nil, nil)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 1024, *req.MaxTokens)
}

func TestCompletionFactory_LogsModelAndRecordsMetrics(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := observability.NewMetrics()
	tr := &scriptedTransport{replies: []string{"never json"}}

	f, err := NewCompletionFactory(testSettings(t), completionRegistry(tr), "llama", WithLogger(zap.New(core)), WithMetrics(metrics))
	require.NoError(t, err)

	_, err = CreateCompletion[answer](context.Background(), f, []Message{UserMessage("hi")}, &RequestOptions{MaxRetries: Ptr(2)})
	var verr *CompletionValidationError
	require.ErrorAs(t, err, &verr)

	using := logs.FilterMessage("using LLM").All()
	require.Len(t, using, 1)
	assert.Equal(t, "deepseek-r1:8b", using[0].ContextMap()["model"])
	assert.Equal(t, 1, logs.FilterMessage("completion failed").Len())
}
