package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/llmfactory/internal/llm"
)

type verdict struct {
	Verdict string `json:"verdict"`
}

func fastRetry() Option {
	return WithRetryPolicy(llm.RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New("sk-test", srv.URL+"/v1", fastRetry())
	require.NoError(t, err)
	return c
}

func TestNew_BaseURL(t *testing.T) {
	c, err := New("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, "openai", c.Name())

	c, err = New("", "http://localhost:11434/v1/", WithName("llama"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/v1", c.baseURL)
	assert.Equal(t, "llama", c.Name())

	_, err = New("", "localhost:11434")
	assert.Error(t, err)
	_, err = New("", "://bad")
	assert.Error(t, err)
}

func TestSend_JSONSchemaMode(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"model":"gpt-4o","choices":[{"message":{"content":"{\"verdict\":\"ok\"}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":3}}`))
	})

	m, err := llm.ResponseModelFor[verdict]()
	require.NoError(t, err)

	resp, err := c.Send(context.Background(), &llm.ChatRequest{
		Model:       "gpt-4o",
		Temperature: 0.2,
		Mode:        llm.ModeJSONSchema,
		Response:    m,
		Messages:    []llm.Message{llm.UserMessage("judge this")},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"verdict":"ok"}`, resp.Content)
	assert.Equal(t, 7, resp.InputTokens)
	assert.Equal(t, 3, resp.OutputTokens)
	assert.Equal(t, "stop", resp.StopReason)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.Equal(t, 0.2, got["temperature"])
	assert.NotContains(t, got, "max_tokens")
	format := got["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	schema := format["json_schema"].(map[string]any)
	assert.Equal(t, "verdict", schema["name"])
	assert.Contains(t, schema["schema"].(map[string]any)["properties"], "verdict")
}

func TestSend_JSONModePrependsSchemaPrompt(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	})

	m, _ := llm.ResponseModelFor[verdict]()
	_, err := c.Send(context.Background(), &llm.ChatRequest{
		Model:     "deepseek-r1:8b",
		MaxTokens: llm.Ptr(512),
		Mode:      llm.ModeJSON,
		Response:  m,
		Messages:  []llm.Message{llm.UserMessage("hi")},
	})
	require.NoError(t, err)

	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, `"verdict"`)
	require.NotNil(t, got.MaxTokens)
	assert.Equal(t, 512, *got.MaxTokens)
}

func TestSend_ToolsModeUnsupported(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	m, _ := llm.ResponseModelFor[verdict]()
	_, err := c.Send(context.Background(), &llm.ChatRequest{Mode: llm.ModeTools, Response: m})
	assert.Error(t, err)
}

func TestSend_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"done"}}]}`))
	})

	resp, err := c.Send(context.Background(), &llm.ChatRequest{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.EqualValues(t, 3, calls.Load())
}

func TestSend_DoesNotRetryAuthErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	})

	_, err := c.Send(context.Background(), &llm.ChatRequest{Model: "gpt-4o"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.EqualValues(t, 1, calls.Load())
}

func TestEmbed_ReturnsFirstVector(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}],"model":"text-embedding-3-small"}`))
	})

	vec, err := c.Embed(context.Background(), "hello", "text-embedding-3-small")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "text-embedding-3-small", got["model"])
	assert.Equal(t, []any{"hello"}, got["input"])
}

func TestEmbed_MalformedReplies(t *testing.T) {
	for name, body := range map[string]string{
		"empty data":  `{"data":[]}`,
		"not json":    `<html>`,
		"empty array": `{"data":[{"embedding":[]}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := c.Embed(context.Background(), "x", "m")
			assert.ErrorIs(t, err, llm.ErrMalformedResponse)
		})
	}
}
