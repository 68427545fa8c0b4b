// Package openai implements chat completions and embeddings against
// OpenAI-compatible HTTP APIs (OpenAI itself, Ollama, vLLM and similar).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/efebarandurmaz/llmfactory/internal/llm"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// APIError is a non-2xx reply from the API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d %s: %s", e.Provider, e.StatusCode, http.StatusText(e.StatusCode), strings.TrimSpace(e.Body))
}

// HTTPStatus lets llm.IsRetryable classify the error.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Client talks to one OpenAI-compatible endpoint. It implements both
// llm.Transport and llm.Embedder.
type Client struct {
	name    string
	apiKey  string
	baseURL string
	http    *http.Client
	retry   llm.RetryPolicy
}

// Option configures a Client.
type Option func(*Client)

// WithName sets the provider name used in errors and spans.
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetryPolicy sets the transport retry policy.
func WithRetryPolicy(p llm.RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// New creates a client. An empty baseURL means the public OpenAI API. The
// API key is not checked here; a missing key fails on the first call.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be an absolute http(s) URL", baseURL)
	}

	c := &Client{
		name:    "openai",
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 300 * time.Second},
		retry:   llm.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string { return c.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// buildChatRequest maps a merged request onto the wire body for req.Mode.
func buildChatRequest(req *llm.ChatRequest) (*chatRequest, error) {
	body := &chatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	messages := req.Messages
	if req.Response != nil {
		switch req.Mode {
		case llm.ModeJSONSchema:
			schema, err := req.Response.SchemaJSON()
			if err != nil {
				return nil, err
			}
			body.ResponseFormat = &responseFormat{
				Type:       "json_schema",
				JSONSchema: &jsonSchemaFormat{Name: req.Response.Name, Schema: schema},
			}
		case llm.ModeJSON:
			instructions, err := llm.SchemaInstructions(req.Response)
			if err != nil {
				return nil, err
			}
			body.ResponseFormat = &responseFormat{Type: "json_object"}
			messages = append([]llm.Message{llm.SystemMessage(instructions)}, messages...)
		default:
			return nil, fmt.Errorf("mode %q is not supported by OpenAI-compatible APIs", req.Mode)
		}
	}

	for _, m := range messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return body, nil
}

// Send implements llm.Transport.
func (c *Client) Send(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	body, err := buildChatRequest(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}

	respBody, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%s: decode completion: %w", c.name, err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("%s: completion has no choices: %w", c.name, llm.ErrMalformedResponse)
	}

	return &llm.Response{
		Content:      result.Choices[0].Message.Content,
		Model:        result.Model,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		StopReason:   result.Choices[0].FinishReason,
	}, nil
}

// Embed implements llm.Embedder. The vector is data[0].embedding of the reply.
func (c *Client) Embed(ctx context.Context, text, model string) ([]float64, error) {
	respBody, err := c.post(ctx, "/embeddings", map[string]any{
		"model": model,
		"input": []string{text},
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%s: decode embedding: %v: %w", c.name, err, llm.ErrMalformedResponse)
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%s: embedding reply has no data: %w", c.name, llm.ErrMalformedResponse)
	}
	return result.Data[0].Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	return llm.Retry(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{Provider: c.name, StatusCode: resp.StatusCode, Body: string(respBody)}
		}
		return respBody, nil
	})
}
