package llm

import "context"

// Mode selects how a transport asks the vendor for schema-shaped output.
type Mode string

const (
	// ModeJSONSchema sends the schema as a json_schema response format.
	ModeJSONSchema Mode = "json_schema"
	// ModeJSON asks for a JSON object and carries the schema in the system prompt.
	ModeJSON Mode = "json"
	// ModeTools forces a single tool call whose input schema is the response model.
	ModeTools Mode = "tools"
)

// ChatRequest is one fully merged completion request.
type ChatRequest struct {
	Model       string
	Temperature float64
	MaxTokens   *int
	MaxRetries  int
	Mode        Mode
	Response    *ResponseModel
	Messages    []Message
}

// Transport sends a single chat request to a vendor and returns the raw reply.
type Transport interface {
	Name() string
	Send(ctx context.Context, req *ChatRequest) (*Response, error)
}

// Completer fills target with a structured completion for req.
type Completer interface {
	Complete(ctx context.Context, req *ChatRequest, target any) error
}

// Embedder turns one text into one embedding vector using the named model.
type Embedder interface {
	Embed(ctx context.Context, text, model string) ([]float64, error)
}
