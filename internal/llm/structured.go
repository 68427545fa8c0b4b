package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"
)

// ResponseModel describes the structured result a completion must conform to.
type ResponseModel struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema

	resolved *jsonschema.Resolved
}

// NewResponseModel resolves schema so replies can be validated against it.
func NewResponseModel(name string, schema *jsonschema.Schema) (*ResponseModel, error) {
	if schema == nil {
		return nil, fmt.Errorf("response model %q: nil schema", name)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("response model %q: resolve schema: %w", name, err)
	}
	return &ResponseModel{
		Name:        name,
		Description: schema.Description,
		Schema:      schema,
		resolved:    resolved,
	}, nil
}

// ResponseModelFor infers a response model from the Go type T.
func ResponseModelFor[T any]() (*ResponseModel, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("infer schema: %w", err)
	}
	name := reflect.TypeFor[T]().Name()
	if name == "" {
		name = "Response"
	}
	return NewResponseModel(name, schema)
}

// SchemaJSON returns the JSON encoding of the response schema.
func (m *ResponseModel) SchemaJSON() (json.RawMessage, error) {
	return json.Marshal(m.Schema)
}

// Decode validates data against the schema and stores it in target, which
// must be a non-nil pointer. If the decoded type has a Validate() error method
// it runs last. target is only written when every check passes.
func (m *ResponseModel) Decode(data []byte, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", target)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("reply is not valid JSON: %w", err)
	}
	if err := m.resolved.Validate(instance); err != nil {
		return fmt.Errorf("reply does not match schema: %w", err)
	}

	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	if v, ok := fresh.Interface().(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

// SchemaInstructions is the system prompt used when the vendor has no native
// structured-output switch.
func SchemaInstructions(m *ResponseModel) (string, error) {
	schema, err := json.MarshalIndent(m.Schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}
	return fmt.Sprintf("Understand the content and reply with a single JSON object that conforms to this JSON schema:\n\n%s\n\n"+
		"Return an instance of the schema, not the schema itself. Do not add any text outside the JSON object.", schema), nil
}

// Extractor turns a Transport into a Completer: it sends the request in the
// configured mode, validates the reply, and re-asks with the validation error
// until the attempt budget is spent.
type Extractor struct {
	transport Transport
	mode      Mode
	logger    *zap.Logger
}

// NewExtractor wraps transport. A nil logger falls back to zap.L().
func NewExtractor(transport Transport, mode Mode, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.L()
	}
	return &Extractor{transport: transport, mode: mode, logger: logger}
}

// Name returns the underlying transport name.
func (x *Extractor) Name() string { return x.transport.Name() }

// Mode returns the structured-output mode used on the wire.
func (x *Extractor) Mode() Mode { return x.mode }

// Complete implements Completer. MaxRetries is the total attempt budget, with
// a floor of one attempt. Transport errors are returned as they are.
func (x *Extractor) Complete(ctx context.Context, req *ChatRequest, target any) error {
	if req.Response == nil {
		return fmt.Errorf("%s: completion requires a response model", x.transport.Name())
	}

	attempts := req.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	call := *req
	call.Mode = x.mode
	call.Messages = append([]Message(nil), req.Messages...)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := x.transport.Send(ctx, &call)
		if err != nil {
			return err
		}

		err = req.Response.Decode([]byte(ExtractJSON(resp.Content)), target)
		if err == nil {
			return nil
		}
		lastErr = err
		x.logger.Debug("completion failed validation",
			zap.String("provider", x.transport.Name()),
			zap.String("model", call.Model),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		call.Messages = append(call.Messages,
			AssistantMessage(resp.Content),
			UserMessage(fmt.Sprintf("Your reply failed validation: %v\nFix the errors and reply again with only the corrected JSON.", err)),
		)
	}

	return &CompletionValidationError{Model: req.Response.Name, Attempts: attempts, Err: lastErr}
}
