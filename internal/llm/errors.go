package llm

import (
	"errors"
	"fmt"
)

// Kind names the registry namespace a provider name was looked up in.
type Kind string

const (
	KindCompletion Kind = "completion"
	KindEmbedding  Kind = "embedding"
)

// ErrMalformedResponse marks vendor replies that arrived but could not be
// turned into a result. Embedding clients wrap it so the factory can tell
// response failures apart from transport failures.
var ErrMalformedResponse = errors.New("malformed response")

// NotRegisteredError is returned when a registry has no constructor for a name.
type NotRegisteredError struct {
	Kind       Kind
	Name       string
	Registered []string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("%s client %q is not registered (registered: %v)", e.Kind, e.Name, e.Registered)
}

// UnknownProviderError is returned when the settings carry no entry for a provider.
type UnknownProviderError struct {
	Kind     Kind
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("no %s settings for provider %q", e.Kind, e.Provider)
}

// ClientConstructionError wraps a failure raised by a registered constructor.
type ClientConstructionError struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *ClientConstructionError) Error() string {
	return fmt.Sprintf("construct %s client %q: %v", e.Kind, e.Provider, e.Err)
}

func (e *ClientConstructionError) Unwrap() error { return e.Err }

// CompletionValidationError is returned when no reply within the attempt
// budget conformed to the response model.
type CompletionValidationError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *CompletionValidationError) Error() string {
	return fmt.Sprintf("completion did not match %s after %d attempt(s): %v", e.Model, e.Attempts, e.Err)
}

func (e *CompletionValidationError) Unwrap() error { return e.Err }

// EmbeddingRequestError wraps a transport or credential failure during an
// embedding call.
type EmbeddingRequestError struct {
	Provider string
	Model    string
	Err      error
}

func (e *EmbeddingRequestError) Error() string {
	return fmt.Sprintf("embedding request to %s (%s): %v", e.Provider, e.Model, e.Err)
}

func (e *EmbeddingRequestError) Unwrap() error { return e.Err }

// EmbeddingResponseError wraps an empty or malformed embedding reply.
type EmbeddingResponseError struct {
	Provider string
	Model    string
	Err      error
}

func (e *EmbeddingResponseError) Error() string {
	return fmt.Sprintf("embedding response from %s (%s): %v", e.Provider, e.Model, e.Err)
}

func (e *EmbeddingResponseError) Unwrap() error { return e.Err }

// Stage names where in the factory pipeline a call failed.
type Stage string

const (
	StageNone         Stage = ""
	StageRegistry     Stage = "registry"
	StageSettings     Stage = "settings"
	StageConstruction Stage = "construction"
	StageCall         Stage = "call"
	StageValidation   Stage = "validation"
)

// FailureStage classifies err by the pipeline stage that produced it.
// Errors that carry none of the factory types are attributed to the vendor call.
func FailureStage(err error) Stage {
	if err == nil {
		return StageNone
	}
	var (
		notRegistered *NotRegisteredError
		unknown       *UnknownProviderError
		construct     *ClientConstructionError
		validation    *CompletionValidationError
		response      *EmbeddingResponseError
	)
	switch {
	case errors.As(err, &notRegistered):
		return StageRegistry
	case errors.As(err, &unknown):
		return StageSettings
	case errors.As(err, &construct):
		return StageConstruction
	case errors.As(err, &validation), errors.As(err, &response):
		return StageValidation
	default:
		return StageCall
	}
}
