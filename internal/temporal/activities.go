package temporal

import (
	"context"

	"go.temporal.io/sdk/temporal"

	"github.com/efebarandurmaz/llmfactory/internal/llm"
	"github.com/efebarandurmaz/llmfactory/internal/vector"
)

// EmbedInput is the argument of EmbedActivity.
type EmbedInput struct {
	Text     string
	Metadata map[string]string
}

// Activities carries the per-worker resources the activities use. Register
// a pointer with the worker; the workflow refers to the methods by name.
type Activities struct {
	Indexer *vector.Indexer
	Store   vector.Repository
}

// EmbedActivity embeds one text into an unsaved document.
func (a *Activities) EmbedActivity(ctx context.Context, in EmbedInput) (vector.Document, error) {
	doc, err := a.Indexer.Embed(ctx, in.Text, in.Metadata)
	if err != nil {
		return vector.Document{}, classify(err)
	}
	return doc, nil
}

// UpsertActivity writes the documents and returns the backend name.
func (a *Activities) UpsertActivity(ctx context.Context, docs []vector.Document) (string, error) {
	if err := a.Store.Upsert(ctx, docs); err != nil {
		return "", err
	}
	return a.Store.Backend(), nil
}

// classify marks failures that a retry cannot fix as non-retryable.
func classify(err error) error {
	switch stage := llm.FailureStage(err); stage {
	case llm.StageRegistry, llm.StageSettings, llm.StageConstruction, llm.StageValidation:
		return temporal.NewNonRetryableApplicationError(err.Error(), string(stage), err)
	default:
		return err
	}
}
