package temporal

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/efebarandurmaz/llmfactory/internal/vector"
)

const maxAttempts = 3

// IndexInput holds the workflow parameters.
type IndexInput struct {
	Texts    []string
	Metadata []map[string]string
}

// IndexOutput holds the workflow result.
type IndexOutput struct {
	IDs     []string
	Backend string
}

// IndexWorkflow embeds each text in its own activity and upserts the
// resulting documents in one batch.
func IndexWorkflow(ctx workflow.Context, input IndexInput) (*IndexOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    maxAttempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var a *Activities

	futures := make([]workflow.Future, len(input.Texts))
	for i, text := range input.Texts {
		var meta map[string]string
		if i < len(input.Metadata) {
			meta = input.Metadata[i]
		}
		futures[i] = workflow.ExecuteActivity(ctx, a.EmbedActivity, EmbedInput{Text: text, Metadata: meta})
	}

	logger := workflow.GetLogger(ctx)

	// Activity errors are returned unwrapped so callers can still reach the
	// application error and its non-retryable flag.
	docs := make([]vector.Document, len(futures))
	for i, f := range futures {
		if err := f.Get(ctx, &docs[i]); err != nil {
			logger.Error("embedding failed", "index", i, "error", err)
			return nil, err
		}
	}

	var backend string
	if err := workflow.ExecuteActivity(ctx, a.UpsertActivity, docs).Get(ctx, &backend); err != nil {
		return nil, err
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	logger.Info("indexed documents", "count", len(ids), "backend", backend)
	return &IndexOutput{IDs: ids, Backend: backend}, nil
}
