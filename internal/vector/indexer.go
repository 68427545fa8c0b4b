package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/efebarandurmaz/llmfactory/internal/llm"
	"github.com/efebarandurmaz/llmfactory/internal/observability"
)

// TextEmbedder turns text into a vector. *llm.EmbeddingFactory implements it.
type TextEmbedder interface {
	CreateEmbedding(ctx context.Context, text string, opts *llm.EmbeddingOptions) ([]float64, error)
}

// Indexer embeds texts and stores them in a Repository.
type Indexer struct {
	embedder TextEmbedder
	repo     Repository
	model    *llm.EmbeddingOptions
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithEmbeddingOptions sets the per-call embedding overrides.
func WithEmbeddingOptions(opts *llm.EmbeddingOptions) IndexerOption {
	return func(ix *Indexer) { ix.model = opts }
}

// WithLogger sets the indexer's logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(ix *Indexer) { ix.logger = l }
}

// WithMetrics counts indexed documents on m.
func WithMetrics(m *observability.Metrics) IndexerOption {
	return func(ix *Indexer) { ix.metrics = m }
}

// NewIndexer creates an Indexer.
func NewIndexer(embedder TextEmbedder, repo Repository, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		embedder: embedder,
		repo:     repo,
		logger:   zap.L(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Embed builds an unsaved document for text with a fresh time-ordered id.
func (ix *Indexer) Embed(ctx context.Context, text string, metadata map[string]string) (Document, error) {
	vec, err := ix.embedder.CreateEmbedding(ctx, text, ix.model)
	if err != nil {
		return Document{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Document{}, fmt.Errorf("document id: %w", err)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	return Document{
		ID:        id.String(),
		Content:   text,
		Vector:    vec,
		Metadata:  metadata,
		CreatedAt: ix.now().UTC(),
	}, nil
}

// IndexTexts embeds each text, one call per text, and upserts the documents.
// metadata[i], when present, is attached to texts[i]. The ids of the stored
// documents are returned in input order.
func (ix *Indexer) IndexTexts(ctx context.Context, texts []string, metadata []map[string]string) ([]string, error) {
	ctx, span := observability.StartIndexSpan(ctx, ix.repo.Backend(), len(texts))
	defer span.End()

	docs := make([]Document, 0, len(texts))
	for i, text := range texts {
		var meta map[string]string
		if i < len(metadata) {
			meta = metadata[i]
		}
		doc, err := ix.Embed(ctx, text, meta)
		if err != nil {
			observability.RecordError(span, err)
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		docs = append(docs, doc)
	}

	if err := ix.repo.Upsert(ctx, docs); err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("upsert into %s: %w", ix.repo.Backend(), err)
	}
	ix.metrics.ObserveIndexed(ix.repo.Backend(), len(docs))
	ix.logger.Info("indexed documents",
		zap.String("backend", ix.repo.Backend()),
		zap.Int("count", len(docs)),
	)

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

// Search embeds query and returns the topK nearest stored documents.
func (ix *Indexer) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	vec, err := ix.embedder.CreateEmbedding(ctx, query, ix.model)
	if err != nil {
		return nil, err
	}
	return ix.repo.Search(ctx, vec, topK)
}
