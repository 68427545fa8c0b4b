package vector

import (
	"context"
	"time"
)

// Document is one embedded text stored in a vector backend.
type Document struct {
	ID        string
	Content   string
	Vector    []float64
	Metadata  map[string]string
	CreatedAt time.Time
}

// SearchResult is a single match from a similarity search.
type SearchResult struct {
	ID       string
	Score    float64
	Content  string
	Metadata map[string]string
}

// Repository provides vector storage and similarity search.
type Repository interface {
	// Backend names the storage engine, e.g. "qdrant".
	Backend() string
	// Upsert inserts or updates documents.
	Upsert(ctx context.Context, docs []Document) error
	// Search finds the top-k most similar documents.
	Search(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
	// Close releases resources.
	Close() error
}

// Pinger is implemented by repositories that can check their backend
// without touching data.
type Pinger interface {
	Ping(ctx context.Context) error
}
