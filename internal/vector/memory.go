package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryRepository is an in-process Repository using brute-force cosine
// similarity. It backs tests and the CLI's dry runs.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string]Document)}
}

func (r *MemoryRepository) Backend() string { return "memory" }

func (r *MemoryRepository) Upsert(_ context.Context, docs []Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("document without id")
		}
		r.docs[d.ID] = d
	}
	return nil
}

func (r *MemoryRepository) Search(_ context.Context, vec []float64, topK int) ([]SearchResult, error) {
	if topK < 0 {
		return nil, fmt.Errorf("topK must not be negative, got %d", topK)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]SearchResult, 0, len(r.docs))
	for _, d := range r.docs {
		if len(d.Vector) != len(vec) {
			continue
		}
		results = append(results, SearchResult{
			ID:       d.ID,
			Score:    cosine(vec, d.Vector),
			Content:  d.Content,
			Metadata: d.Metadata,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Len returns the number of stored documents.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }

func (r *MemoryRepository) Close() error { return nil }

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ Repository = (*MemoryRepository)(nil)
