// Package backend opens the vector store named in the runtime config.
package backend

import (
	"context"
	"fmt"

	"github.com/efebarandurmaz/llmfactory/internal/config"
	"github.com/efebarandurmaz/llmfactory/internal/vector"
	"github.com/efebarandurmaz/llmfactory/internal/vector/qdrant"
	"github.com/efebarandurmaz/llmfactory/internal/vector/timescale"
)

// Store is a repository that can also be pinged by health checks.
type Store interface {
	vector.Repository
	vector.Pinger
}

// Open connects to the configured backend and prepares its schema. dsn is
// only used by the timescale backend.
func Open(ctx context.Context, cfg config.VectorConfig, dsn string) (Store, error) {
	switch cfg.Backend {
	case "qdrant", "":
		repo, err := qdrant.New(cfg.Host, cfg.Port, cfg.Collection)
		if err != nil {
			return nil, err
		}
		if err := repo.EnsureCollection(ctx, cfg.EmbeddingDimensions); err != nil {
			_ = repo.Close()
			return nil, err
		}
		return repo, nil
	case "timescale":
		repo, err := timescale.Open(dsn, timescale.Options{
			Table:             cfg.TableName,
			Dimensions:        cfg.EmbeddingDimensions,
			PartitionInterval: cfg.TimePartitionInterval,
		})
		if err != nil {
			return nil, err
		}
		if err := repo.CreateTables(ctx); err != nil {
			_ = repo.Close()
			return nil, err
		}
		return repo, nil
	case "memory":
		return vector.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Backend)
	}
}
