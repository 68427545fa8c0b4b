// Package timescale stores embeddings in a Timescale hypertable using the
// pgvector extension.
package timescale

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/efebarandurmaz/llmfactory/internal/vector"
)

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// Options describes the table layout.
type Options struct {
	Table             string
	Dimensions        int
	PartitionInterval string // Postgres interval, e.g. "7 days"
}

// Repository implements vector.Repository on Postgres with pgvector and
// TimescaleDB.
type Repository struct {
	db   *gorm.DB
	opts Options
}

// Open connects to the database at dsn.
func Open(dsn string, opts Options) (*Repository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("timescale: empty service url")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("timescale connect: %w", err)
	}
	return New(db, opts)
}

// New wraps an existing connection.
func New(db *gorm.DB, opts Options) (*Repository, error) {
	if !identPattern.MatchString(opts.Table) {
		return nil, fmt.Errorf("timescale: invalid table name %q", opts.Table)
	}
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("timescale: dimensions must be positive, got %d", opts.Dimensions)
	}
	if opts.PartitionInterval == "" {
		opts.PartitionInterval = "7 days"
	}
	return &Repository{db: db, opts: opts}, nil
}

func (r *Repository) Backend() string { return "timescale" }

func schemaStatements(o Options) []string {
	return []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		"CREATE EXTENSION IF NOT EXISTS timescaledb",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}',
	contents TEXT NOT NULL,
	embedding VECTOR(%d) NOT NULL,
	PRIMARY KEY (id, created_at)
)`, o.Table, o.Dimensions),
		fmt.Sprintf("SELECT create_hypertable('%s', 'created_at', chunk_time_interval => INTERVAL '%s', if_not_exists => TRUE)",
			o.Table, strings.ReplaceAll(o.PartitionInterval, "'", "")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)", o.Table, o.Table),
	}
}

func upsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (id, created_at, metadata, contents, embedding)
VALUES (?, ?, ?::jsonb, ?, ?::vector)
ON CONFLICT (id, created_at) DO UPDATE
SET metadata = EXCLUDED.metadata, contents = EXCLUDED.contents, embedding = EXCLUDED.embedding`, table)
}

func searchSQL(table string) string {
	return fmt.Sprintf(`SELECT id, metadata, contents, 1 - (embedding <=> ?::vector) AS score
FROM %s
ORDER BY embedding <=> ?::vector
LIMIT ?`, table)
}

// CreateTables creates the extensions, the hypertable and its ANN index.
func (r *Repository) CreateTables(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range schemaStatements(r.opts) {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("timescale schema: %w", err)
			}
		}
		return nil
	})
}

// VectorLiteral renders v in pgvector's text format.
func VectorLiteral(v []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

func (r *Repository) Upsert(ctx context.Context, docs []vector.Document) error {
	for _, d := range docs {
		if len(d.Vector) != r.opts.Dimensions {
			return fmt.Errorf("timescale: document %s has %d dimensions, table expects %d", d.ID, len(d.Vector), r.opts.Dimensions)
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stmt := upsertSQL(r.opts.Table)
		for _, d := range docs {
			meta, err := json.Marshal(d.Metadata)
			if err != nil {
				return err
			}
			created := d.CreatedAt
			if created.IsZero() {
				created = time.Now().UTC()
			}
			if err := tx.Exec(stmt, d.ID, created, string(meta), d.Content, VectorLiteral(d.Vector)).Error; err != nil {
				return fmt.Errorf("timescale upsert %s: %w", d.ID, err)
			}
		}
		return nil
	})
}

type row struct {
	ID       string
	Metadata string
	Contents string
	Score    float64
}

func (r *Repository) Search(ctx context.Context, vec []float64, topK int) ([]vector.SearchResult, error) {
	lit := VectorLiteral(vec)
	var rows []row
	if err := r.db.WithContext(ctx).Raw(searchSQL(r.opts.Table), lit, lit, topK).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("timescale search: %w", err)
	}

	results := make([]vector.SearchResult, len(rows))
	for i, rw := range rows {
		meta := map[string]string{}
		if rw.Metadata != "" {
			if err := json.Unmarshal([]byte(rw.Metadata), &meta); err != nil {
				return nil, fmt.Errorf("timescale metadata for %s: %w", rw.ID, err)
			}
		}
		results[i] = vector.SearchResult{ID: rw.ID, Score: rw.Score, Content: rw.Contents, Metadata: meta}
	}
	return results, nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ vector.Repository = (*Repository)(nil)
