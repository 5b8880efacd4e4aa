// Package pgvector provides a VectorIndex implementation backed by Postgres
// with the pgvector extension. It shares the database with the relational
// store, so a fact row and its vector live in one system.
package pgvector

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/domain/ports"
)

// Repository implements the VectorIndex interface on Postgres/pgvector.
type Repository struct {
	pool      *pgxpool.Pool
	dimension int
}

// NewRepository creates a new pgvector repository on an existing pool.
func NewRepository(pool *pgxpool.Pool, dimension int) *Repository {
	return &Repository{pool: pool, dimension: dimension}
}

// EnsureIndex creates the extension, the vectors table and the ANN index.
func (r *Repository) EnsureIndex(ctx context.Context, dimension int) error {
	if dimension != r.dimension {
		return fmt.Errorf("%w: repository configured for %d dimensions, asked for %d",
			entities.ErrDimensionMismatch, r.dimension, dimension)
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS fact_vectors (
			fact_id    UUID PRIMARY KEY,
			entry_id   BIGINT NOT NULL,
			text       TEXT NOT NULL,
			topic      TEXT NOT NULL DEFAULT '',
			fact_type  TEXT NOT NULL DEFAULT 'fact',
			snippet    TEXT NOT NULL DEFAULT '',
			embedding  vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS idx_fact_vectors_entry ON fact_vectors (entry_id)`,
		`CREATE INDEX IF NOT EXISTS idx_fact_vectors_cosine ON fact_vectors
			USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring vector schema: %w", err)
		}
	}
	return nil
}

// DropIndex drops the vectors table.
func (r *Repository) DropIndex(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DROP TABLE IF EXISTS fact_vectors`); err != nil {
		return fmt.Errorf("dropping vector table: %w", err)
	}
	return nil
}

// Insert stores a fact with its embedding.
func (r *Repository) Insert(ctx context.Context, fact entities.Fact) error {
	return r.InsertBatch(ctx, []entities.Fact{fact})
}

// InsertBatch stores multiple facts in one transaction, so readers never see
// a partial batch.
func (r *Repository) InsertBatch(ctx context.Context, facts []entities.Fact) error {
	for _, f := range facts {
		if len(f.Embedding) != r.dimension {
			return fmt.Errorf("%w: fact %s has %d dimensions, table expects %d",
				entities.ErrDimensionMismatch, f.ID, len(f.Embedding), r.dimension)
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, f := range facts {
		_, err := tx.Exec(ctx, `
			INSERT INTO fact_vectors (fact_id, entry_id, text, topic, fact_type, snippet, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (fact_id) DO UPDATE SET
				entry_id = EXCLUDED.entry_id,
				text = EXCLUDED.text,
				topic = EXCLUDED.topic,
				fact_type = EXCLUDED.fact_type,
				snippet = EXCLUDED.snippet,
				embedding = EXCLUDED.embedding,
				created_at = EXCLUDED.created_at`,
			f.ID, f.EntryID, f.Text, f.Topic, string(f.Type), f.Snippet,
			pgv.NewVector(f.Embedding), f.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting fact vector: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing vectors: %w", err)
	}
	return nil
}

// Search returns up to k facts with cosine similarity at or above threshold,
// most similar first; equal scores order by more recent created_at.
func (r *Repository) Search(ctx context.Context, vector []float32, k int, threshold float64) ([]ports.Match, error) {
	if len(vector) != r.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, table expects %d",
			entities.ErrDimensionMismatch, len(vector), r.dimension)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT fact_id, entry_id, text, topic, fact_type, snippet, created_at,
			1 - (embedding <=> $1) AS score
		FROM fact_vectors
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY score DESC, created_at DESC
		LIMIT $3`,
		pgv.NewVector(vector), threshold, k)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	defer rows.Close()

	var matches []ports.Match
	for rows.Next() {
		var (
			fact      entities.Fact
			factType  string
			createdAt time.Time
			score     float64
		)
		if err := rows.Scan(&fact.ID, &fact.EntryID, &fact.Text, &fact.Topic,
			&factType, &fact.Snippet, &createdAt, &score); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		fact.Type = entities.FactType(factType)
		fact.CreatedAt = createdAt
		matches = append(matches, ports.Match{Fact: fact, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading matches: %w", err)
	}
	return matches, nil
}

// Delete removes a fact by its ID.
func (r *Repository) Delete(ctx context.Context, factID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM fact_vectors WHERE fact_id = $1`, factID)
	if err != nil {
		return fmt.Errorf("deleting fact vector: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fact %s: %w", factID, entities.ErrNotFound)
	}
	return nil
}

// DeleteByEntry removes all facts of an entry.
func (r *Repository) DeleteByEntry(ctx context.Context, entryID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM fact_vectors WHERE entry_id = $1`, entryID); err != nil {
		return fmt.Errorf("deleting entry vectors: %w", err)
	}
	return nil
}

// Count returns the total number of facts.
func (r *Repository) Count(ctx context.Context) (uint64, error) {
	var count uint64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fact_vectors`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return count, nil
}
