package ports

import (
	"context"

	"github.com/rememo/rememo/internal/domain/entities"
)

// Match is a single search hit: a fact and its cosine similarity to the
// query vector.
type Match struct {
	Fact  entities.Fact `json:"fact"`
	Score float64       `json:"score"`
}

// VectorIndex defines the interface for vector similarity operations over
// fact embeddings. All implementations share one fixed vector dimension;
// inserting a vector of any other length fails with ErrDimensionMismatch.
type VectorIndex interface {
	// Insert stores a fact and its embedding.
	Insert(ctx context.Context, fact entities.Fact) error

	// InsertBatch stores multiple facts. Either all facts of the batch are
	// visible to readers or none are.
	InsertBatch(ctx context.Context, facts []entities.Fact) error

	// Search returns at most k facts whose cosine similarity to the query
	// vector is >= threshold, ordered by descending similarity. Equal scores
	// are ordered by more recent CreatedAt first.
	Search(ctx context.Context, vector []float32, k int, threshold float64) ([]Match, error)

	// Delete removes a fact's vector by fact ID.
	Delete(ctx context.Context, factID string) error

	// DeleteByEntry removes all vectors belonging to an entry. Used when a
	// journal entry is deleted.
	DeleteByEntry(ctx context.Context, entryID int64) error

	// Count returns the number of indexed facts.
	Count(ctx context.Context) (uint64, error)
}
