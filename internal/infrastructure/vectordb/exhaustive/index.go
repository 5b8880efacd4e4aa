// Package exhaustive provides an in-memory VectorIndex that scans every
// stored vector. Search cost is linear in the number of facts, which is fine
// for small corpora; it doubles as the reference implementation the database
// backends are tested against.
package exhaustive

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/domain/ports"
)

// Index implements ports.VectorIndex with a brute-force cosine scan.
type Index struct {
	mu        sync.RWMutex
	dimension int
	facts     map[string]entities.Fact
}

// NewIndex creates an empty index for vectors of the given dimension.
func NewIndex(dimension int) *Index {
	return &Index{
		dimension: dimension,
		facts:     make(map[string]entities.Fact),
	}
}

// Insert stores a fact and its vector.
func (x *Index) Insert(ctx context.Context, fact entities.Fact) error {
	return x.InsertBatch(ctx, []entities.Fact{fact})
}

// InsertBatch stores multiple facts. No fact is visible until the whole
// batch has been validated.
func (x *Index) InsertBatch(ctx context.Context, facts []entities.Fact) error {
	for _, f := range facts {
		if len(f.Embedding) != x.dimension {
			return fmt.Errorf("%w: fact %s has %d dimensions, index expects %d",
				entities.ErrDimensionMismatch, f.ID, len(f.Embedding), x.dimension)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, f := range facts {
		x.facts[f.ID] = f
	}
	return nil
}

// Search returns up to k facts with cosine similarity at or above threshold,
// most similar first; equal scores order by more recent created_at.
func (x *Index) Search(ctx context.Context, vector []float32, k int, threshold float64) ([]ports.Match, error) {
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			entities.ErrDimensionMismatch, len(vector), x.dimension)
	}

	x.mu.RLock()
	matches := make([]ports.Match, 0, len(x.facts))
	for _, f := range x.facts {
		score := cosine(vector, f.Embedding)
		if score >= threshold {
			matches = append(matches, ports.Match{Fact: f, Score: score})
		}
	}
	x.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Fact.CreatedAt.After(matches[j].Fact.CreatedAt)
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Delete removes a fact by ID.
func (x *Index) Delete(ctx context.Context, factID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.facts[factID]; !ok {
		return fmt.Errorf("fact %s: %w", factID, entities.ErrNotFound)
	}
	delete(x.facts, factID)
	return nil
}

// DeleteByEntry removes all facts of an entry.
func (x *Index) DeleteByEntry(ctx context.Context, entryID int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for id, f := range x.facts {
		if f.EntryID == entryID {
			delete(x.facts, id)
		}
	}
	return nil
}

// Count returns the number of stored facts.
func (x *Index) Count(ctx context.Context) (uint64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return uint64(len(x.facts)), nil
}

// EnsureIndex validates the configured dimension. The in-memory index needs
// no setup beyond that.
func (x *Index) EnsureIndex(ctx context.Context, dimension int) error {
	if dimension != x.dimension {
		return fmt.Errorf("%w: index built for %d dimensions, asked for %d",
			entities.ErrDimensionMismatch, x.dimension, dimension)
	}
	return nil
}

// DropIndex removes all stored facts.
func (x *Index) DropIndex(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.facts = make(map[string]entities.Fact)
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
