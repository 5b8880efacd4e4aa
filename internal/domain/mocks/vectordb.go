package mocks

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/domain/ports"
)

// VectorIndex is a mock implementation of ports.VectorIndex. It performs a
// real cosine scan over the stored facts so tests exercise thresholds and
// ordering without a running database.
type VectorIndex struct {
	Facts []entities.Fact
	Err   error
	// InsertErr fails only insert operations, leaving reads and deletes
	// working so rollback paths can be exercised.
	InsertErr error

	// Call tracking
	InsertBatchCallCount int
	InsertBatchLastFacts []entities.Fact
	DeleteCallCount      int
	DeleteByEntryCount   int
}

// Insert stores a single fact.
func (m *VectorIndex) Insert(ctx context.Context, fact entities.Fact) error {
	if m.Err != nil {
		return m.Err
	}
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.Facts = append(m.Facts, fact)
	return nil
}

// InsertBatch stores multiple facts.
func (m *VectorIndex) InsertBatch(ctx context.Context, facts []entities.Fact) error {
	m.InsertBatchCallCount++
	m.InsertBatchLastFacts = facts
	if m.Err != nil {
		return m.Err
	}
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.Facts = append(m.Facts, facts...)
	return nil
}

// Search scans the stored facts by cosine similarity.
func (m *VectorIndex) Search(ctx context.Context, vector []float32, k int, threshold float64) ([]ports.Match, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var matches []ports.Match
	for i := range m.Facts {
		score := Cosine(vector, m.Facts[i].Embedding)
		if score >= threshold {
			matches = append(matches, ports.Match{Fact: m.Facts[i], Score: score})
		}
	}
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
func (m *VectorIndex) Delete(ctx context.Context, factID string) error {
	m.DeleteCallCount++
	if m.Err != nil {
		return m.Err
	}
	for i := range m.Facts {
		if m.Facts[i].ID == factID {
			m.Facts = append(m.Facts[:i], m.Facts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("fact %s: %w", factID, entities.ErrNotFound)
}

// DeleteByEntry removes all facts of an entry.
func (m *VectorIndex) DeleteByEntry(ctx context.Context, entryID int64) error {
	m.DeleteByEntryCount++
	if m.Err != nil {
		return m.Err
	}
	kept := m.Facts[:0]
	for i := range m.Facts {
		if m.Facts[i].EntryID != entryID {
			kept = append(kept, m.Facts[i])
		}
	}
	m.Facts = kept
	return nil
}

// Count returns the number of stored facts.
func (m *VectorIndex) Count(ctx context.Context) (uint64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return uint64(len(m.Facts)), nil
}

// Cosine computes cosine similarity between two vectors. Exposed for tests
// that assert on expected scores.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
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
