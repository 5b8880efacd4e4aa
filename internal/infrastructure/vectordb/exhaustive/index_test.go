package exhaustive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rememo/rememo/internal/domain/entities"
)

func seedIndex(t *testing.T) *Index {
	t.Helper()
	x := NewIndex(3)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, x.InsertBatch(context.Background(), []entities.Fact{
		{ID: "run", EntryID: 1, Text: "went for a run", Embedding: []float32{1, 0, 0}, CreatedAt: base},
		{ID: "praise", EntryID: 1, Text: "manager praised me", Embedding: []float32{0, 1, 0}, CreatedAt: base.Add(time.Hour)},
		{ID: "mood", EntryID: 2, Text: "felt great", Embedding: []float32{0, 0.2, 1}, CreatedAt: base.Add(2 * time.Hour)},
	}))
	return x
}

func TestInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects wrong dimension", func(t *testing.T) {
		x := NewIndex(3)
		err := x.Insert(ctx, entities.Fact{ID: "f", Embedding: []float32{1, 0}})
		assert.ErrorIs(t, err, entities.ErrDimensionMismatch)

		count, err := x.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("batch is all or nothing", func(t *testing.T) {
		x := NewIndex(2)
		err := x.InsertBatch(ctx, []entities.Fact{
			{ID: "ok", Embedding: []float32{1, 0}},
			{ID: "bad", Embedding: []float32{1}},
		})
		assert.ErrorIs(t, err, entities.ErrDimensionMismatch)

		count, err := x.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("ranks by similarity and honors threshold", func(t *testing.T) {
		x := seedIndex(t)
		matches, err := x.Search(ctx, []float32{1, 0, 0}, 10, 0.5)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "run", matches[0].Fact.ID)
		assert.GreaterOrEqual(t, matches[0].Score, 0.99)
	})

	t.Run("at most k results in non-increasing order", func(t *testing.T) {
		x := seedIndex(t)
		matches, err := x.Search(ctx, []float32{0, 1, 0.5}, 2, 0.0)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
		for _, m := range matches {
			assert.GreaterOrEqual(t, m.Score, 0.0)
		}
	})

	t.Run("equal scores order by recency", func(t *testing.T) {
		x := NewIndex(2)
		old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, x.InsertBatch(ctx, []entities.Fact{
			{ID: "old", Embedding: []float32{1, 0}, CreatedAt: old},
			{ID: "new", Embedding: []float32{1, 0}, CreatedAt: old.AddDate(0, 6, 0)},
		}))

		matches, err := x.Search(ctx, []float32{1, 0}, 2, 0.5)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "new", matches[0].Fact.ID)
		assert.Equal(t, "old", matches[1].Fact.ID)
	})

	t.Run("query dimension checked", func(t *testing.T) {
		x := seedIndex(t)
		_, err := x.Search(ctx, []float32{1, 0}, 5, 0.5)
		assert.ErrorIs(t, err, entities.ErrDimensionMismatch)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("by id", func(t *testing.T) {
		x := seedIndex(t)
		require.NoError(t, x.Delete(ctx, "run"))
		assert.ErrorIs(t, x.Delete(ctx, "run"), entities.ErrNotFound)

		matches, err := x.Search(ctx, []float32{1, 0, 0}, 10, 0.5)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("by entry", func(t *testing.T) {
		x := seedIndex(t)
		require.NoError(t, x.DeleteByEntry(ctx, 1))

		count, err := x.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), count)
	})
}

func TestIndexAdmin(t *testing.T) {
	ctx := context.Background()
	x := seedIndex(t)

	assert.NoError(t, x.EnsureIndex(ctx, 3))
	assert.ErrorIs(t, x.EnsureIndex(ctx, 1536), entities.ErrDimensionMismatch)

	require.NoError(t, x.DropIndex(ctx))
	count, err := x.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
