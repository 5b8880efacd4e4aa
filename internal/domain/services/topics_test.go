package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/domain/mocks"
)

func seedFacts(t *testing.T, store *mocks.Store, facts []entities.Fact) {
	t.Helper()
	require.NoError(t, store.SaveFacts(context.Background(), facts))
}

func TestSuggestTopics(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewStore()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// work has more facts, health was mentioned more recently.
	seedFacts(t, store, []entities.Fact{
		{ID: "1", EntryID: 1, Topic: "work", Embedding: []float32{1}, CreatedAt: base},
		{ID: "2", EntryID: 1, Topic: "work", Embedding: []float32{1}, CreatedAt: base.Add(time.Hour)},
		{ID: "3", EntryID: 1, Topic: "work", Embedding: []float32{1}, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "4", EntryID: 2, Topic: "health", Embedding: []float32{1}, CreatedAt: base.Add(24 * time.Hour)},
		{ID: "5", EntryID: 2, Topic: "", Embedding: []float32{1}, CreatedAt: base.Add(48 * time.Hour)},
	})

	svc := NewTopicService(store)
	topics, err := svc.SuggestTopics(ctx, 10)
	require.NoError(t, err)
	require.Len(t, topics, 2)

	assert.Equal(t, "health", topics[0].Name)
	assert.Equal(t, 1, topics[0].FactCount)
	assert.Equal(t, "work", topics[1].Name)
	assert.Equal(t, 3, topics[1].FactCount)
	for _, topic := range topics {
		assert.Equal(t, entities.GroupingExplicitLabel, topic.Kind)
	}
}

func TestClusterFacts(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// Two well separated groups in embedding space.
	grouped := []entities.Fact{
		{ID: "a1", EntryID: 1, Topic: "work", Embedding: []float32{1, 0, 0}, CreatedAt: base},
		{ID: "a2", EntryID: 1, Topic: "work", Embedding: []float32{0.9, 0.1, 0}, CreatedAt: base},
		{ID: "a3", EntryID: 1, Topic: "career", Embedding: []float32{0.95, 0, 0.05}, CreatedAt: base},
		{ID: "b1", EntryID: 2, Topic: "health", Embedding: []float32{0, 0, 1}, CreatedAt: base},
		{ID: "b2", EntryID: 2, Topic: "health", Embedding: []float32{0, 0.1, 0.9}, CreatedAt: base},
	}

	t.Run("separates distinct groups", func(t *testing.T) {
		store := mocks.NewStore()
		seedFacts(t, store, grouped)
		svc := NewTopicService(store)

		clusters, err := svc.ClusterFacts(ctx, "", 2)
		require.NoError(t, err)
		require.Len(t, clusters, 2)

		sizes := map[int]int{}
		for _, c := range clusters {
			sizes[len(c.Facts)]++
			members := map[string]bool{}
			for _, f := range c.Facts {
				members[f.ID[:1]] = true
			}
			// No cluster mixes the two groups.
			assert.Len(t, members, 1)
		}
		assert.Equal(t, map[int]int{2: 1, 3: 1}, sizes)
	})

	t.Run("clamps cluster count to fact count", func(t *testing.T) {
		store := mocks.NewStore()
		seedFacts(t, store, grouped[:3])
		svc := NewTopicService(store)

		clusters, err := svc.ClusterFacts(ctx, "", 10)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(clusters), 3)

		total := 0
		for _, c := range clusters {
			total += len(c.Facts)
		}
		assert.Equal(t, 3, total)
	})

	t.Run("clamps to at least one cluster", func(t *testing.T) {
		store := mocks.NewStore()
		seedFacts(t, store, grouped)
		svc := NewTopicService(store)

		clusters, err := svc.ClusterFacts(ctx, "", 0)
		require.NoError(t, err)
		require.Len(t, clusters, 1)
		assert.Len(t, clusters[0].Facts, len(grouped))
	})

	t.Run("restricts to topic when given", func(t *testing.T) {
		store := mocks.NewStore()
		seedFacts(t, store, grouped)
		svc := NewTopicService(store)

		clusters, err := svc.ClusterFacts(ctx, "health", 1)
		require.NoError(t, err)
		require.Len(t, clusters, 1)
		assert.Len(t, clusters[0].Facts, 2)
		assert.Equal(t, []string{"health"}, clusters[0].MainTopics)
	})

	t.Run("deterministic for the same input", func(t *testing.T) {
		store := mocks.NewStore()
		seedFacts(t, store, grouped)
		svc := NewTopicService(store)

		first, err := svc.ClusterFacts(ctx, "", 2)
		require.NoError(t, err)
		second, err := svc.ClusterFacts(ctx, "", 2)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("no facts yields no clusters", func(t *testing.T) {
		svc := NewTopicService(mocks.NewStore())
		clusters, err := svc.ClusterFacts(ctx, "", 3)
		require.NoError(t, err)
		assert.Empty(t, clusters)
	})

	t.Run("main topics ranked by frequency", func(t *testing.T) {
		store := mocks.NewStore()
		seedFacts(t, store, grouped[:3])
		svc := NewTopicService(store)

		clusters, err := svc.ClusterFacts(ctx, "", 1)
		require.NoError(t, err)
		require.Len(t, clusters, 1)
		assert.Equal(t, []string{"work", "career"}, clusters[0].MainTopics)
	})
}
