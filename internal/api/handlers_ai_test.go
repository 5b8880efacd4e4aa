package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rememo/rememo/internal/domain/entities"
)

// seedSearchFixture indexes three facts in a controlled semantic space and
// teaches the embedder the query.
func seedSearchFixture(t *testing.T, deps *testDeps) {
	t.Helper()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	deps.index.Facts = []entities.Fact{
		{ID: "f-run", EntryID: 1, Text: "Went for a run.", Topic: "health", Embedding: []float32{0.9, 0.1, 0}, CreatedAt: base},
		{ID: "f-praise", EntryID: 1, Text: "Got praise at work.", Topic: "work", Embedding: []float32{0, 1, 0}, CreatedAt: base.Add(time.Hour)},
		{ID: "f-great", EntryID: 1, Text: "Dinner was great.", Topic: "food", Embedding: []float32{0, 0.2, 1}, CreatedAt: base.Add(2 * time.Hour)},
	}
	deps.embedder.Vectors["exercise"] = []float32{1, 0, 0}
}

func TestSearchSimilarHandler(t *testing.T) {
	t.Run("returns ranked matches", func(t *testing.T) {
		deps := newTestDeps(t)
		seedSearchFixture(t, deps)

		status, body := deps.do(t, http.MethodPost, "/api/ai/search-similar", map[string]any{
			"query": "exercise",
		})
		require.Equal(t, http.StatusOK, status)
		results := body["results"].([]any)
		require.NotEmpty(t, results)
		top := results[0].(map[string]any)
		assert.Equal(t, "f-run", top["fact_id"])
		assert.EqualValues(t, len(results), body["count"])
	})

	t.Run("threshold filters everything", func(t *testing.T) {
		deps := newTestDeps(t)
		seedSearchFixture(t, deps)

		status, body := deps.do(t, http.MethodPost, "/api/ai/search-similar", map[string]any{
			"query":                "exercise",
			"similarity_threshold": 0.999,
		})
		require.Equal(t, http.StatusOK, status)
		assert.EqualValues(t, 0, body["count"])
	})

	t.Run("missing query", func(t *testing.T) {
		deps := newTestDeps(t)

		status, _ := deps.do(t, http.MethodPost, "/api/ai/search-similar", map[string]any{})
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("threshold out of range", func(t *testing.T) {
		deps := newTestDeps(t)

		status, _ := deps.do(t, http.MethodPost, "/api/ai/search-similar", map[string]any{
			"query":                "exercise",
			"similarity_threshold": 1.5,
		})
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("embedder outage", func(t *testing.T) {
		deps := newTestDeps(t)
		deps.embedder.Err = errors.New("connection refused")

		status, _ := deps.do(t, http.MethodPost, "/api/ai/search-similar", map[string]any{
			"query": "exercise",
		})
		require.Equal(t, http.StatusBadGateway, status)
	})

	t.Run("dimension mismatch is a config error, not an outage", func(t *testing.T) {
		deps := newTestDeps(t)
		deps.embedder.Err = entities.ErrDimensionMismatch

		status, body := deps.do(t, http.MethodPost, "/api/ai/search-similar", map[string]any{
			"query": "exercise",
		})
		require.Equal(t, http.StatusInternalServerError, status)
		assert.Contains(t, body["error"], "dimension mismatch")
	})
}

func TestGetReflectionHandler(t *testing.T) {
	t.Run("synthesizes over notes", func(t *testing.T) {
		deps := newTestDeps(t)
		seedSearchFixture(t, deps)

		status, body := deps.do(t, http.MethodPost, "/api/ai/get-reflection", map[string]any{
			"query": "exercise",
		})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "A synthesized reflection.", body["reflection"])
		assert.NotEmpty(t, body["notes"])
		assert.Equal(t, false, body["degraded"])
	})

	t.Run("no history is still a success", func(t *testing.T) {
		deps := newTestDeps(t)
		deps.embedder.Vectors["exercise"] = []float32{1, 0, 0}

		status, body := deps.do(t, http.MethodPost, "/api/ai/get-reflection", map[string]any{
			"query": "exercise",
		})
		require.Equal(t, http.StatusOK, status)
		assert.NotEmpty(t, body["reflection"])
		assert.Empty(t, body["notes"])
	})

	t.Run("synthesis failure degrades to notes", func(t *testing.T) {
		deps := newTestDeps(t)
		seedSearchFixture(t, deps)
		deps.llm.ReflectErr = errors.New("model overloaded")

		status, body := deps.do(t, http.MethodPost, "/api/ai/get-reflection", map[string]any{
			"query": "exercise",
		})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["degraded"])
		assert.Empty(t, body["reflection"])
		assert.NotEmpty(t, body["notes"])
	})

	t.Run("missing query", func(t *testing.T) {
		deps := newTestDeps(t)

		status, _ := deps.do(t, http.MethodPost, "/api/ai/get-reflection", map[string]any{})
		require.Equal(t, http.StatusBadRequest, status)
	})
}

func TestGetTopicsHandler(t *testing.T) {
	deps := newTestDeps(t)
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, deps.store.SaveFacts(context.Background(), []entities.Fact{
		{ID: "f-1", EntryID: 1, Text: "a", Topic: "work", Embedding: []float32{1}, CreatedAt: base},
		{ID: "f-2", EntryID: 1, Text: "b", Topic: "work", Embedding: []float32{1}, CreatedAt: base},
		{ID: "f-3", EntryID: 1, Text: "c", Topic: "health", Embedding: []float32{1}, CreatedAt: base.Add(time.Hour)},
	}))

	status, body := deps.do(t, http.MethodGet, "/api/ai/topics?limit=5", nil)
	require.Equal(t, http.StatusOK, status)
	topics := body["topics"].([]any)
	require.Len(t, topics, 2)
	assert.Equal(t, "health", topics[0].(map[string]any)["topic"])
}

func TestGetTopicClustersHandler(t *testing.T) {
	deps := newTestDeps(t)
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, deps.store.SaveFacts(context.Background(), []entities.Fact{
		{ID: "a-1", EntryID: 1, Text: "run", Topic: "health", Embedding: []float32{1, 0, 0}, CreatedAt: base},
		{ID: "a-2", EntryID: 1, Text: "swim", Topic: "health", Embedding: []float32{0.9, 0.1, 0}, CreatedAt: base},
		{ID: "b-1", EntryID: 1, Text: "deadline", Topic: "work", Embedding: []float32{0, 0, 1}, CreatedAt: base},
	}))

	t.Run("clusters facts", func(t *testing.T) {
		status, body := deps.do(t, http.MethodGet, "/api/ai/topic-clusters?n_clusters=2", nil)
		require.Equal(t, http.StatusOK, status)
		assert.EqualValues(t, 2, body["count"])
	})

	t.Run("empty store", func(t *testing.T) {
		fresh := newTestDeps(t)
		status, body := fresh.do(t, http.MethodGet, "/api/ai/topic-clusters", nil)
		require.Equal(t, http.StatusOK, status)
		assert.EqualValues(t, 0, body["count"])
	})
}

func TestQuickInsightsHandler(t *testing.T) {
	deps := newTestDeps(t)
	deps.llm.Insights = []string{"You wrote about work most days."}
	require.NoError(t, deps.store.SaveFacts(context.Background(), []entities.Fact{
		{ID: "f-1", EntryID: 1, Text: "Shipped it.", Topic: "work", Embedding: []float32{1}, CreatedAt: time.Now()},
	}))

	status, body := deps.do(t, http.MethodGet, "/api/ai/quick-insights?days=7", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 7, body["period_days"])
	assert.Len(t, body["insights"], 1)
}

func TestSuggestTopicsHandler(t *testing.T) {
	deps := newTestDeps(t)
	deps.llm.Topics = []string{"mentorship", "rest"}

	status, body := deps.do(t, http.MethodGet, "/api/ai/suggest-topics?limit=2", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["suggestions"], 2)
}

func TestSuggestPromptHandler(t *testing.T) {
	t.Run("grounds the prompt in topic facts", func(t *testing.T) {
		deps := newTestDeps(t)
		deps.llm.Prompt = "What did finishing the 10k teach you?"
		require.NoError(t, deps.store.SaveFacts(context.Background(), []entities.Fact{
			{ID: "f-1", EntryID: 1, Text: "Ran my first 10k.", Topic: "health", Embedding: []float32{1}, CreatedAt: time.Now()},
		}))

		status, body := deps.do(t, http.MethodPost, "/api/ai/suggest-prompt", map[string]any{
			"topic": "health",
		})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "health", body["topic"])
		assert.Equal(t, "What did finishing the 10k teach you?", body["prompt"])
		assert.EqualValues(t, 1, body["related_facts_count"])
	})

	t.Run("generation failure still yields a prompt", func(t *testing.T) {
		deps := newTestDeps(t)
		deps.llm.PromptErr = errors.New("model overloaded")

		status, body := deps.do(t, http.MethodPost, "/api/ai/suggest-prompt", map[string]any{
			"topic": "travel",
		})
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, body["prompt"], "travel")
	})

	t.Run("missing topic", func(t *testing.T) {
		deps := newTestDeps(t)

		status, _ := deps.do(t, http.MethodPost, "/api/ai/suggest-prompt", map[string]any{})
		require.Equal(t, http.StatusBadRequest, status)
	})
}

func TestAnalyzePatternsHandler(t *testing.T) {
	deps := newTestDeps(t)
	require.NoError(t, deps.store.SaveFacts(context.Background(), []entities.Fact{
		{ID: "f-1", EntryID: 1, Text: "a", Topic: "work", Type: entities.FactTypeEvent, Embedding: []float32{1}, CreatedAt: time.Now()},
		{ID: "f-2", EntryID: 1, Text: "b", Topic: "work", Type: entities.FactTypeEmotion, Embedding: []float32{1}, CreatedAt: time.Now()},
		{ID: "f-3", EntryID: 1, Text: "c", Topic: "health", Type: entities.FactTypeEvent, Embedding: []float32{1}, CreatedAt: time.Now()},
	}))

	status, body := deps.do(t, http.MethodGet, "/api/ai/analyze-patterns?days=7", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 7, body["analysis_period_days"])
	assert.EqualValues(t, 3, body["total_facts"])

	topTopics := body["top_topics"].([]any)
	require.Len(t, topTopics, 2)
	assert.Equal(t, "work", topTopics[0].(map[string]any)["topic"])

	types := body["fact_type_distribution"].(map[string]any)
	assert.EqualValues(t, 2, types["event"])
	assert.NotEmpty(t, body["most_active_day"])
}
