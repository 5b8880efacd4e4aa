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

func TestQuickInsights(t *testing.T) {
	ctx := context.Background()

	t.Run("summarizes facts in the window", func(t *testing.T) {
		store := mocks.NewStore()
		seedFacts(t, store, []entities.Fact{
			{ID: "1", EntryID: 1, Text: "Slept badly.", Topic: "sleep", Embedding: []float32{1}, CreatedAt: time.Now().UTC().Add(-24 * time.Hour)},
			{ID: "2", EntryID: 1, Text: "Skipped the gym.", Topic: "health", Embedding: []float32{1}, CreatedAt: time.Now().UTC().Add(-48 * time.Hour)},
		})
		llm := &mocks.LLMClient{Insights: []string{"Sleep has been rough this week."}}
		svc := NewInsightsService(store, llm)

		insights, err := svc.QuickInsights(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, []string{"Sleep has been rough this week."}, insights)
	})

	t.Run("no recent facts yields no insights", func(t *testing.T) {
		store := mocks.NewStore()
		seedFacts(t, store, []entities.Fact{
			{ID: "1", EntryID: 1, Text: "Ancient history.", Embedding: []float32{1}, CreatedAt: time.Now().UTC().Add(-90 * 24 * time.Hour)},
		})
		llm := &mocks.LLMClient{Insights: []string{"should not be called"}}
		svc := NewInsightsService(store, llm)

		insights, err := svc.QuickInsights(ctx, 7)
		require.NoError(t, err)
		assert.Empty(t, insights)
	})
}

func TestSuggestWritingTopics(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewStore()
	seedFacts(t, store, []entities.Fact{
		{ID: "1", EntryID: 1, Topic: "work", Embedding: []float32{1}, CreatedAt: time.Now().UTC()},
	})
	llm := &mocks.LLMClient{Topics: []string{"work-life balance", "gratitude", "sleep habits"}}
	svc := NewInsightsService(store, llm)

	topics, err := svc.SuggestWritingTopics(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"work-life balance", "gratitude"}, topics)
}

func TestWritingPrompt(t *testing.T) {
	ctx := context.Background()

	t.Run("grounds the prompt in topic facts", func(t *testing.T) {
		store := mocks.NewStore()
		seedFacts(t, store, []entities.Fact{
			{ID: "1", EntryID: 1, Text: "Ran my first 10k.", Topic: "health", Embedding: []float32{1}, CreatedAt: time.Now().UTC()},
			{ID: "2", EntryID: 1, Text: "Crunch week at the office.", Topic: "work", Embedding: []float32{1}, CreatedAt: time.Now().UTC()},
		})
		llm := &mocks.LLMClient{Prompt: "What did finishing the 10k teach you about persistence?"}
		svc := NewInsightsService(store, llm)

		prompt, related, err := svc.WritingPrompt(ctx, "health")
		require.NoError(t, err)
		assert.Equal(t, "What did finishing the 10k teach you about persistence?", prompt)
		assert.Equal(t, 1, related)
		assert.Equal(t, "health", llm.WritingPromptTopic)
		require.Len(t, llm.WritingPromptFacts, 1)
		assert.Equal(t, "Ran my first 10k.", llm.WritingPromptFacts[0].Text)
	})

	t.Run("falls back to a generic prompt when generation fails", func(t *testing.T) {
		store := mocks.NewStore()
		llm := &mocks.LLMClient{PromptErr: entities.ErrDimensionMismatch}
		svc := NewInsightsService(store, llm)

		prompt, related, err := svc.WritingPrompt(ctx, "travel")
		require.NoError(t, err)
		assert.Equal(t, "Write about your recent experiences with travel. What have you learned?", prompt)
		assert.Zero(t, related)
	})
}

func TestAnalyzePatterns(t *testing.T) {
	ctx := context.Background()

	t.Run("aggregates topics, types and daily activity", func(t *testing.T) {
		store := mocks.NewStore()
		// Anchor facts to midday so hour offsets never cross a date line.
		today := time.Now().UTC().Truncate(24 * time.Hour).Add(12 * time.Hour)
		yesterday := today.AddDate(0, 0, -1)
		seedFacts(t, store, []entities.Fact{
			{ID: "1", EntryID: 1, Topic: "work", Type: entities.FactTypeEvent, Embedding: []float32{1}, CreatedAt: yesterday},
			{ID: "2", EntryID: 1, Topic: "work", Type: entities.FactTypeEmotion, Embedding: []float32{1}, CreatedAt: yesterday.Add(time.Hour)},
			{ID: "3", EntryID: 2, Topic: "health", Type: entities.FactTypeEvent, Embedding: []float32{1}, CreatedAt: today},
			{ID: "4", EntryID: 2, Topic: "", Type: entities.FactTypeFact, Embedding: []float32{1}, CreatedAt: today},
		})
		svc := NewInsightsService(store, &mocks.LLMClient{})

		analysis, err := svc.AnalyzePatterns(ctx, 30)
		require.NoError(t, err)
		assert.Equal(t, 30, analysis.PeriodDays)
		assert.Equal(t, 4, analysis.TotalFacts)
		require.Len(t, analysis.TopTopics, 2)
		assert.Equal(t, entities.TopicCount{Topic: "work", Count: 2}, analysis.TopTopics[0])
		assert.Equal(t, entities.TopicCount{Topic: "health", Count: 1}, analysis.TopTopics[1])
		assert.Equal(t, 2, analysis.FactTypes["event"])
		assert.Equal(t, 1, analysis.FactTypes["emotion"])
		assert.Equal(t, 1, analysis.FactTypes["fact"])
		assert.Equal(t, 2, analysis.DailyActivity[yesterday.Format("2006-01-02")])
		// Equal counts on both days resolve to the more recent one.
		assert.Equal(t, today.Format("2006-01-02"), analysis.MostActiveDay)
	})

	t.Run("old facts fall outside the window", func(t *testing.T) {
		store := mocks.NewStore()
		seedFacts(t, store, []entities.Fact{
			{ID: "1", EntryID: 1, Topic: "work", Type: entities.FactTypeEvent, Embedding: []float32{1}, CreatedAt: time.Now().UTC().AddDate(0, 0, -60)},
		})
		svc := NewInsightsService(store, &mocks.LLMClient{})

		analysis, err := svc.AnalyzePatterns(ctx, 30)
		require.NoError(t, err)
		assert.Zero(t, analysis.TotalFacts)
		assert.Empty(t, analysis.TopTopics)
		assert.Empty(t, analysis.MostActiveDay)
	})
}
