package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/domain/ports"
)

const (
	// DefaultInsightDays is the lookback window for quick insights.
	DefaultInsightDays = 7
	// DefaultPatternDays is the lookback window for pattern analysis.
	DefaultPatternDays = 30
	// DefaultSuggestionLimit is how many writing topics to suggest.
	DefaultSuggestionLimit = 5
	// insightTopicSample is how many recent topics inform suggestions.
	insightTopicSample = 20
	// promptFactSample is how many related facts ground a writing prompt.
	promptFactSample = 10
	// patternTopTopics caps the ranked topic list in pattern analysis.
	patternTopTopics = 10
)

// InsightsService produces short summaries over recent journaling activity
// and suggests new topics to write about.
type InsightsService struct {
	store ports.Store
	llm   ports.LLMClient
}

// NewInsightsService creates a new insights service.
func NewInsightsService(store ports.Store, llm ports.LLMClient) *InsightsService {
	return &InsightsService{store: store, llm: llm}
}

// QuickInsights summarizes patterns across facts from the last days days.
// A window with no facts yields an empty list, not an error.
func (s *InsightsService) QuickInsights(ctx context.Context, days int) ([]string, error) {
	if days <= 0 {
		days = DefaultInsightDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	facts, err := s.store.FactsSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("loading recent facts: %w", err)
	}
	if len(facts) == 0 {
		return nil, nil
	}

	var insights []string
	err = retryTransient(ctx, func() error {
		var llmErr error
		insights, llmErr = s.llm.QuickInsights(ctx, facts, days)
		return llmErr
	})
	if err != nil {
		return nil, fmt.Errorf("generating insights: %w", err)
	}
	return insights, nil
}

// SuggestWritingTopics proposes up to limit fresh topics to write about,
// informed by what the user has written recently.
func (s *InsightsService) SuggestWritingTopics(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	recent, err := s.store.RecentTopics(ctx, insightTopicSample)
	if err != nil {
		return nil, fmt.Errorf("loading topics: %w", err)
	}

	var topics []string
	err = retryTransient(ctx, func() error {
		var llmErr error
		topics, llmErr = s.llm.SuggestTopics(ctx, recent, limit)
		return llmErr
	})
	if err != nil {
		return nil, fmt.Errorf("suggesting topics: %w", err)
	}
	if len(topics) > limit {
		topics = topics[:limit]
	}
	return topics, nil
}

// WritingPrompt generates a writing prompt for the topic, grounded in the
// user's related facts. When generation fails the caller still gets a
// usable generic prompt, so only store failures surface as errors. The
// second return value is how many related facts informed the prompt.
func (s *InsightsService) WritingPrompt(ctx context.Context, topic string) (string, int, error) {
	facts, err := s.store.FactsByTopic(ctx, topic, promptFactSample)
	if err != nil {
		return "", 0, fmt.Errorf("loading topic facts: %w", err)
	}

	var prompt string
	err = retryTransient(ctx, func() error {
		var llmErr error
		prompt, llmErr = s.llm.WritingPrompt(ctx, topic, facts)
		return llmErr
	})
	if err != nil || prompt == "" {
		prompt = fmt.Sprintf("Write about your recent experiences with %s. What have you learned?", topic)
	}
	return prompt, len(facts), nil
}

// AnalyzePatterns aggregates facts from the last days days into topic,
// fact-type and per-day activity counts. Purely a store computation; an
// empty window yields zeroed aggregates, not an error.
func (s *InsightsService) AnalyzePatterns(ctx context.Context, days int) (*entities.PatternAnalysis, error) {
	if days <= 0 {
		days = DefaultPatternDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	facts, err := s.store.FactsSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("loading recent facts: %w", err)
	}

	topicCounts := make(map[string]int)
	typeCounts := make(map[string]int)
	dailyCounts := make(map[string]int)
	for _, f := range facts {
		if f.Topic != "" {
			topicCounts[f.Topic]++
		}
		typeCounts[string(f.Type)]++
		dailyCounts[f.CreatedAt.UTC().Format("2006-01-02")]++
	}

	top := make([]entities.TopicCount, 0, len(topicCounts))
	for topic, count := range topicCounts {
		top = append(top, entities.TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Topic < top[j].Topic
	})
	if len(top) > patternTopTopics {
		top = top[:patternTopTopics]
	}

	var mostActive string
	for day, count := range dailyCounts {
		if mostActive == "" || count > dailyCounts[mostActive] ||
			(count == dailyCounts[mostActive] && day > mostActive) {
			mostActive = day
		}
	}

	return &entities.PatternAnalysis{
		PeriodDays:    days,
		TotalFacts:    len(facts),
		TopTopics:     top,
		FactTypes:     typeCounts,
		DailyActivity: dailyCounts,
		MostActiveDay: mostActive,
	}, nil
}
