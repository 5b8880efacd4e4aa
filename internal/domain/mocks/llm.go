package mocks

import (
	"context"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/domain/ports"
)

// LLMClient is a mock implementation of ports.LLMClient.
type LLMClient struct {
	// Annotate return values. When Annotations is nil, each fragment gets a
	// default annotation so ingestion tests don't have to configure one per
	// sentence.
	Annotations []ports.FactAnnotation
	AnnotateErr error

	// Reflect return values
	Reflection string
	ReflectErr error

	// ChatReply return values
	Reply    string
	ReplyErr error

	// SuggestTopics / QuickInsights return values
	Topics      []string
	TopicsErr   error
	Insights    []string
	InsightsErr error

	// WritingPrompt return values
	Prompt    string
	PromptErr error

	// SuggestQuestions return values
	Questions    []string
	QuestionsErr error

	// Call tracking
	ReflectCallCount    int
	ReflectLastNotes    []entities.Note
	ChatReplyCallCount  int
	ChatReplyLastFacts  []entities.Fact
	WritingPromptTopic  string
	WritingPromptFacts  []entities.Fact
	SuggestQuestionsCtx string
	LastQuestionFacts   []entities.Fact
}

// Annotate returns the configured annotations or per-fragment defaults.
func (m *LLMClient) Annotate(ctx context.Context, fragments []string) ([]ports.FactAnnotation, error) {
	if m.AnnotateErr != nil {
		return nil, m.AnnotateErr
	}
	if m.Annotations != nil {
		return m.Annotations, nil
	}
	out := make([]ports.FactAnnotation, len(fragments))
	for i := range fragments {
		out[i] = ports.FactAnnotation{Type: entities.FactTypeFact}
	}
	return out, nil
}

// Reflect returns the configured reflection or error.
func (m *LLMClient) Reflect(ctx context.Context, query string, notes []entities.Note) (string, error) {
	m.ReflectCallCount++
	m.ReflectLastNotes = notes
	if m.ReflectErr != nil {
		return "", m.ReflectErr
	}
	return m.Reflection, nil
}

// ChatReply returns the configured reply or error.
func (m *LLMClient) ChatReply(ctx context.Context, message string, history []entities.ChatMessage, facts []entities.Fact) (string, error) {
	m.ChatReplyCallCount++
	m.ChatReplyLastFacts = facts
	if m.ReplyErr != nil {
		return "", m.ReplyErr
	}
	return m.Reply, nil
}

// SuggestTopics returns the configured topics or error.
func (m *LLMClient) SuggestTopics(ctx context.Context, recent []entities.Topic, limit int) ([]string, error) {
	if m.TopicsErr != nil {
		return nil, m.TopicsErr
	}
	if limit > 0 && len(m.Topics) > limit {
		return m.Topics[:limit], nil
	}
	return m.Topics, nil
}

// QuickInsights returns the configured insights or error.
func (m *LLMClient) QuickInsights(ctx context.Context, facts []entities.Fact, days int) ([]string, error) {
	if m.InsightsErr != nil {
		return nil, m.InsightsErr
	}
	return m.Insights, nil
}

// WritingPrompt returns the configured prompt or error.
func (m *LLMClient) WritingPrompt(ctx context.Context, topic string, facts []entities.Fact) (string, error) {
	m.WritingPromptTopic = topic
	m.WritingPromptFacts = facts
	if m.PromptErr != nil {
		return "", m.PromptErr
	}
	return m.Prompt, nil
}

// SuggestQuestions returns the configured questions or error.
func (m *LLMClient) SuggestQuestions(ctx context.Context, context string, facts []entities.Fact) ([]string, error) {
	m.SuggestQuestionsCtx = context
	m.LastQuestionFacts = facts
	if m.QuestionsErr != nil {
		return nil, m.QuestionsErr
	}
	return m.Questions, nil
}
