// Package ports defines interfaces for external service communication.
package ports

import (
	"context"

	"github.com/rememo/rememo/internal/domain/entities"
)

// FactAnnotation is the topic label and fact type assigned to one fragment
// during entry processing.
type FactAnnotation struct {
	Topic string            `json:"topic"`
	Type  entities.FactType `json:"fact_type"`
}

// LLMClient defines the interface for generation operations. All methods may
// fail with ErrProviderUnavailable when the backend cannot be reached; the
// services layer decides how each failure degrades.
type LLMClient interface {
	// Annotate assigns a topic label and fact type to each fragment, one
	// annotation per input in the same order.
	Annotate(ctx context.Context, fragments []string) ([]FactAnnotation, error)

	// Reflect synthesizes a natural-language reflection grounded only in the
	// supplied notes, in response to the query.
	Reflect(ctx context.Context, query string, notes []entities.Note) (string, error)

	// ChatReply generates an assistant reply to message, given prior session
	// history and retrieved facts as grounding context.
	ChatReply(ctx context.Context, message string, history []entities.ChatMessage, facts []entities.Fact) (string, error)

	// SuggestTopics proposes up to limit new writing topics related to the
	// user's existing topic distribution.
	SuggestTopics(ctx context.Context, recent []entities.Topic, limit int) ([]string, error)

	// QuickInsights summarizes patterns across recent facts into short
	// insight strings.
	QuickInsights(ctx context.Context, facts []entities.Fact, days int) ([]string, error)

	// WritingPrompt generates a personalized writing prompt for the topic,
	// grounded in the user's related facts when any exist.
	WritingPrompt(ctx context.Context, topic string, facts []entities.Fact) (string, error)

	// SuggestQuestions proposes questions the user could explore in chat,
	// based on free-form context and their recent facts.
	SuggestQuestions(ctx context.Context, context string, facts []entities.Fact) ([]string, error)
}
