// Package openai provides an LLMClient implementation using OpenAI.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/domain/ports"
	"github.com/rememo/rememo/internal/infrastructure/config"
)

const annotatePrompt = `You are an AI assistant that labels statements taken from journal entries.

For each numbered statement, assign:
- topic: A short lowercase topic/category (e.g., "work", "health", "relationships", "travel")
- fact_type: One of "event", "fact", "reflection", "goal", "emotion"

Guidelines:
- Keep topics general but descriptive
- Use "event" for things that happened and "reflection" for thoughts about them

Return ONLY a valid JSON array with one object per statement, in the same
order, no other text.

Example:
Input:
1. I went for a run this morning.
2. I want to get better at public speaking.
Output: [
  {"topic": "health", "fact_type": "event"},
  {"topic": "growth", "fact_type": "goal"}
]`

const reflectPrompt = `You are a supportive journaling companion. Answer the user's question using ONLY the journal notes provided below. Connect related notes, point out patterns, and be honest when the notes only partially answer the question.

Be:
- Supportive and encouraging
- Thoughtful and reflective
- Grounded strictly in the notes; never invent details

Journal notes:
%s`

const chatPrompt = `You are a helpful AI assistant for journaling and self-reflection. You have access to the user's journal entries and can help them explore their thoughts, find patterns, and gain insights.

Be:
- Supportive and encouraging
- Thoughtful and reflective
- Helpful in connecting ideas
- Respectful of their privacy and experiences
- Conversational but insightful
%s`

const suggestTopicsPrompt = `Based on the user's recent journal topics, suggest new related topics they might want to write about.

Return a simple list of topic suggestions, one per line, without numbering or bullets.
Focus on:
- Related but unexplored aspects of their current topics
- Deeper reflection opportunities
- Growth and future-oriented themes
- Emotional and personal development areas`

const writingPromptPrompt = `You are a thoughtful journaling assistant. Generate a personalized writing prompt for the topic "%s".

The prompt should:
- Be thought-provoking and encourage reflection
- Connect to the user's previous experiences when possible
- Be specific enough to inspire writing but open enough for creativity
- Encourage introspection and personal growth
- Be 1-3 sentences long
%s`

const suggestQuestionsPrompt = `You are a journaling companion. Based on the user's recent journal notes and the conversation context below, suggest questions they might want to explore about their own life and experiences.

Return a simple list of at most 5 questions, one per line, without numbering or bullets. Ground every question in the notes; never invent details.
%s`

const insightsPrompt = `You are an AI assistant that finds patterns in journal notes. Review the notes from the last %d days and produce short observations about recurring themes, changes in mood, and progress toward stated goals.

Return a simple list of at most 5 observations, one per line, without numbering or bullets. Ground every observation in the notes; never invent details.`

// defaultWritingTopics is returned when there is no history to base
// suggestions on.
var defaultWritingTopics = []string{
	"gratitude", "goals", "relationships", "work", "health",
	"learning", "creativity", "challenges", "growth", "future plans",
}

// Client implements the LLMClient interface using OpenAI.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new OpenAI LLM client.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := "gpt-4o-mini"
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Client{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// Annotate assigns a topic and fact type to each fragment.
func (c *Client) Annotate(ctx context.Context, fragments []string) ([]ports.FactAnnotation, error) {
	if len(fragments) == 0 {
		return nil, nil
	}

	var input strings.Builder
	for i, fragment := range fragments {
		fmt.Fprintf(&input, "%d. %s\n", i+1, fragment)
	}

	content, err := c.complete(ctx, annotatePrompt, input.String(), 0.1)
	if err != nil {
		return nil, err
	}
	content = cleanJSONResponse(content)

	var raw []rawAnnotation
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parsing annotations JSON: %w (response: %s)", err, content)
	}
	if len(raw) != len(fragments) {
		return nil, fmt.Errorf("expected %d annotations, got %d", len(fragments), len(raw))
	}

	annotations := make([]ports.FactAnnotation, 0, len(raw))
	for _, ra := range raw {
		annotations = append(annotations, ports.FactAnnotation{
			Topic: strings.ToLower(strings.TrimSpace(ra.Topic)),
			Type:  entities.FactType(ra.FactType),
		})
	}
	return annotations, nil
}

// Reflect synthesizes an answer to the query grounded in the notes.
func (c *Client) Reflect(ctx context.Context, query string, notes []entities.Note) (string, error) {
	var noteList strings.Builder
	for _, note := range notes {
		fmt.Fprintf(&noteList, "- %s (%s, %s)\n", note.Text, note.Topic, note.CreatedAt.Format("2006-01-02"))
	}

	system := fmt.Sprintf(reflectPrompt, noteList.String())
	answer, err := c.complete(ctx, system, query, 0.7)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// ChatReply generates an assistant reply given history and grounding facts.
func (c *Client) ChatReply(ctx context.Context, message string, history []entities.ChatMessage, facts []entities.Fact) (string, error) {
	var factContext string
	if len(facts) > 0 {
		var b strings.Builder
		b.WriteString("\nRelevant information from the user's journal:\n")
		for _, fact := range facts {
			fmt.Fprintf(&b, "- %s (%s)\n", fact.Text, fact.Topic)
		}
		factContext = b.String()
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: fmt.Sprintf(chatPrompt, factContext),
		},
	}
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == entities.ChatRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("calling OpenAI: %w: %w", entities.ErrProviderUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response from OpenAI", entities.ErrProviderUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// SuggestTopics proposes new writing topics related to the recent ones.
func (c *Client) SuggestTopics(ctx context.Context, recent []entities.Topic, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	if len(recent) == 0 {
		if limit > len(defaultWritingTopics) {
			limit = len(defaultWritingTopics)
		}
		return defaultWritingTopics[:limit], nil
	}

	parts := make([]string, 0, len(recent))
	for _, t := range recent {
		parts = append(parts, fmt.Sprintf("%s (%d entries)", t.Name, t.FactCount))
	}
	user := fmt.Sprintf("Recent journal topics: %s\n\nSuggest %d new writing topics:",
		strings.Join(parts, ", "), limit)

	content, err := c.complete(ctx, suggestTopicsPrompt, user, 0.7)
	if err != nil {
		return nil, err
	}

	topics := parseLines(content)
	if len(topics) > limit {
		topics = topics[:limit]
	}
	return topics, nil
}

// QuickInsights summarizes patterns across recent facts.
func (c *Client) QuickInsights(ctx context.Context, facts []entities.Fact, days int) ([]string, error) {
	if len(facts) == 0 {
		return nil, nil
	}

	var notes strings.Builder
	for _, fact := range facts {
		fmt.Fprintf(&notes, "- %s (%s, %s)\n", fact.Text, fact.Topic, fact.CreatedAt.Format("2006-01-02"))
	}

	content, err := c.complete(ctx, fmt.Sprintf(insightsPrompt, days), notes.String(), 0.7)
	if err != nil {
		return nil, err
	}
	return parseLines(content), nil
}

// WritingPrompt generates a writing prompt for the topic, grounded in the
// user's related facts when any exist.
func (c *Client) WritingPrompt(ctx context.Context, topic string, facts []entities.Fact) (string, error) {
	var factContext string
	if len(facts) > 0 {
		var b strings.Builder
		b.WriteString("\nBased on your previous entries, here are some related facts:\n")
		for i, fact := range facts {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "- %s (from %s)\n", fact.Text, fact.CreatedAt.Format("2006-01-02"))
		}
		factContext = b.String()
	}

	system := fmt.Sprintf(writingPromptPrompt, topic, factContext)
	user := fmt.Sprintf("Generate a writing prompt for the topic: %s", topic)
	prompt, err := c.complete(ctx, system, user, 0.7)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(prompt), nil
}

// SuggestQuestions proposes questions to explore, grounded in recent facts.
func (c *Client) SuggestQuestions(ctx context.Context, contextText string, facts []entities.Fact) ([]string, error) {
	var notes strings.Builder
	notes.WriteString("\nRecent journal notes:\n")
	for _, fact := range facts {
		fmt.Fprintf(&notes, "- %s (%s, %s)\n", fact.Text, fact.Topic, fact.CreatedAt.Format("2006-01-02"))
	}

	user := "Suggest questions I could reflect on."
	if contextText != "" {
		user = fmt.Sprintf("Conversation context: %s\n\n%s", contextText, user)
	}

	content, err := c.complete(ctx, fmt.Sprintf(suggestQuestionsPrompt, notes.String()), user, 0.7)
	if err != nil {
		return nil, err
	}
	return parseLines(content), nil
}

// complete runs one system+user chat completion and returns the raw content.
func (c *Client) complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: user,
			},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("calling OpenAI: %w: %w", entities.ErrProviderUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response from OpenAI", entities.ErrProviderUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// rawAnnotation is the JSON structure for fragment annotations.
type rawAnnotation struct {
	Topic    string `json:"topic"`
	FactType string `json:"fact_type"`
}

// parseLines splits a plain-text list response into trimmed non-empty lines.
func parseLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// cleanJSONResponse removes markdown code blocks if present.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
