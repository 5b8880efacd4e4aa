package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/infrastructure/config"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			cfg: config.LLMConfig{
				APIKey: "test-key",
			},
			wantErr: false,
		},
		{
			name: "valid config with model",
			cfg: config.LLMConfig{
				APIKey: "test-key",
				Model:  "gpt-4",
			},
			wantErr: false,
		},
		{
			name:    "missing API key",
			cfg:     config.LLMConfig{},
			wantErr: true,
			errMsg:  "API key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, client)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, client)
			}
		})
	}
}

// newStubClient points a client at a test server that always answers with
// the given message content.
func newStubClient(t *testing.T, content string) (*Client, *[]map[string]any) {
	t.Helper()

	var requests []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		requests = append(requests, body)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(config.LLMConfig{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
	})
	require.NoError(t, err)
	return client, &requests
}

func TestAnnotate(t *testing.T) {
	t.Run("parses annotations in order", func(t *testing.T) {
		client, _ := newStubClient(t, "```json\n[\n"+
			`{"topic": "Health", "fact_type": "event"},`+"\n"+
			`{"topic": "growth", "fact_type": "goal"}`+"\n]\n```")

		annotations, err := client.Annotate(context.Background(), []string{
			"I went for a run this morning.",
			"I want to get better at public speaking.",
		})
		require.NoError(t, err)
		require.Len(t, annotations, 2)
		assert.Equal(t, "health", annotations[0].Topic)
		assert.Equal(t, entities.FactTypeEvent, annotations[0].Type)
		assert.Equal(t, "growth", annotations[1].Topic)
		assert.Equal(t, entities.FactTypeGoal, annotations[1].Type)
	})

	t.Run("rejects count mismatch", func(t *testing.T) {
		client, _ := newStubClient(t, `[{"topic": "health", "fact_type": "event"}]`)

		_, err := client.Annotate(context.Background(), []string{"One.", "Two."})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected 2 annotations")
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		client, _ := newStubClient(t, "not json")

		_, err := client.Annotate(context.Background(), []string{"One."})
		require.Error(t, err)
	})

	t.Run("empty input skips the call", func(t *testing.T) {
		client, requests := newStubClient(t, "[]")

		annotations, err := client.Annotate(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, annotations)
		assert.Empty(t, *requests)
	})

	t.Run("unreachable provider", func(t *testing.T) {
		client, err := NewClient(config.LLMConfig{
			APIKey:  "test-key",
			BaseURL: "http://127.0.0.1:1/v1",
		})
		require.NoError(t, err)

		_, err = client.Annotate(context.Background(), []string{"One."})
		assert.ErrorIs(t, err, entities.ErrProviderUnavailable)
	})
}

func TestReflect(t *testing.T) {
	client, requests := newStubClient(t, "You have been running regularly.")

	notes := []entities.Note{
		{Text: "Went for a run.", Topic: "health", CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
	}
	answer, err := client.Reflect(context.Background(), "How is my exercise going?", notes)
	require.NoError(t, err)
	assert.Equal(t, "You have been running regularly.", answer)

	require.Len(t, *requests, 1)
	messages := (*requests)[0]["messages"].([]any)
	require.Len(t, messages, 2)
	system := messages[0].(map[string]any)["content"].(string)
	assert.Contains(t, system, "Went for a run.")
	assert.Contains(t, system, "2026-08-01")
}

func TestChatReply(t *testing.T) {
	client, requests := newStubClient(t, "That sounds like good progress.")

	history := []entities.ChatMessage{
		{Role: entities.ChatRoleUser, Content: "Hi there."},
		{Role: entities.ChatRoleAssistant, Content: "Hello! How can I help?"},
	}
	facts := []entities.Fact{
		{Text: "Started a new job.", Topic: "work"},
	}

	reply, err := client.ChatReply(context.Background(), "How is work going?", history, facts)
	require.NoError(t, err)
	assert.Equal(t, "That sounds like good progress.", reply)

	require.Len(t, *requests, 1)
	messages := (*requests)[0]["messages"].([]any)
	require.Len(t, messages, 4, "system, two history turns, current message")

	system := messages[0].(map[string]any)["content"].(string)
	assert.Contains(t, system, "Started a new job.")

	assert.Equal(t, "assistant", messages[2].(map[string]any)["role"])
	last := messages[3].(map[string]any)
	assert.Equal(t, "user", last["role"])
	assert.Equal(t, "How is work going?", last["content"])
}

func TestSuggestTopics(t *testing.T) {
	t.Run("parses line list", func(t *testing.T) {
		client, _ := newStubClient(t, "work-life balance\n- mentorship\nrest and recovery\n")

		topics, err := client.SuggestTopics(context.Background(), []entities.Topic{
			{Name: "work", FactCount: 4},
		}, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"work-life balance", "mentorship"}, topics)
	})

	t.Run("no history falls back to starter topics", func(t *testing.T) {
		client, requests := newStubClient(t, "unused")

		topics, err := client.SuggestTopics(context.Background(), nil, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"gratitude", "goals", "relationships"}, topics)
		assert.Empty(t, *requests)
	})
}

func TestQuickInsights(t *testing.T) {
	t.Run("parses observations", func(t *testing.T) {
		client, requests := newStubClient(t, "You wrote about work most days.\nYour mood improved over the week.")

		facts := []entities.Fact{
			{Text: "Shipped the release.", Topic: "work", CreatedAt: time.Now()},
		}
		insights, err := client.QuickInsights(context.Background(), facts, 7)
		require.NoError(t, err)
		assert.Len(t, insights, 2)

		system := (*requests)[0]["messages"].([]any)[0].(map[string]any)["content"].(string)
		assert.Contains(t, system, "last 7 days")
	})

	t.Run("no facts skips the call", func(t *testing.T) {
		client, requests := newStubClient(t, "unused")

		insights, err := client.QuickInsights(context.Background(), nil, 7)
		require.NoError(t, err)
		assert.Nil(t, insights)
		assert.Empty(t, *requests)
	})
}

func TestWritingPrompt(t *testing.T) {
	client, requests := newStubClient(t, "What did finishing the 10k teach you about your limits?")

	facts := []entities.Fact{
		{Text: "Ran my first 10k.", Topic: "health", CreatedAt: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)},
	}
	prompt, err := client.WritingPrompt(context.Background(), "health", facts)
	require.NoError(t, err)
	assert.Equal(t, "What did finishing the 10k teach you about your limits?", prompt)

	require.Len(t, *requests, 1)
	messages := (*requests)[0]["messages"].([]any)
	system := messages[0].(map[string]any)["content"].(string)
	assert.Contains(t, system, `topic "health"`)
	assert.Contains(t, system, "Ran my first 10k.")
	assert.Contains(t, system, "2026-08-10")
	user := messages[1].(map[string]any)["content"].(string)
	assert.Contains(t, user, "health")
}

func TestSuggestQuestions(t *testing.T) {
	t.Run("parses question list", func(t *testing.T) {
		client, requests := newStubClient(t, "What drew you to pottery?\n- How do you unwind after class?\n")

		facts := []entities.Fact{
			{Text: "Started a pottery class.", Topic: "creativity", CreatedAt: time.Now()},
		}
		questions, err := client.SuggestQuestions(context.Background(), "hobbies", facts)
		require.NoError(t, err)
		assert.Equal(t, []string{"What drew you to pottery?", "How do you unwind after class?"}, questions)

		messages := (*requests)[0]["messages"].([]any)
		system := messages[0].(map[string]any)["content"].(string)
		assert.Contains(t, system, "Started a pottery class.")
		user := messages[1].(map[string]any)["content"].(string)
		assert.Contains(t, user, "hobbies")
	})

	t.Run("empty context is omitted from the request", func(t *testing.T) {
		client, requests := newStubClient(t, "What went well today?")

		_, err := client.SuggestQuestions(context.Background(), "", nil)
		require.NoError(t, err)

		messages := (*requests)[0]["messages"].([]any)
		user := messages[1].(map[string]any)["content"].(string)
		assert.NotContains(t, user, "Conversation context")
	})
}

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain JSON",
			input:    `[{"topic": "work"}]`,
			expected: `[{"topic": "work"}]`,
		},
		{
			name:     "JSON with json code block",
			input:    "```json\n[{\"topic\": \"work\"}]\n```",
			expected: `[{"topic": "work"}]`,
		},
		{
			name:     "JSON with plain code block",
			input:    "```\n[{\"topic\": \"work\"}]\n```",
			expected: `[{"topic": "work"}]`,
		},
		{
			name:     "JSON with whitespace",
			input:    "  \n[{\"topic\": \"work\"}]\n  ",
			expected: `[{"topic": "work"}]`,
		},
		{
			name:     "empty array",
			input:    "[]",
			expected: "[]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cleanJSONResponse(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "plain lines",
			input:    "one\ntwo\nthree",
			expected: []string{"one", "two", "three"},
		},
		{
			name:     "bulleted and padded lines",
			input:    "- one\n  two  \n\n- three\n",
			expected: []string{"one", "two", "three"},
		},
		{
			name:     "empty input",
			input:    "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLines(tt.input))
		})
	}
}
