package entities

import "time"

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatSession is an ordered conversation thread between the user and the
// assistant. Sessions are created on first message and deleted explicitly;
// they are never merged.
type ChatSession struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	MessageCount int       `json:"message_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatMessage is a single turn in a chat session. Messages are immutable
// once appended; Seq is assigned by the store and strictly increases within
// a session, so insertion order is conversation order.
type ChatMessage struct {
	ID               int64     `json:"id"`
	SessionID        string    `json:"session_id"`
	Seq              int64     `json:"seq"`
	Role             ChatRole  `json:"role"`
	Content          string    `json:"content"`
	RelevantFactIDs  []string  `json:"relevant_fact_ids,omitempty"`
	ContextFactsUsed int       `json:"context_facts_used"`
	CreatedAt        time.Time `json:"created_at"`
}
