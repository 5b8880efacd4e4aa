package entities

import "time"

// FactType represents the category of a fact extracted from an entry.
type FactType string

// Fact types assigned during annotation. FactTypeFact is the fallback when
// annotation is unavailable or returns an unknown type.
const (
	FactTypeEvent      FactType = "event"
	FactTypeFact       FactType = "fact"
	FactTypeReflection FactType = "reflection"
	FactTypeGoal       FactType = "goal"
	FactTypeEmotion    FactType = "emotion"
)

// ValidFactType reports whether t is one of the known fact types.
func ValidFactType(t FactType) bool {
	switch t {
	case FactTypeEvent, FactTypeFact, FactTypeReflection, FactTypeGoal, FactTypeEmotion:
		return true
	}
	return false
}

// Fact is an atomic statement extracted from a completed journal entry,
// embedded and indexed for retrieval. Facts are append-only: they are created
// when an entry is completed and removed only when the entry is deleted.
type Fact struct {
	ID        string    `json:"id"`
	EntryID   int64     `json:"entry_id"`
	Text      string    `json:"text"`
	Topic     string    `json:"topic,omitempty"`
	Type      FactType  `json:"fact_type"`
	Snippet   string    `json:"original_snippet,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is a Fact-derived summary returned to callers of reflection and
// search operations, attributed to its originating entry for UI linking.
type Note struct {
	FactID     string    `json:"fact_id"`
	EntryID    int64     `json:"entry_id"`
	EntryTitle string    `json:"entry_title,omitempty"`
	Text       string    `json:"text"`
	Topic      string    `json:"topic,omitempty"`
	Score      float64   `json:"similarity_score"`
	CreatedAt  time.Time `json:"created_at"`
}
