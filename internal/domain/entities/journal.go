// Package entities contains core domain data structures.
package entities

import "time"

// EntryStatus represents the lifecycle state of a journal entry.
type EntryStatus string

const (
	// EntryStatusDraft marks an entry that is still being edited.
	EntryStatusDraft EntryStatus = "draft"
	// EntryStatusComplete marks an entry whose body is final and has been
	// processed into facts.
	EntryStatusComplete EntryStatus = "complete"
)

// JournalEntry represents a single journal entry. The body is markdown and
// becomes an immutable content source once the entry is complete; metadata
// such as the title may still change afterwards.
type JournalEntry struct {
	ID         int64       `json:"id"`
	Title      string      `json:"title"`
	Body       string      `json:"body"`
	Status     EntryStatus `json:"status"`
	FactsCount int         `json:"facts_count,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// IsComplete reports whether the entry has been finalized.
func (e *JournalEntry) IsComplete() bool {
	return e.Status == EntryStatusComplete
}
