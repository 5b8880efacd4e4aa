package ports

import (
	"context"
	"time"

	"github.com/rememo/rememo/internal/domain/entities"
)

// Store defines the interface for relational persistence. It holds journal
// entries, fact rows and chat state - data that needs transactions and
// ordered reads - complementing VectorIndex for semantic search.
type Store interface {
	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// Journal entry operations

	// CreateEntry inserts a draft entry and fills in ID and timestamps.
	CreateEntry(ctx context.Context, entry *entities.JournalEntry) error

	// GetEntry returns an entry by ID, or ErrNotFound.
	GetEntry(ctx context.Context, id int64) (*entities.JournalEntry, error)

	// ListEntries returns one page of entries ordered by most recently
	// updated, plus the total count. A non-empty search filters on title and
	// body (case-insensitive substring).
	ListEntries(ctx context.Context, page, limit int, search string) ([]*entities.JournalEntry, int, error)

	// UpdateEntry updates title, body and status of an existing entry.
	UpdateEntry(ctx context.Context, entry *entities.JournalEntry) error

	// DeleteEntry removes an entry and cascades to its facts.
	DeleteEntry(ctx context.Context, id int64) error

	// Fact operations

	// SaveFacts inserts fact rows for an entry in one transaction.
	SaveFacts(ctx context.Context, facts []entities.Fact) error

	// FactsByEntry returns all facts of an entry in creation order.
	FactsByEntry(ctx context.Context, entryID int64) ([]entities.Fact, error)

	// FactsByTopic returns facts whose topic matches (case-insensitive),
	// most recent first.
	FactsByTopic(ctx context.Context, topic string, limit int) ([]entities.Fact, error)

	// RecentFacts returns the most recent facts across all entries.
	RecentFacts(ctx context.Context, limit int) ([]entities.Fact, error)

	// FactsSince returns facts created at or after the cutoff, most recent
	// first.
	FactsSince(ctx context.Context, cutoff time.Time) ([]entities.Fact, error)

	// DeleteFactsByEntry removes all facts of an entry.
	DeleteFactsByEntry(ctx context.Context, entryID int64) error

	// RecentTopics returns topic aggregates grouped by explicit label,
	// ordered by latest mention then fact count.
	RecentTopics(ctx context.Context, limit int) ([]entities.Topic, error)

	// Chat operations

	// CreateSession inserts a new chat session.
	CreateSession(ctx context.Context, session *entities.ChatSession) error

	// GetSession returns a session by ID, or ErrNotFound.
	GetSession(ctx context.Context, id string) (*entities.ChatSession, error)

	// ListSessions returns sessions ordered by most recently updated.
	ListSessions(ctx context.Context, limit int) ([]*entities.ChatSession, error)

	// UpdateSessionTitle sets a session's title.
	UpdateSessionTitle(ctx context.Context, id, title string) error

	// DeleteSession removes a session and cascades to its messages.
	DeleteSession(ctx context.Context, id string) error

	// AppendMessage appends a message to its session, assigning the next
	// sequence number atomically, and bumps the session's updated_at.
	AppendMessage(ctx context.Context, msg *entities.ChatMessage) error

	// SessionMessages returns up to limit messages of a session in append
	// order.
	SessionMessages(ctx context.Context, sessionID string, limit int) ([]entities.ChatMessage, error)
}
