// Package sqlite provides a SQLite implementation of the Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/infrastructure/config"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.Store using SQLite. Fact embeddings are
// stored as JSON arrays; similarity search stays in the vector index.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.DatabaseConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Journal entries (drafts until completed)
	CREATE TABLE IF NOT EXISTS journal_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_updated ON journal_entries(updated_at);

	-- Facts extracted from completed entries (append-only)
	CREATE TABLE IF NOT EXISTS facts (
		id TEXT PRIMARY KEY,
		entry_id INTEGER NOT NULL REFERENCES journal_entries(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		fact_type TEXT NOT NULL DEFAULT 'fact',
		snippet TEXT NOT NULL DEFAULT '',
		embedding TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_facts_entry ON facts(entry_id);
	CREATE INDEX IF NOT EXISTS idx_facts_topic ON facts(topic);
	CREATE INDEX IF NOT EXISTS idx_facts_created ON facts(created_at);

	-- Chat sessions and their ordered messages
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		relevant_fact_ids TEXT NOT NULL DEFAULT '[]',
		context_facts_used INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(session_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, seq);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// CreateEntry inserts a draft entry and fills in ID and timestamps.
func (r *Repository) CreateEntry(ctx context.Context, entry *entities.JournalEntry) error {
	now := timeNow().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if entry.Status == "" {
		entry.Status = entities.EntryStatusDraft
	}

	query := `
		INSERT INTO journal_entries (title, body, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		entry.Title,
		entry.Body,
		string(entry.Status),
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading entry id: %w", err)
	}
	entry.ID = id
	return nil
}

// GetEntry returns an entry by ID, or ErrNotFound.
func (r *Repository) GetEntry(ctx context.Context, id int64) (*entities.JournalEntry, error) {
	query := `
		SELECT e.id, e.title, e.body, e.status, e.created_at, e.updated_at,
			(SELECT COUNT(*) FROM facts f WHERE f.entry_id = e.id)
		FROM journal_entries e
		WHERE e.id = ?
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var entry entities.JournalEntry
	var status string
	err := row.Scan(
		&entry.ID,
		&entry.Title,
		&entry.Body,
		&status,
		&entry.CreatedAt,
		&entry.UpdatedAt,
		&entry.FactsCount,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entry %d: %w", id, entities.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning entry: %w", err)
	}
	entry.Status = entities.EntryStatus(status)
	return &entry, nil
}

// ListEntries returns one page of entries ordered by most recently updated,
// plus the total count.
func (r *Repository) ListEntries(ctx context.Context, page, limit int, search string) ([]*entities.JournalEntry, int, error) {
	if page < 1 {
		page = 1
	}
	pattern := "%" + search + "%"

	var total int
	countQuery := `
		SELECT COUNT(*) FROM journal_entries
		WHERE title LIKE ? COLLATE NOCASE OR body LIKE ? COLLATE NOCASE
	`
	if err := r.db.QueryRowContext(ctx, countQuery, pattern, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting entries: %w", err)
	}

	query := `
		SELECT e.id, e.title, e.body, e.status, e.created_at, e.updated_at,
			(SELECT COUNT(*) FROM facts f WHERE f.entry_id = e.id)
		FROM journal_entries e
		WHERE e.title LIKE ? COLLATE NOCASE OR e.body LIKE ? COLLATE NOCASE
		ORDER BY e.updated_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, pattern, pattern, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.JournalEntry, 0, limit)
	for rows.Next() {
		var entry entities.JournalEntry
		var status string
		if err := rows.Scan(
			&entry.ID,
			&entry.Title,
			&entry.Body,
			&status,
			&entry.CreatedAt,
			&entry.UpdatedAt,
			&entry.FactsCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scanning entry: %w", err)
		}
		entry.Status = entities.EntryStatus(status)
		result = append(result, &entry)
	}
	return result, total, rows.Err()
}

// UpdateEntry updates title, body and status of an existing entry.
func (r *Repository) UpdateEntry(ctx context.Context, entry *entities.JournalEntry) error {
	entry.UpdatedAt = timeNow().UTC()
	query := `
		UPDATE journal_entries
		SET title = ?, body = ?, status = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		entry.Title,
		entry.Body,
		string(entry.Status),
		entry.UpdatedAt,
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("updating entry: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("entry %d: %w", entry.ID, entities.ErrNotFound)
	}
	return nil
}

// DeleteEntry removes an entry; facts cascade.
func (r *Repository) DeleteEntry(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("entry %d: %w", id, entities.ErrNotFound)
	}
	return nil
}

// SaveFacts inserts fact rows for an entry in one transaction.
func (r *Repository) SaveFacts(ctx context.Context, facts []entities.Fact) error {
	if len(facts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO facts (id, entry_id, text, topic, fact_type, snippet, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, f := range facts {
		embedding, err := json.Marshal(f.Embedding)
		if err != nil {
			return fmt.Errorf("marshaling embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query,
			f.ID,
			f.EntryID,
			f.Text,
			f.Topic,
			string(f.Type),
			f.Snippet,
			string(embedding),
			f.CreatedAt,
		); err != nil {
			return fmt.Errorf("saving fact: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing facts: %w", err)
	}
	return nil
}

// FactsByEntry returns all facts of an entry in creation order.
func (r *Repository) FactsByEntry(ctx context.Context, entryID int64) ([]entities.Fact, error) {
	query := factSelect + ` WHERE entry_id = ? ORDER BY created_at ASC, id ASC`
	return r.queryFacts(ctx, query, entryID)
}

// FactsByTopic returns facts whose topic matches, most recent first.
func (r *Repository) FactsByTopic(ctx context.Context, topic string, limit int) ([]entities.Fact, error) {
	query := factSelect + ` WHERE topic = ? COLLATE NOCASE ORDER BY created_at DESC`
	if limit > 0 {
		return r.queryFacts(ctx, query+` LIMIT ?`, topic, limit)
	}
	return r.queryFacts(ctx, query, topic)
}

// RecentFacts returns the most recent facts across all entries.
func (r *Repository) RecentFacts(ctx context.Context, limit int) ([]entities.Fact, error) {
	query := factSelect + ` ORDER BY created_at DESC`
	if limit > 0 {
		return r.queryFacts(ctx, query+` LIMIT ?`, limit)
	}
	return r.queryFacts(ctx, query)
}

// FactsSince returns facts created at or after the cutoff, most recent
// first.
func (r *Repository) FactsSince(ctx context.Context, cutoff time.Time) ([]entities.Fact, error) {
	query := factSelect + ` WHERE created_at >= ? ORDER BY created_at DESC`
	return r.queryFacts(ctx, query, cutoff)
}

// DeleteFactsByEntry removes all facts of an entry.
func (r *Repository) DeleteFactsByEntry(ctx context.Context, entryID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM facts WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("deleting facts by entry: %w", err)
	}
	return nil
}

// RecentTopics returns topic aggregates grouped by explicit label, ordered
// by latest mention then fact count.
func (r *Repository) RecentTopics(ctx context.Context, limit int) ([]entities.Topic, error) {
	query := `
		SELECT topic, COUNT(*), MAX(created_at)
		FROM facts
		WHERE topic != ''
		GROUP BY topic
		ORDER BY MAX(created_at) DESC, COUNT(*) DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying topics: %w", err)
	}
	defer rows.Close()

	var topics []entities.Topic
	for rows.Next() {
		var t entities.Topic
		// MAX() erases the column's declared type, so the driver returns the
		// stored text instead of a time.Time; parse it with the driver's
		// default write format (time.Time.String).
		var latest string
		if err := rows.Scan(&t.Name, &t.FactCount, &latest); err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
		ts, err := time.Parse("2006-01-02 15:04:05.999999999 -0700 MST", latest)
		if err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
		t.LatestTimestamp = ts
		t.Kind = entities.GroupingExplicitLabel
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// CreateSession inserts a new chat session.
func (r *Repository) CreateSession(ctx context.Context, session *entities.ChatSession) error {
	now := timeNow().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	query := `
		INSERT INTO chat_sessions (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query, session.ID, session.Title, session.CreatedAt, session.UpdatedAt); err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// GetSession returns a session by ID, or ErrNotFound.
func (r *Repository) GetSession(ctx context.Context, id string) (*entities.ChatSession, error) {
	query := `
		SELECT s.id, s.title, s.created_at, s.updated_at,
			(SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.id)
		FROM chat_sessions s
		WHERE s.id = ?
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var session entities.ChatSession
	err := row.Scan(&session.ID, &session.Title, &session.CreatedAt, &session.UpdatedAt, &session.MessageCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, entities.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	return &session, nil
}

// ListSessions returns sessions ordered by most recently updated.
func (r *Repository) ListSessions(ctx context.Context, limit int) ([]*entities.ChatSession, error) {
	query := `
		SELECT s.id, s.title, s.created_at, s.updated_at,
			(SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.id)
		FROM chat_sessions s
		ORDER BY s.updated_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*entities.ChatSession
	for rows.Next() {
		var session entities.ChatSession
		if err := rows.Scan(&session.ID, &session.Title, &session.CreatedAt, &session.UpdatedAt, &session.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// UpdateSessionTitle sets a session's title.
func (r *Repository) UpdateSessionTitle(ctx context.Context, id, title string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE chat_sessions SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("updating session title: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("session %s: %w", id, entities.ErrNotFound)
	}
	return nil
}

// DeleteSession removes a session; messages cascade.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("session %s: %w", id, entities.ErrNotFound)
	}
	return nil
}

// AppendMessage appends a message to its session, assigning the next
// sequence number atomically, and bumps the session's updated_at.
func (r *Repository) AppendMessage(ctx context.Context, msg *entities.ChatMessage) error {
	factIDs, err := json.Marshal(msg.RelevantFactIDs)
	if err != nil {
		return fmt.Errorf("marshaling fact ids: %w", err)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = timeNow().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM chat_sessions WHERE id = ?`, msg.SessionID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("session %s: %w", msg.SessionID, entities.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking session: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM chat_messages WHERE session_id = ?`,
		msg.SessionID).Scan(&msg.Seq); err != nil {
		return fmt.Errorf("assigning sequence: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO chat_messages (session_id, seq, role, content, relevant_fact_ids, context_facts_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.SessionID,
		msg.Seq,
		string(msg.Role),
		msg.Content,
		string(factIDs),
		msg.ContextFactsUsed,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	if msg.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("reading message id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE id = ?`,
		timeNow().UTC(), msg.SessionID); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}
	return nil
}

// SessionMessages returns up to limit of the latest messages of a session
// in append order.
func (r *Repository) SessionMessages(ctx context.Context, sessionID string, limit int) ([]entities.ChatMessage, error) {
	query := `
		SELECT id, session_id, seq, role, content, relevant_fact_ids, context_facts_used, created_at
		FROM (
			SELECT * FROM chat_messages
			WHERE session_id = ?
			ORDER BY seq DESC
			LIMIT ?
		)
		ORDER BY seq ASC
	`
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []entities.ChatMessage
	for rows.Next() {
		var msg entities.ChatMessage
		var role, factIDs string
		if err := rows.Scan(
			&msg.ID,
			&msg.SessionID,
			&msg.Seq,
			&role,
			&msg.Content,
			&factIDs,
			&msg.ContextFactsUsed,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = entities.ChatRole(role)
		if err := json.Unmarshal([]byte(factIDs), &msg.RelevantFactIDs); err != nil {
			return nil, fmt.Errorf("unmarshaling fact ids: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

const factSelect = `
	SELECT id, entry_id, text, topic, fact_type, snippet, embedding, created_at
	FROM facts`

// queryFacts is a helper to execute fact queries.
func (r *Repository) queryFacts(ctx context.Context, query string, args ...any) ([]entities.Fact, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	var facts []entities.Fact
	for rows.Next() {
		var f entities.Fact
		var factType, embedding string
		if err := rows.Scan(
			&f.ID,
			&f.EntryID,
			&f.Text,
			&f.Topic,
			&factType,
			&f.Snippet,
			&embedding,
			&f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		f.Type = entities.FactType(factType)
		if err := json.Unmarshal([]byte(embedding), &f.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshaling embedding: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
