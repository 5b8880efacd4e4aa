// Package postgres provides a Postgres implementation of the Store
// interface on a pgx connection pool. It can share its pool with the
// pgvector index so relational rows and vectors live in one database.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rememo/rememo/internal/domain/entities"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.Store using Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository opens a pgx pool for the given DSN.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// NewRepositoryWithPool wraps an existing pool.
func NewRepositoryWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool exposes the underlying pool for components sharing the database.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// Close closes the connection pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS journal_entries (
			id         BIGSERIAL PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			body       TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL DEFAULT 'draft',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_updated ON journal_entries (updated_at)`,
		`CREATE TABLE IF NOT EXISTS facts (
			id         TEXT PRIMARY KEY,
			entry_id   BIGINT NOT NULL REFERENCES journal_entries(id) ON DELETE CASCADE,
			text       TEXT NOT NULL,
			topic      TEXT NOT NULL DEFAULT '',
			fact_type  TEXT NOT NULL DEFAULT 'fact',
			snippet    TEXT NOT NULL DEFAULT '',
			embedding  JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_facts_entry ON facts (entry_id)`,
		`CREATE INDEX IF NOT EXISTS idx_facts_topic ON facts (topic)`,
		`CREATE INDEX IF NOT EXISTS idx_facts_created ON facts (created_at)`,
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id                 BIGSERIAL PRIMARY KEY,
			session_id         TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
			seq                BIGINT NOT NULL,
			role               TEXT NOT NULL,
			content            TEXT NOT NULL,
			relevant_fact_ids  JSONB NOT NULL DEFAULT '[]',
			context_facts_used INT NOT NULL DEFAULT 0,
			created_at         TIMESTAMPTZ NOT NULL,
			UNIQUE (session_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages (session_id, seq)`,
	}
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
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

	err := r.pool.QueryRow(ctx, `
		INSERT INTO journal_entries (title, body, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		entry.Title, entry.Body, string(entry.Status), entry.CreatedAt, entry.UpdatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("creating entry: %w", err)
	}
	return nil
}

// GetEntry returns an entry by ID, or ErrNotFound.
func (r *Repository) GetEntry(ctx context.Context, id int64) (*entities.JournalEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT e.id, e.title, e.body, e.status, e.created_at, e.updated_at,
			(SELECT COUNT(*) FROM facts f WHERE f.entry_id = e.id)
		FROM journal_entries e
		WHERE e.id = $1`, id)

	var entry entities.JournalEntry
	var status string
	err := row.Scan(&entry.ID, &entry.Title, &entry.Body, &status,
		&entry.CreatedAt, &entry.UpdatedAt, &entry.FactsCount)
	if errors.Is(err, pgx.ErrNoRows) {
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
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM journal_entries
		WHERE title ILIKE $1 OR body ILIKE $1`, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting entries: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.title, e.body, e.status, e.created_at, e.updated_at,
			(SELECT COUNT(*) FROM facts f WHERE f.entry_id = e.id)
		FROM journal_entries e
		WHERE e.title ILIKE $1 OR e.body ILIKE $1
		ORDER BY e.updated_at DESC
		LIMIT $2 OFFSET $3`, pattern, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.JournalEntry, 0, limit)
	for rows.Next() {
		var entry entities.JournalEntry
		var status string
		if err := rows.Scan(&entry.ID, &entry.Title, &entry.Body, &status,
			&entry.CreatedAt, &entry.UpdatedAt, &entry.FactsCount); err != nil {
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
	tag, err := r.pool.Exec(ctx, `
		UPDATE journal_entries
		SET title = $1, body = $2, status = $3, updated_at = $4
		WHERE id = $5`,
		entry.Title, entry.Body, string(entry.Status), entry.UpdatedAt, entry.ID)
	if err != nil {
		return fmt.Errorf("updating entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %d: %w", entry.ID, entities.ErrNotFound)
	}
	return nil
}

// DeleteEntry removes an entry; facts cascade.
func (r *Repository) DeleteEntry(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM journal_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %d: %w", id, entities.ErrNotFound)
	}
	return nil
}

// SaveFacts inserts fact rows for an entry in one transaction.
func (r *Repository) SaveFacts(ctx context.Context, facts []entities.Fact) error {
	if len(facts) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, f := range facts {
		embedding, err := json.Marshal(f.Embedding)
		if err != nil {
			return fmt.Errorf("marshaling embedding: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO facts (id, entry_id, text, topic, fact_type, snippet, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			f.ID, f.EntryID, f.Text, f.Topic, string(f.Type), f.Snippet, embedding, f.CreatedAt,
		); err != nil {
			return fmt.Errorf("saving fact: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing facts: %w", err)
	}
	return nil
}

// FactsByEntry returns all facts of an entry in creation order.
func (r *Repository) FactsByEntry(ctx context.Context, entryID int64) ([]entities.Fact, error) {
	return r.queryFacts(ctx, factSelect+` WHERE entry_id = $1 ORDER BY created_at ASC, id ASC`, entryID)
}

// FactsByTopic returns facts whose topic matches, most recent first.
func (r *Repository) FactsByTopic(ctx context.Context, topic string, limit int) ([]entities.Fact, error) {
	query := factSelect + ` WHERE lower(topic) = lower($1) ORDER BY created_at DESC`
	if limit > 0 {
		return r.queryFacts(ctx, query+` LIMIT $2`, topic, limit)
	}
	return r.queryFacts(ctx, query, topic)
}

// RecentFacts returns the most recent facts across all entries.
func (r *Repository) RecentFacts(ctx context.Context, limit int) ([]entities.Fact, error) {
	query := factSelect + ` ORDER BY created_at DESC`
	if limit > 0 {
		return r.queryFacts(ctx, query+` LIMIT $1`, limit)
	}
	return r.queryFacts(ctx, query)
}

// FactsSince returns facts created at or after the cutoff, most recent
// first.
func (r *Repository) FactsSince(ctx context.Context, cutoff time.Time) ([]entities.Fact, error) {
	return r.queryFacts(ctx, factSelect+` WHERE created_at >= $1 ORDER BY created_at DESC`, cutoff)
}

// DeleteFactsByEntry removes all facts of an entry.
func (r *Repository) DeleteFactsByEntry(ctx context.Context, entryID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM facts WHERE entry_id = $1`, entryID); err != nil {
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
		ORDER BY MAX(created_at) DESC, COUNT(*) DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying topics: %w", err)
	}
	defer rows.Close()

	var topics []entities.Topic
	for rows.Next() {
		var t entities.Topic
		if err := rows.Scan(&t.Name, &t.FactCount, &t.LatestTimestamp); err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
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

	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_sessions (id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4)`,
		session.ID, session.Title, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// GetSession returns a session by ID, or ErrNotFound.
func (r *Repository) GetSession(ctx context.Context, id string) (*entities.ChatSession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT s.id, s.title, s.created_at, s.updated_at,
			(SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.id)
		FROM chat_sessions s
		WHERE s.id = $1`, id)

	var session entities.ChatSession
	err := row.Scan(&session.ID, &session.Title, &session.CreatedAt, &session.UpdatedAt, &session.MessageCount)
	if errors.Is(err, pgx.ErrNoRows) {
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
		ORDER BY s.updated_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*entities.ChatSession
	for rows.Next() {
		var session entities.ChatSession
		if err := rows.Scan(&session.ID, &session.Title, &session.CreatedAt,
			&session.UpdatedAt, &session.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// UpdateSessionTitle sets a session's title.
func (r *Repository) UpdateSessionTitle(ctx context.Context, id, title string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE chat_sessions SET title = $1 WHERE id = $2`, title, id)
	if err != nil {
		return fmt.Errorf("updating session title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, entities.ErrNotFound)
	}
	return nil
}

// DeleteSession removes a session; messages cascade.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, entities.ErrNotFound)
	}
	return nil
}

// AppendMessage appends a message to its session, assigning the next
// sequence number atomically, and bumps the session's updated_at. The
// session row is locked for the duration of the transaction so concurrent
// appends to one session serialize.
func (r *Repository) AppendMessage(ctx context.Context, msg *entities.ChatMessage) error {
	factIDs, err := json.Marshal(msg.RelevantFactIDs)
	if err != nil {
		return fmt.Errorf("marshaling fact ids: %w", err)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = timeNow().UTC()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists int
	err = tx.QueryRow(ctx, `SELECT 1 FROM chat_sessions WHERE id = $1 FOR UPDATE`, msg.SessionID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("session %s: %w", msg.SessionID, entities.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("locking session: %w", err)
	}

	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM chat_messages WHERE session_id = $1`,
		msg.SessionID).Scan(&msg.Seq); err != nil {
		return fmt.Errorf("assigning sequence: %w", err)
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO chat_messages (session_id, seq, role, content, relevant_fact_ids, context_facts_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		msg.SessionID, msg.Seq, string(msg.Role), msg.Content, factIDs,
		msg.ContextFactsUsed, msg.CreatedAt,
	).Scan(&msg.ID); err != nil {
		return fmt.Errorf("appending message: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE chat_sessions SET updated_at = $1 WHERE id = $2`,
		timeNow().UTC(), msg.SessionID); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
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
			WHERE session_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) latest
		ORDER BY seq ASC`

	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := r.pool.Query(ctx, query, sessionID, limitArg)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []entities.ChatMessage
	for rows.Next() {
		var msg entities.ChatMessage
		var role string
		var factIDs []byte
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Seq, &role, &msg.Content,
			&factIDs, &msg.ContextFactsUsed, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = entities.ChatRole(role)
		if err := json.Unmarshal(factIDs, &msg.RelevantFactIDs); err != nil {
			return nil, fmt.Errorf("unmarshaling fact ids: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

const factSelect = `
	SELECT id, entry_id, text, topic, fact_type, snippet, embedding, created_at
	FROM facts`

func (r *Repository) queryFacts(ctx context.Context, query string, args ...any) ([]entities.Fact, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	var facts []entities.Fact
	for rows.Next() {
		var f entities.Fact
		var factType string
		var embedding []byte
		if err := rows.Scan(&f.ID, &f.EntryID, &f.Text, &f.Topic, &factType,
			&f.Snippet, &embedding, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		f.Type = entities.FactType(factType)
		if err := json.Unmarshal(embedding, &f.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshaling embedding: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
