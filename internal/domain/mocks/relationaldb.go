package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rememo/rememo/internal/domain/entities"
)

// Store is an in-memory mock implementation of ports.Store. It is safe for
// concurrent use so chat ordering tests can hammer it from many goroutines.
type Store struct {
	mu       sync.Mutex
	Err      error
	entries  map[int64]*entities.JournalEntry
	facts    []entities.Fact
	sessions map[string]*entities.ChatSession
	messages map[string][]entities.ChatMessage
	nextID   int64
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		entries:  make(map[int64]*entities.JournalEntry),
		sessions: make(map[string]*entities.ChatSession),
		messages: make(map[string][]entities.ChatMessage),
	}
}

// EnsureSchema is a no-op.
func (m *Store) EnsureSchema(ctx context.Context) error { return m.Err }

// Close is a no-op.
func (m *Store) Close() error { return nil }

// CreateEntry inserts a draft entry.
func (m *Store) CreateEntry(ctx context.Context, entry *entities.JournalEntry) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	entry.ID = m.nextID
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if entry.Status == "" {
		entry.Status = entities.EntryStatusDraft
	}
	cp := *entry
	m.entries[entry.ID] = &cp
	return nil
}

// GetEntry returns an entry by ID.
func (m *Store) GetEntry(ctx context.Context, id int64) (*entities.JournalEntry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %d: %w", id, entities.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

// ListEntries returns one page of entries.
func (m *Store) ListEntries(ctx context.Context, page, limit int, search string) ([]*entities.JournalEntry, int, error) {
	if m.Err != nil {
		return nil, 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*entities.JournalEntry
	for _, e := range m.entries {
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Title), strings.ToLower(search)) &&
			!strings.Contains(strings.ToLower(e.Body), strings.ToLower(search)) {
			continue
		}
		cp := *e
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	total := len(all)
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// UpdateEntry updates an existing entry.
func (m *Store) UpdateEntry(ctx context.Context, entry *entities.JournalEntry) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entry.ID]; !ok {
		return fmt.Errorf("entry %d: %w", entry.ID, entities.ErrNotFound)
	}
	entry.UpdatedAt = time.Now().UTC()
	cp := *entry
	m.entries[entry.ID] = &cp
	return nil
}

// DeleteEntry removes an entry and its facts.
func (m *Store) DeleteEntry(ctx context.Context, id int64) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return fmt.Errorf("entry %d: %w", id, entities.ErrNotFound)
	}
	delete(m.entries, id)
	kept := m.facts[:0]
	for i := range m.facts {
		if m.facts[i].EntryID != id {
			kept = append(kept, m.facts[i])
		}
	}
	m.facts = kept
	return nil
}

// SaveFacts appends fact rows.
func (m *Store) SaveFacts(ctx context.Context, facts []entities.Fact) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts = append(m.facts, facts...)
	return nil
}

// FactsByEntry returns all facts of an entry in creation order.
func (m *Store) FactsByEntry(ctx context.Context, entryID int64) ([]entities.Fact, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Fact
	for i := range m.facts {
		if m.facts[i].EntryID == entryID {
			out = append(out, m.facts[i])
		}
	}
	return out, nil
}

// FactsByTopic returns facts matching a topic label.
func (m *Store) FactsByTopic(ctx context.Context, topic string, limit int) ([]entities.Fact, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Fact
	for i := range m.facts {
		if strings.EqualFold(m.facts[i].Topic, topic) {
			out = append(out, m.facts[i])
		}
	}
	sortFactsRecentFirst(out)
	return capFacts(out, limit), nil
}

// RecentFacts returns the most recent facts.
func (m *Store) RecentFacts(ctx context.Context, limit int) ([]entities.Fact, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]entities.Fact(nil), m.facts...)
	sortFactsRecentFirst(out)
	return capFacts(out, limit), nil
}

// FactsSince returns facts created at or after the cutoff.
func (m *Store) FactsSince(ctx context.Context, cutoff time.Time) ([]entities.Fact, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Fact
	for i := range m.facts {
		if !m.facts[i].CreatedAt.Before(cutoff) {
			out = append(out, m.facts[i])
		}
	}
	sortFactsRecentFirst(out)
	return out, nil
}

// DeleteFactsByEntry removes all facts of an entry.
func (m *Store) DeleteFactsByEntry(ctx context.Context, entryID int64) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.facts[:0]
	for i := range m.facts {
		if m.facts[i].EntryID != entryID {
			kept = append(kept, m.facts[i])
		}
	}
	m.facts = kept
	return nil
}

// RecentTopics groups facts by explicit label.
func (m *Store) RecentTopics(ctx context.Context, limit int) ([]entities.Topic, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byName := make(map[string]*entities.Topic)
	for i := range m.facts {
		name := m.facts[i].Topic
		if name == "" {
			continue
		}
		t, ok := byName[name]
		if !ok {
			t = &entities.Topic{Name: name, Kind: entities.GroupingExplicitLabel}
			byName[name] = t
		}
		t.FactCount++
		if m.facts[i].CreatedAt.After(t.LatestTimestamp) {
			t.LatestTimestamp = m.facts[i].CreatedAt
		}
	}
	topics := make([]entities.Topic, 0, len(byName))
	for _, t := range byName {
		topics = append(topics, *t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if !topics[i].LatestTimestamp.Equal(topics[j].LatestTimestamp) {
			return topics[i].LatestTimestamp.After(topics[j].LatestTimestamp)
		}
		return topics[i].FactCount > topics[j].FactCount
	})
	if limit > 0 && len(topics) > limit {
		topics = topics[:limit]
	}
	return topics, nil
}

// CreateSession inserts a new chat session.
func (m *Store) CreateSession(ctx context.Context, session *entities.ChatSession) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

// GetSession returns a session by ID.
func (m *Store) GetSession(ctx context.Context, id string) (*entities.ChatSession, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, entities.ErrNotFound)
	}
	cp := *s
	cp.MessageCount = len(m.messages[id])
	return &cp, nil
}

// ListSessions returns sessions ordered by most recently updated.
func (m *Store) ListSessions(ctx context.Context, limit int) ([]*entities.ChatSession, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entities.ChatSession
	for id, s := range m.sessions {
		cp := *s
		cp.MessageCount = len(m.messages[id])
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateSessionTitle sets a session's title.
func (m *Store) UpdateSessionTitle(ctx context.Context, id, title string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, entities.ErrNotFound)
	}
	s.Title = title
	return nil
}

// DeleteSession removes a session and its messages.
func (m *Store) DeleteSession(ctx context.Context, id string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, entities.ErrNotFound)
	}
	delete(m.sessions, id)
	delete(m.messages, id)
	return nil
}

// AppendMessage appends a message with the next sequence number.
func (m *Store) AppendMessage(ctx context.Context, msg *entities.ChatMessage) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[msg.SessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", msg.SessionID, entities.ErrNotFound)
	}
	msgs := m.messages[msg.SessionID]
	msg.Seq = int64(len(msgs)) + 1
	msg.ID = msg.Seq
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	m.messages[msg.SessionID] = append(msgs, *msg)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// SessionMessages returns messages of a session in append order.
func (m *Store) SessionMessages(ctx context.Context, sessionID string, limit int) ([]entities.ChatMessage, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := append([]entities.ChatMessage(nil), m.messages[sessionID]...)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func sortFactsRecentFirst(facts []entities.Fact) {
	sort.SliceStable(facts, func(i, j int) bool {
		return facts[i].CreatedAt.After(facts[j].CreatedAt)
	})
}

func capFacts(facts []entities.Fact, limit int) []entities.Fact {
	if limit > 0 && len(facts) > limit {
		return facts[:limit]
	}
	return facts
}
