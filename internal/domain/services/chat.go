package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/domain/ports"
)

const (
	// DefaultContextFacts is how many retrieved facts ground a chat reply.
	DefaultContextFacts = 5
	// DefaultHistoryLimit is how many prior messages accompany a reply.
	DefaultHistoryLimit = 10
	// DefaultReplyTimeout bounds a single reply generation call.
	DefaultReplyTimeout = 60 * time.Second
	// defaultSessionTitleLen truncates the first message into a title.
	defaultSessionTitleLen = 50
)

// ChatOptions controls chat session behavior.
type ChatOptions struct {
	// ContextFacts is how many facts to retrieve per message; zero means
	// the default.
	ContextFacts int
	// HistoryLimit is how much history to send to the LLM; zero means the
	// default.
	HistoryLimit int
	// ReplyTimeout bounds reply generation; zero means the default.
	ReplyTimeout time.Duration
	// Threshold is the minimum similarity for a fact to be used as
	// context; zero means the retrieval default.
	Threshold float64
}

func (o ChatOptions) withDefaults() ChatOptions {
	if o.ContextFacts <= 0 {
		o.ContextFacts = DefaultContextFacts
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.ReplyTimeout <= 0 {
		o.ReplyTimeout = DefaultReplyTimeout
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultSimilarityThreshold
	}
	return o
}

// ChatService orchestrates chat sessions: it appends messages, retrieves
// grounding facts and generates assistant replies. Messages within one
// session are strictly ordered; concurrent sends on the same session are
// serialized while different sessions proceed independently.
type ChatService struct {
	store    ports.Store
	embedder ports.Embedder
	index    ports.VectorIndex
	llm      ports.LLMClient
	opts     ChatOptions

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// NewChatService creates a new chat service.
func NewChatService(store ports.Store, embedder ports.Embedder, index ports.VectorIndex, llm ports.LLMClient, opts ChatOptions) *ChatService {
	return &ChatService{
		store:    store,
		embedder: embedder,
		index:    index,
		llm:      llm,
		opts:     opts.withDefaults(),
		sessions: make(map[string]*sync.Mutex),
	}
}

// CreateSession creates a new empty chat session.
func (s *ChatService) CreateSession(ctx context.Context, title string) (*entities.ChatSession, error) {
	session := &entities.ChatSession{
		ID:    uuid.New().String(),
		Title: strings.TrimSpace(title),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return session, nil
}

// GetSession returns a session with up to limit of its messages.
func (s *ChatService) GetSession(ctx context.Context, id string, limit int) (*entities.ChatSession, []entities.ChatMessage, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("loading session: %w", err)
	}
	messages, err := s.store.SessionMessages(ctx, id, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("loading messages: %w", err)
	}
	return session, messages, nil
}

// ListSessions returns sessions ordered by most recent activity.
func (s *ChatService) ListSessions(ctx context.Context, limit int) ([]*entities.ChatSession, error) {
	sessions, err := s.store.ListSessions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes a session and its messages.
func (s *ChatService) DeleteSession(ctx context.Context, id string) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// SendMessage appends the user message to the session, retrieves facts
// relevant to it, generates an assistant reply grounded in those facts and
// appends it. The returned message records which facts were used. Sends on
// the same session are serialized so sequence numbers form a strict total
// order.
func (s *ChatService) SendMessage(ctx context.Context, sessionID, text string) (*entities.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("sending message: empty message")
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	history, err := s.store.SessionMessages(ctx, sessionID, s.opts.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	userMsg := &entities.ChatMessage{
		SessionID: sessionID,
		Role:      entities.ChatRoleUser,
		Content:   text,
	}
	if err := s.store.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("appending user message: %w", err)
	}

	// An untitled session takes its title from the first message.
	if session.Title == "" && session.MessageCount == 0 {
		session.Title = truncateTitle(text)
		if err := s.store.UpdateSessionTitle(ctx, sessionID, session.Title); err != nil {
			return nil, fmt.Errorf("titling session: %w", err)
		}
	}

	facts := s.contextFacts(ctx, text)

	var reply string
	err = retryTransient(ctx, func() error {
		replyCtx, cancel := context.WithTimeout(ctx, s.opts.ReplyTimeout)
		defer cancel()
		var llmErr error
		reply, llmErr = s.llm.ChatReply(replyCtx, text, history, facts)
		return llmErr
	})
	if err != nil {
		return nil, fmt.Errorf("generating reply: %w", err)
	}

	factIDs := make([]string, len(facts))
	for i, f := range facts {
		factIDs[i] = f.ID
	}
	assistantMsg := &entities.ChatMessage{
		SessionID:        sessionID,
		Role:             entities.ChatRoleAssistant,
		Content:          reply,
		RelevantFactIDs:  factIDs,
		ContextFactsUsed: len(facts),
	}
	if err := s.store.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("appending assistant message: %w", err)
	}
	return assistantMsg, nil
}

// questionFactSample is how many recent facts inform question suggestions.
const questionFactSample = 10

// SuggestQuestions proposes questions the user could explore, grounded in
// their recent facts and optional free-form context. The second return
// value is how many facts informed the suggestions.
func (s *ChatService) SuggestQuestions(ctx context.Context, contextText string) ([]string, int, error) {
	facts, err := s.store.RecentFacts(ctx, questionFactSample)
	if err != nil {
		return nil, 0, fmt.Errorf("loading recent facts: %w", err)
	}

	var questions []string
	err = retryTransient(ctx, func() error {
		var llmErr error
		questions, llmErr = s.llm.SuggestQuestions(ctx, contextText, facts)
		return llmErr
	})
	if err != nil {
		return nil, 0, fmt.Errorf("suggesting questions: %w", err)
	}
	return questions, len(facts), nil
}

// contextFacts retrieves facts relevant to the message. Retrieval is best
// effort for chat: when embedding or search fails the reply proceeds
// ungrounded rather than failing the message.
func (s *ChatService) contextFacts(ctx context.Context, text string) []entities.Fact {
	var vector []float32
	err := retryTransient(ctx, func() error {
		var embedErr error
		vector, embedErr = s.embedder.Embed(ctx, text)
		return embedErr
	})
	if err != nil {
		return nil
	}
	matches, err := s.index.Search(ctx, vector, s.opts.ContextFacts, s.opts.Threshold)
	if err != nil {
		return nil
	}
	facts := make([]entities.Fact, len(matches))
	for i, m := range matches {
		facts[i] = m.Fact
	}
	return facts
}

func (s *ChatService) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.sessions[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.sessions[sessionID] = lock
	}
	return lock
}

func truncateTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= defaultSessionTitleLen {
		return text
	}
	return strings.TrimSpace(string(runes[:defaultSessionTitleLen])) + "..."
}
