package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/domain/ports"
)

const (
	// DefaultMaxFactsPerEntry caps how many facts one entry may produce.
	DefaultMaxFactsPerEntry = 20
	// DefaultEmbedTimeout bounds a single embedding call.
	DefaultEmbedTimeout = 30 * time.Second
)

// IngestionOptions controls entry processing behavior.
type IngestionOptions struct {
	// MaxFactsPerEntry caps facts per entry; zero means the default.
	MaxFactsPerEntry int
	// EmbedTimeout bounds embedding calls; zero means the default.
	EmbedTimeout time.Duration
}

func (o IngestionOptions) withDefaults() IngestionOptions {
	if o.MaxFactsPerEntry <= 0 {
		o.MaxFactsPerEntry = DefaultMaxFactsPerEntry
	}
	if o.EmbedTimeout <= 0 {
		o.EmbedTimeout = DefaultEmbedTimeout
	}
	return o
}

// IngestionResult contains the outcome of processing one entry.
type IngestionResult struct {
	EntryID      int64
	FactsCreated int
	Facts        []entities.Fact
}

// IngestionService turns completed journal entries into embedded facts:
// fragment the body, annotate fragments with topics, embed, and store.
type IngestionService struct {
	store    ports.Store
	embedder ports.Embedder
	index    ports.VectorIndex
	llm      ports.LLMClient
	opts     IngestionOptions
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(store ports.Store, embedder ports.Embedder, index ports.VectorIndex, llm ports.LLMClient, opts IngestionOptions) *IngestionService {
	return &IngestionService{
		store:    store,
		embedder: embedder,
		index:    index,
		llm:      llm,
		opts:     opts.withDefaults(),
	}
}

// CompleteEntry marks the entry complete and runs the fact pipeline.
// Completion is idempotent: reprocessing replaces the entry's facts.
// An entry whose body strips to nothing completes successfully with zero
// facts and no store mutation.
func (s *IngestionService) CompleteEntry(ctx context.Context, entryID int64) (*IngestionResult, error) {
	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("loading entry: %w", err)
	}

	fragments := Fragment(entry.Body)
	if len(fragments) > s.opts.MaxFactsPerEntry {
		fragments = fragments[:s.opts.MaxFactsPerEntry]
	}

	if !entry.IsComplete() {
		entry.Status = entities.EntryStatusComplete
		if err := s.store.UpdateEntry(ctx, entry); err != nil {
			return nil, fmt.Errorf("marking entry complete: %w", err)
		}
	}

	if len(fragments) == 0 {
		return &IngestionResult{EntryID: entryID}, nil
	}

	facts, err := s.buildFacts(ctx, entry, fragments)
	if err != nil {
		return nil, err
	}

	// Reprocessing: drop any facts from a previous completion first.
	if err := s.index.DeleteByEntry(ctx, entryID); err != nil {
		return nil, fmt.Errorf("clearing indexed facts: %w", err)
	}
	if err := s.store.DeleteFactsByEntry(ctx, entryID); err != nil {
		return nil, fmt.Errorf("clearing stored facts: %w", err)
	}

	if err := s.store.SaveFacts(ctx, facts); err != nil {
		return nil, fmt.Errorf("saving facts: %w", err)
	}
	if err := s.index.InsertBatch(ctx, facts); err != nil {
		// Keep row and vector state consistent: a fact without its vector
		// must not be visible to readers.
		if delErr := s.store.DeleteFactsByEntry(ctx, entryID); delErr != nil {
			return nil, fmt.Errorf("indexing facts: %w (rollback failed: %v)", err, delErr)
		}
		return nil, fmt.Errorf("indexing facts: %w", err)
	}

	return &IngestionResult{
		EntryID:      entryID,
		FactsCreated: len(facts),
		Facts:        facts,
	}, nil
}

// DeleteEntry removes an entry, its facts and their vectors.
func (s *IngestionService) DeleteEntry(ctx context.Context, entryID int64) error {
	if err := s.index.DeleteByEntry(ctx, entryID); err != nil {
		return fmt.Errorf("removing indexed facts: %w", err)
	}
	if err := s.store.DeleteEntry(ctx, entryID); err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	return nil
}

// buildFacts annotates fragments, embeds them and assembles Fact values in
// fragment order.
func (s *IngestionService) buildFacts(ctx context.Context, entry *entities.JournalEntry, fragments []string) ([]entities.Fact, error) {
	annotations := s.annotate(ctx, fragments)

	var embeddings [][]float32
	err := retryTransient(ctx, func() error {
		embedCtx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout)
		defer cancel()
		var embedErr error
		embeddings, embedErr = s.embedder.EmbedBatch(embedCtx, fragments)
		return embedErr
	})
	if err != nil {
		return nil, fmt.Errorf("embedding fragments: %w", err)
	}
	if len(embeddings) != len(fragments) {
		return nil, fmt.Errorf("embedding fragments: got %d vectors for %d fragments", len(embeddings), len(fragments))
	}

	now := time.Now().UTC()
	facts := make([]entities.Fact, len(fragments))
	for i, text := range fragments {
		facts[i] = entities.Fact{
			ID:        uuid.New().String(),
			EntryID:   entry.ID,
			Text:      text,
			Topic:     annotations[i].Topic,
			Type:      annotations[i].Type,
			Snippet:   text,
			Embedding: embeddings[i],
			CreatedAt: now,
		}
	}
	return facts, nil
}

// annotate labels fragments with topics and fact types. Annotation is
// advisory: when the LLM is unreachable the facts are stored unlabeled and
// topic grouping falls back to clustering.
func (s *IngestionService) annotate(ctx context.Context, fragments []string) []ports.FactAnnotation {
	var annotations []ports.FactAnnotation
	err := retryTransient(ctx, func() error {
		var annotateErr error
		annotations, annotateErr = s.llm.Annotate(ctx, fragments)
		return annotateErr
	})
	if err != nil || len(annotations) != len(fragments) {
		annotations = make([]ports.FactAnnotation, len(fragments))
	}
	for i := range annotations {
		annotations[i].Topic = strings.ToLower(strings.TrimSpace(annotations[i].Topic))
		if !entities.ValidFactType(annotations[i].Type) {
			annotations[i].Type = entities.FactTypeFact
		}
	}
	return annotations
}
