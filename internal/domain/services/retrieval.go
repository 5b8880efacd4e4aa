package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/domain/ports"
)

const (
	// DefaultSimilarityThreshold is the minimum cosine similarity for a
	// fact to count as relevant to a query.
	DefaultSimilarityThreshold = 0.55
	// DefaultSearchLimit is the number of notes returned when the caller
	// does not ask for a specific count.
	DefaultSearchLimit = 5
	// DefaultSynthesisTimeout bounds reflection synthesis calls.
	DefaultSynthesisTimeout = 60 * time.Second

	// NoHistoryReflection is returned when no stored fact is similar enough
	// to the question. A zero-result reflection is a success, not an error.
	NoHistoryReflection = "I couldn't find anything in your journal history related to this yet. Keep writing and ask again later."
)

// RetrievalOptions controls similarity search and reflection behavior.
type RetrievalOptions struct {
	// Threshold is the minimum similarity score; zero means the default.
	Threshold float64
	// Limit is the default result count; zero means the default.
	Limit int
	// SynthesisTimeout bounds LLM synthesis; zero means the default.
	SynthesisTimeout time.Duration
}

func (o RetrievalOptions) withDefaults() RetrievalOptions {
	if o.Threshold <= 0 {
		o.Threshold = DefaultSimilarityThreshold
	}
	if o.Limit <= 0 {
		o.Limit = DefaultSearchLimit
	}
	if o.SynthesisTimeout <= 0 {
		o.SynthesisTimeout = DefaultSynthesisTimeout
	}
	return o
}

// Reflection is the answer to a reflective question over past entries.
type Reflection struct {
	Question string
	Answer   string
	Notes    []entities.Note
	// Degraded is set when notes were found but synthesis failed; Answer
	// is empty and callers should present the notes alone.
	Degraded bool
}

// RetrievalService answers similarity searches and reflective questions
// against the embedded fact index.
type RetrievalService struct {
	store    ports.Store
	embedder ports.Embedder
	index    ports.VectorIndex
	llm      ports.LLMClient
	opts     RetrievalOptions
}

// NewRetrievalService creates a new retrieval service.
func NewRetrievalService(store ports.Store, embedder ports.Embedder, index ports.VectorIndex, llm ports.LLMClient, opts RetrievalOptions) *RetrievalService {
	return &RetrievalService{
		store:    store,
		embedder: embedder,
		index:    index,
		llm:      llm,
		opts:     opts.withDefaults(),
	}
}

// SearchSimilar returns the facts most similar to the query, most similar
// first. Only facts at or above the similarity threshold are returned; an
// empty result is a valid answer, not an error. A zero limit uses the
// configured default and a negative threshold uses the configured one.
func (s *RetrievalService) SearchSimilar(ctx context.Context, query string, limit int, threshold float64) ([]entities.Note, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("searching facts: empty query")
	}
	if limit <= 0 {
		limit = s.opts.Limit
	}
	if threshold < 0 {
		threshold = s.opts.Threshold
	}

	var vector []float32
	err := retryTransient(ctx, func() error {
		var embedErr error
		vector, embedErr = s.embedder.Embed(ctx, query)
		return embedErr
	})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := s.index.Search(ctx, vector, limit, threshold)
	if err != nil {
		return nil, fmt.Errorf("searching facts: %w", err)
	}

	return s.toNotes(ctx, matches), nil
}

// Reflect answers a reflective question by retrieving relevant facts and
// synthesizing an answer over them. When no facts clear the threshold the
// reflection succeeds with empty notes and no answer. When retrieval
// succeeds but synthesis fails, the reflection is returned in degraded
// form alongside ErrSynthesisFailed so callers can still show the notes.
func (s *RetrievalService) Reflect(ctx context.Context, question string, limit int) (*Reflection, error) {
	notes, err := s.SearchSimilar(ctx, question, limit, s.opts.Threshold)
	if err != nil {
		return nil, err
	}

	reflection := &Reflection{Question: question, Notes: notes}
	if len(notes) == 0 {
		reflection.Answer = NoHistoryReflection
		return reflection, nil
	}

	var answer string
	err = retryTransient(ctx, func() error {
		synthCtx, cancel := context.WithTimeout(ctx, s.opts.SynthesisTimeout)
		defer cancel()
		var llmErr error
		answer, llmErr = s.llm.Reflect(synthCtx, question, notes)
		return llmErr
	})
	if err != nil {
		reflection.Degraded = true
		return reflection, fmt.Errorf("synthesizing reflection: %w: %w", entities.ErrSynthesisFailed, err)
	}

	reflection.Answer = answer
	return reflection, nil
}

// toNotes resolves entry titles for matches. A missing entry leaves the
// title blank rather than failing the whole search.
func (s *RetrievalService) toNotes(ctx context.Context, matches []ports.Match) []entities.Note {
	notes := make([]entities.Note, 0, len(matches))
	titles := map[int64]string{}
	for _, m := range matches {
		title, ok := titles[m.Fact.EntryID]
		if !ok {
			if entry, err := s.store.GetEntry(ctx, m.Fact.EntryID); err == nil {
				title = entry.Title
			}
			titles[m.Fact.EntryID] = title
		}
		notes = append(notes, entities.Note{
			FactID:     m.Fact.ID,
			EntryID:    m.Fact.EntryID,
			EntryTitle: title,
			Text:       m.Fact.Text,
			Topic:      m.Fact.Topic,
			Score:      m.Score,
			CreatedAt:  m.Fact.CreatedAt,
		})
	}
	return notes
}
