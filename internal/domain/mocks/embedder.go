// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"

	"github.com/rememo/rememo/internal/domain/entities"
)

// Embedder is a mock implementation of ports.Embedder.
//
// When Vectors is set, texts are embedded by exact lookup, which lets tests
// construct a controlled semantic space; unknown texts fall back to
// EmbeddingResult. The zero Dim defaults to the length of the returned
// vector.
type Embedder struct {
	EmbeddingResult []float32
	Vectors         map[string][]float32
	Dim             int
	Err             error

	EmbedCallCount int
}

// Embed returns the configured embedding or error.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.EmbedCallCount++
	if m.Err != nil {
		return nil, m.Err
	}
	if v, ok := m.Vectors[text]; ok {
		return v, nil
	}
	return m.EmbeddingResult, nil
}

// EmbedBatch returns embeddings for multiple texts.
func (m *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := m.Vectors[text]; ok {
			result[i] = v
			continue
		}
		result[i] = m.EmbeddingResult
	}
	return result, nil
}

// Dimension returns the configured dimension.
func (m *Embedder) Dimension() int {
	if m.Dim > 0 {
		return m.Dim
	}
	if len(m.EmbeddingResult) > 0 {
		return len(m.EmbeddingResult)
	}
	for _, v := range m.Vectors {
		return len(v)
	}
	return 0
}

// Unavailable returns an Embedder that always fails as unreachable.
func Unavailable() *Embedder {
	return &Embedder{Err: entities.ErrProviderUnavailable}
}
