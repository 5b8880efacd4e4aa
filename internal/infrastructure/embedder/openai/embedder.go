// Package openai provides an Embedder implementation using OpenAI.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/infrastructure/config"
)

// VectorSize is the dimension of text-embedding-3-small vectors.
const VectorSize = 1536

// defaultBatchSize caps how many texts go into one embedding request.
const defaultBatchSize = 64

// Embedder implements the Embedder interface using OpenAI.
type Embedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
	batchSize int
}

// NewEmbedder creates a new OpenAI embedder.
func NewEmbedder(cfg config.EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := openai.SmallEmbedding3
	if cfg.Model != "" {
		model = openai.EmbeddingModel(cfg.Model)
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = VectorSize
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Embedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		dimension: dimension,
		batchSize: batchSize,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned: %w", entities.ErrEmbeddingFailed)
	}

	return embeddings[0], nil
}

// EmbedBatch generates vector embeddings for multiple texts, chunking the
// request at the configured batch size.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: e.model,
			Input: texts[start:end],
		})
		if err != nil {
			return nil, fmt.Errorf("creating embeddings: %w: %w", entities.ErrProviderUnavailable, err)
		}

		for _, data := range resp.Data {
			if len(data.Embedding) != e.dimension {
				return nil, fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
					entities.ErrDimensionMismatch, e.model, len(data.Embedding), e.dimension)
			}
			embeddings = append(embeddings, data.Embedding)
		}
	}

	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts: %w", len(embeddings), len(texts), entities.ErrEmbeddingFailed)
	}
	return embeddings, nil
}

// Dimension returns the configured vector dimension.
func (e *Embedder) Dimension() int {
	return e.dimension
}
