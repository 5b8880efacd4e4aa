// Package ollama provides an Embedder implementation using a local Ollama
// server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/infrastructure/config"
)

// VectorSize is the dimension of all-minilm vectors.
const VectorSize = 384

const defaultBaseURL = "http://localhost:11434"

// Embedder implements the Embedder interface using the Ollama embeddings
// HTTP API.
type Embedder struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

// NewEmbedder creates a new Ollama embedder.
func NewEmbedder(cfg config.EmbedderConfig) *Embedder {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	model := cfg.Model
	if model == "" {
		model = "all-minilm"
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = VectorSize
	}

	return &Embedder{
		baseURL:   strings.TrimSuffix(base, "/"),
		model:     model,
		dimension: dimension,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error"`
}

// Embed generates a vector embedding for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama: %w: %w", entities.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama embeddings status %d: %w", resp.StatusCode, entities.ErrProviderUnavailable)
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("ollama embeddings error: %s: %w", out.Error, entities.ErrEmbeddingFailed)
	}
	if len(out.Embedding) != e.dimension {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
			entities.ErrDimensionMismatch, e.model, len(out.Embedding), e.dimension)
	}

	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// EmbedBatch generates vector embeddings for multiple texts. The Ollama API
// embeds one prompt per call, so the batch is sequential.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// Dimension returns the configured vector dimension.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// HealthPing checks that the Ollama server is reachable and has the
// configured model pulled.
func (e *Embedder) HealthPing(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling ollama: %w: %w", entities.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama status %d: %w", resp.StatusCode, entities.ErrProviderUnavailable)
	}

	var data struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Errorf("decoding tags: %w", err)
	}

	want := baseModelName(e.model)
	for _, m := range data.Models {
		if baseModelName(m.Name) == want {
			return nil
		}
	}
	return fmt.Errorf("model %s not found", want)
}

func baseModelName(name string) string {
	return strings.Split(name, ":")[0]
}
