package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/infrastructure/config"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbed(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the embedding", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/embeddings", r.URL.Path)
			var req embeddingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "all-minilm", req.Model)
			assert.Equal(t, "hello", req.Prompt)

			json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float64{0.1, 0.2, 0.3}})
		})

		e := NewEmbedder(config.EmbedderConfig{BaseURL: srv.URL, Dimension: 3})
		vec, err := e.Embed(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	})

	t.Run("dimension mismatch is fatal", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float64{0.1, 0.2}})
		})

		e := NewEmbedder(config.EmbedderConfig{BaseURL: srv.URL, Dimension: 3})
		_, err := e.Embed(ctx, "hello")
		assert.ErrorIs(t, err, entities.ErrDimensionMismatch)
	})

	t.Run("server error is provider unavailable", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "busy", http.StatusServiceUnavailable)
		})

		e := NewEmbedder(config.EmbedderConfig{BaseURL: srv.URL, Dimension: 3})
		_, err := e.Embed(ctx, "hello")
		assert.ErrorIs(t, err, entities.ErrProviderUnavailable)
	})

	t.Run("api error is embedding failure", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(embeddingResponse{Error: "model not loaded"})
		})

		e := NewEmbedder(config.EmbedderConfig{BaseURL: srv.URL, Dimension: 3})
		_, err := e.Embed(ctx, "hello")
		assert.ErrorIs(t, err, entities.ErrEmbeddingFailed)
	})
}

func TestEmbedBatch(t *testing.T) {
	calls := 0
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float64{float64(calls), 0}})
	})

	e := NewEmbedder(config.EmbedderConfig{BaseURL: srv.URL, Dimension: 2})
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, []float32{3, 0}, vecs[2])
}

func TestHealthPing(t *testing.T) {
	t.Run("model present", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/tags", r.URL.Path)
			w.Write([]byte(`{"models":[{"name":"all-minilm:latest"}]}`))
		})

		e := NewEmbedder(config.EmbedderConfig{BaseURL: srv.URL})
		assert.NoError(t, e.HealthPing(context.Background()))
	})

	t.Run("model missing", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"models":[{"name":"llama3"}]}`))
		})

		e := NewEmbedder(config.EmbedderConfig{BaseURL: srv.URL})
		assert.Error(t, e.HealthPing(context.Background()))
	})
}
