package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rememo/rememo/internal/domain/mocks"
	"github.com/rememo/rememo/internal/domain/services"
)

// testDeps bundles the mocks behind a router so handler tests can reach in
// and adjust behavior per case.
type testDeps struct {
	router   http.Handler
	store    *mocks.Store
	embedder *mocks.Embedder
	index    *mocks.VectorIndex
	llm      *mocks.LLMClient
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()

	store := mocks.NewStore()
	embedder := &mocks.Embedder{
		EmbeddingResult: []float32{1, 0, 0},
		Vectors:         map[string][]float32{},
	}
	index := &mocks.VectorIndex{}
	llm := &mocks.LLMClient{
		Reflection: "A synthesized reflection.",
		Reply:      "A chat reply.",
	}

	router := NewRouter(Deps{
		Store:     store,
		Ingestion: services.NewIngestionService(store, embedder, index, llm, services.IngestionOptions{}),
		Retrieval: services.NewRetrievalService(store, embedder, index, llm, services.RetrievalOptions{}),
		Topics:    services.NewTopicService(store),
		Insights:  services.NewInsightsService(store, llm),
		Chat:      services.NewChatService(store, embedder, index, llm, services.ChatOptions{}),
		Probes: map[string]Probe{
			"store": func(ctx context.Context) error { return nil },
		},
		Logger: zerolog.Nop(),
	})

	return &testDeps{
		router:   router,
		store:    store,
		embedder: embedder,
		index:    index,
		llm:      llm,
	}
}

// do performs a request against the router and decodes the JSON body.
func (d *testDeps) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	d.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec.Code, decoded
}

func TestRouter_MethodMatching(t *testing.T) {
	deps := newTestDeps(t)

	status, _ := deps.do(t, http.MethodDelete, "/api/journal/entries", nil)
	require.Equal(t, http.StatusMethodNotAllowed, status)

	status, _ = deps.do(t, http.MethodGet, "/api/unknown", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		deps := newTestDeps(t)

		status, body := deps.do(t, http.MethodGet, "/api/health", nil)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "healthy", body["status"])
	})

	t.Run("reports failing dependency", func(t *testing.T) {
		store := mocks.NewStore()
		router := NewRouter(Deps{
			Store:  store,
			Topics: services.NewTopicService(store),
			Probes: map[string]Probe{
				"vectordb": func(ctx context.Context) error { return errors.New("connection refused") },
			},
			Logger: zerolog.Nop(),
		})

		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "unhealthy", body["status"])
		deps := body["dependencies"].(map[string]any)
		require.Contains(t, deps["vectordb"], "connection refused")
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	logged := buf.String()
	require.Contains(t, logged, `"path":"/api/health"`)
	require.Contains(t, logged, `"status":418`)
}

func TestRecover(t *testing.T) {
	handler := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/journal/entries", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Internal Server Error","code":500}`, rec.Body.String())
}
