package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rememo/rememo/internal/api/respond"
	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/domain/services"
)

// AIHandler handles retrieval, reflection, topic and insight endpoints.
type AIHandler struct {
	retrieval *services.RetrievalService
	topics    *services.TopicService
	insights  *services.InsightsService
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(retrieval *services.RetrievalService, topics *services.TopicService, insights *services.InsightsService) *AIHandler {
	return &AIHandler{retrieval: retrieval, topics: topics, insights: insights}
}

type searchRequest struct {
	Query     string   `json:"query"`
	Limit     int      `json:"limit"`
	Threshold *float64 `json:"similarity_threshold"`
}

// SearchSimilar handles POST /api/ai/search-similar.
func (h *AIHandler) SearchSimilar(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Query == "" {
		respond.WriteBadRequest(w, "query is required")
		return
	}

	threshold := -1.0
	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 1 {
			respond.WriteBadRequest(w, "similarity_threshold must be between 0 and 1")
			return
		}
		threshold = *req.Threshold
	}

	notes, err := h.retrieval.SearchSimilar(r.Context(), req.Query, req.Limit, threshold)
	if errors.Is(err, entities.ErrDimensionMismatch) {
		respond.WriteInternalError(w, "embedding dimension mismatch, reindex required")
		return
	}
	if err != nil {
		respond.WriteError(w, http.StatusBadGateway, "search unavailable")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results": notes,
		"count":   len(notes),
	})
}

type reflectionRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// GetReflection handles POST /api/ai/get-reflection. When synthesis fails
// but notes were retrieved, the notes are returned with a degraded flag.
func (h *AIHandler) GetReflection(w http.ResponseWriter, r *http.Request) {
	var req reflectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Query == "" {
		respond.WriteBadRequest(w, "query is required")
		return
	}

	reflection, err := h.retrieval.Reflect(r.Context(), req.Query, req.Limit)
	if err != nil && !errors.Is(err, entities.ErrSynthesisFailed) {
		respond.WriteError(w, http.StatusBadGateway, "reflection unavailable")
		return
	}

	notes := reflection.Notes
	if notes == nil {
		notes = []entities.Note{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reflection": reflection.Answer,
		"notes":      notes,
		"degraded":   reflection.Degraded,
	})
}

// GetTopics handles GET /api/ai/topics.
func (h *AIHandler) GetTopics(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)

	topics, err := h.topics.SuggestTopics(r.Context(), limit)
	if err != nil {
		respond.WriteInternalError(w, "failed to load topics")
		return
	}
	if topics == nil {
		topics = []entities.Topic{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"topics": topics})
}

// GetTopicClusters handles GET /api/ai/topic-clusters.
func (h *AIHandler) GetTopicClusters(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	nClusters := queryInt(r, "n_clusters", 3)

	clusters, err := h.topics.ClusterFacts(r.Context(), topic, nClusters)
	if err != nil {
		respond.WriteInternalError(w, "failed to cluster facts")
		return
	}
	if clusters == nil {
		clusters = []entities.FactCluster{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"clusters": clusters,
		"count":    len(clusters),
	})
}

// QuickInsights handles GET /api/ai/quick-insights.
func (h *AIHandler) QuickInsights(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)

	insights, err := h.insights.QuickInsights(r.Context(), days)
	if err != nil {
		respond.WriteError(w, http.StatusBadGateway, "insights unavailable")
		return
	}
	if insights == nil {
		insights = []string{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"insights":    insights,
		"period_days": days,
	})
}

type promptRequest struct {
	Topic string `json:"topic"`
}

// SuggestPrompt handles POST /api/ai/suggest-prompt.
func (h *AIHandler) SuggestPrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Topic == "" {
		respond.WriteBadRequest(w, "topic is required")
		return
	}

	prompt, related, err := h.insights.WritingPrompt(r.Context(), req.Topic)
	if err != nil {
		respond.WriteInternalError(w, "failed to generate prompt")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"topic":               req.Topic,
		"prompt":              prompt,
		"related_facts_count": related,
	})
}

// AnalyzePatterns handles GET /api/ai/analyze-patterns.
func (h *AIHandler) AnalyzePatterns(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)

	analysis, err := h.insights.AnalyzePatterns(r.Context(), days)
	if err != nil {
		respond.WriteInternalError(w, "failed to analyze patterns")
		return
	}
	respond.WriteJSON(w, http.StatusOK, analysis)
}

// SuggestTopics handles GET /api/ai/suggest-topics.
func (h *AIHandler) SuggestTopics(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 5)

	suggestions, err := h.insights.SuggestWritingTopics(r.Context(), limit)
	if err != nil {
		respond.WriteError(w, http.StatusBadGateway, "suggestions unavailable")
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}
