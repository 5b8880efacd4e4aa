// Package api wires the HTTP surface of the service: routing, handlers,
// request logging and panic recovery.
package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/rememo/rememo/internal/domain/ports"
	"github.com/rememo/rememo/internal/domain/services"
)

// Deps carries everything the router needs.
type Deps struct {
	Store     ports.Store
	Ingestion *services.IngestionService
	Retrieval *services.RetrievalService
	Topics    *services.TopicService
	Insights  *services.InsightsService
	Chat      *services.ChatService
	Probes    map[string]Probe
	Logger    zerolog.Logger
}

// NewRouter builds the full API router.
func NewRouter(deps Deps) *mux.Router {
	root := mux.NewRouter()
	root.Use(Recover)
	root.Use(RequestLogger(deps.Logger))

	journal := NewJournalHandler(deps.Store, deps.Ingestion)
	root.HandleFunc("/api/journal/entries", journal.CreateEntry).Methods("POST")
	root.HandleFunc("/api/journal/entries", journal.ListEntries).Methods("GET")
	root.HandleFunc("/api/journal/entries/{id}", journal.GetEntry).Methods("GET")
	root.HandleFunc("/api/journal/entries/{id}", journal.UpdateEntry).Methods("PUT")
	root.HandleFunc("/api/journal/entries/{id}", journal.DeleteEntry).Methods("DELETE")
	root.HandleFunc("/api/journal/entries/{id}/complete", journal.CompleteEntry).Methods("POST")

	ai := NewAIHandler(deps.Retrieval, deps.Topics, deps.Insights)
	root.HandleFunc("/api/ai/search-similar", ai.SearchSimilar).Methods("POST")
	root.HandleFunc("/api/ai/get-reflection", ai.GetReflection).Methods("POST")
	root.HandleFunc("/api/ai/topics", ai.GetTopics).Methods("GET")
	root.HandleFunc("/api/ai/topic-clusters", ai.GetTopicClusters).Methods("GET")
	root.HandleFunc("/api/ai/quick-insights", ai.QuickInsights).Methods("GET")
	root.HandleFunc("/api/ai/suggest-topics", ai.SuggestTopics).Methods("GET")
	root.HandleFunc("/api/ai/suggest-prompt", ai.SuggestPrompt).Methods("POST")
	root.HandleFunc("/api/ai/analyze-patterns", ai.AnalyzePatterns).Methods("GET")

	chat := NewChatHandler(deps.Chat)
	root.HandleFunc("/api/chat/message", chat.SendMessage).Methods("POST")
	root.HandleFunc("/api/chat/history", chat.GetHistory).Methods("GET")
	root.HandleFunc("/api/chat/sessions", chat.ListSessions).Methods("GET")
	root.HandleFunc("/api/chat/sessions", chat.CreateSession).Methods("POST")
	root.HandleFunc("/api/chat/sessions/{id}", chat.DeleteSession).Methods("DELETE")
	root.HandleFunc("/api/chat/suggest-questions", chat.SuggestQuestions).Methods("POST")
	root.HandleFunc("/api/chat/export", chat.ExportChat).Methods("GET")

	health := NewHealthHandler(deps.Probes)
	root.HandleFunc("/api/health", health.CheckHealth).Methods("GET")

	return root
}
