package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/rememo/rememo/internal/api/respond"
	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/domain/services"
)

// ChatHandler handles chat session and message endpoints.
type ChatHandler struct {
	chat *services.ChatService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type messageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// SendMessage handles POST /api/chat/message. A missing session_id starts
// a new session.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respond.WriteBadRequest(w, "message is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		session, err := h.chat.CreateSession(r.Context(), "")
		if err != nil {
			respond.WriteInternalError(w, "failed to create session")
			return
		}
		sessionID = session.ID
	}

	reply, err := h.chat.SendMessage(r.Context(), sessionID, req.Message)
	if errors.Is(err, entities.ErrNotFound) {
		respond.WriteNotFound(w, "session not found")
		return
	}
	if err != nil {
		respond.WriteError(w, http.StatusBadGateway, "failed to generate reply")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"message":    reply,
	})
}

// GetHistory handles GET /api/chat/history.
func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respond.WriteBadRequest(w, "session_id is required")
		return
	}
	limit := queryInt(r, "limit", 50)

	session, messages, err := h.chat.GetSession(r.Context(), sessionID, limit)
	if errors.Is(err, entities.ErrNotFound) {
		respond.WriteNotFound(w, "session not found")
		return
	}
	if err != nil {
		respond.WriteInternalError(w, "failed to load history")
		return
	}
	if messages == nil {
		messages = []entities.ChatMessage{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session":  session,
		"messages": messages,
	})
}

// ListSessions handles GET /api/chat/sessions.
func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	sessions, err := h.chat.ListSessions(r.Context(), limit)
	if err != nil {
		respond.WriteInternalError(w, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*entities.ChatSession{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

type sessionRequest struct {
	Title string `json:"title"`
}

// CreateSession handles POST /api/chat/sessions.
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.WriteBadRequest(w, "invalid request body")
			return
		}
	}

	session, err := h.chat.CreateSession(r.Context(), req.Title)
	if err != nil {
		respond.WriteInternalError(w, "failed to create session")
		return
	}
	respond.WriteJSON(w, http.StatusCreated, session)
}

type questionsRequest struct {
	Context string `json:"context"`
}

// SuggestQuestions handles POST /api/chat/suggest-questions.
func (h *ChatHandler) SuggestQuestions(w http.ResponseWriter, r *http.Request) {
	var req questionsRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.WriteBadRequest(w, "invalid request body")
			return
		}
	}

	questions, factCount, err := h.chat.SuggestQuestions(r.Context(), req.Context)
	if err != nil {
		respond.WriteError(w, http.StatusBadGateway, "suggestions unavailable")
		return
	}
	if questions == nil {
		questions = []string{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"suggested_questions": questions,
		"context_facts_count": factCount,
	})
}

// exportMessageLimit caps how many messages a single export returns.
const exportMessageLimit = 1000

// ExportChat handles GET /api/chat/export. Supports json and txt formats.
func (h *ChatHandler) ExportChat(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respond.WriteBadRequest(w, "session_id is required")
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "txt" {
		respond.WriteBadRequest(w, "unsupported export format")
		return
	}

	session, messages, err := h.chat.GetSession(r.Context(), sessionID, exportMessageLimit)
	if errors.Is(err, entities.ErrNotFound) {
		respond.WriteNotFound(w, "session not found")
		return
	}
	if err != nil {
		respond.WriteInternalError(w, "failed to export chat")
		return
	}
	if messages == nil {
		messages = []entities.ChatMessage{}
	}

	exportedAt := time.Now().UTC()
	if format == "txt" {
		var b strings.Builder
		title := session.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "Chat Session: %s\n", title)
		fmt.Fprintf(&b, "Exported: %s\n\n", exportedAt.Format(time.RFC3339))
		for _, msg := range messages {
			fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(string(msg.Role)), msg.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(&b, "%s\n\n", msg.Content)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(b.String()))
		return
	}

	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session":     session,
		"messages":    messages,
		"exported_at": exportedAt.Format(time.RFC3339),
	})
}

// DeleteSession handles DELETE /api/chat/sessions/{id}.
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.chat.DeleteSession(r.Context(), id)
	if errors.Is(err, entities.ErrNotFound) {
		respond.WriteNotFound(w, "session not found")
		return
	}
	if err != nil {
		respond.WriteInternalError(w, "failed to delete session")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}
