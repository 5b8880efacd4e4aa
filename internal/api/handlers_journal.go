package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/rememo/rememo/internal/api/respond"
	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/domain/ports"
	"github.com/rememo/rememo/internal/domain/services"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// JournalHandler handles journal entry endpoints.
type JournalHandler struct {
	store     ports.Store
	ingestion *services.IngestionService
}

// NewJournalHandler creates a new journal handler.
func NewJournalHandler(store ports.Store, ingestion *services.IngestionService) *JournalHandler {
	return &JournalHandler{store: store, ingestion: ingestion}
}

type entryRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// CreateEntry handles POST /api/journal/entries.
func (h *JournalHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid request body")
		return
	}

	entry := &entities.JournalEntry{
		Title:  req.Title,
		Body:   req.Body,
		Status: entities.EntryStatusDraft,
	}
	if err := h.store.CreateEntry(r.Context(), entry); err != nil {
		respond.WriteInternalError(w, "failed to create entry")
		return
	}
	respond.WriteJSON(w, http.StatusCreated, entry)
}

// ListEntries handles GET /api/journal/entries.
func (h *JournalHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	search := r.URL.Query().Get("search")

	entries, total, err := h.store.ListEntries(r.Context(), page, limit, search)
	if err != nil {
		respond.WriteInternalError(w, "failed to list entries")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// GetEntry handles GET /api/journal/entries/{id}.
func (h *JournalHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	entry, err := h.store.GetEntry(r.Context(), id)
	if errors.Is(err, entities.ErrNotFound) {
		respond.WriteNotFound(w, "entry not found")
		return
	}
	if err != nil {
		respond.WriteInternalError(w, "failed to load entry")
		return
	}

	facts, err := h.store.FactsByEntry(r.Context(), id)
	if err != nil {
		respond.WriteInternalError(w, "failed to load facts")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entry": entry,
		"facts": facts,
	})
}

// UpdateEntry handles PUT /api/journal/entries/{id}. The body of a
// completed entry is immutable; only its title may change.
func (h *JournalHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid request body")
		return
	}

	entry, err := h.store.GetEntry(r.Context(), id)
	if errors.Is(err, entities.ErrNotFound) {
		respond.WriteNotFound(w, "entry not found")
		return
	}
	if err != nil {
		respond.WriteInternalError(w, "failed to load entry")
		return
	}

	if entry.IsComplete() && req.Body != entry.Body {
		respond.WriteError(w, http.StatusConflict, "completed entries cannot change body")
		return
	}

	entry.Title = req.Title
	if !entry.IsComplete() {
		entry.Body = req.Body
	}
	if err := h.store.UpdateEntry(r.Context(), entry); err != nil {
		respond.WriteInternalError(w, "failed to update entry")
		return
	}
	respond.WriteJSON(w, http.StatusOK, entry)
}

// DeleteEntry handles DELETE /api/journal/entries/{id}. Facts and vectors
// are removed with the entry.
func (h *JournalHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := h.ingestion.DeleteEntry(r.Context(), id)
	if errors.Is(err, entities.ErrNotFound) {
		respond.WriteNotFound(w, "entry not found")
		return
	}
	if err != nil {
		respond.WriteInternalError(w, "failed to delete entry")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}

// CompleteEntry handles POST /api/journal/entries/{id}/complete. It marks
// the entry complete and runs the fact extraction pipeline.
func (h *JournalHandler) CompleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	result, err := h.ingestion.CompleteEntry(r.Context(), id)
	if errors.Is(err, entities.ErrNotFound) {
		respond.WriteNotFound(w, "entry not found")
		return
	}
	if err != nil {
		respond.WriteError(w, http.StatusBadGateway, "failed to process entry")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entry_id":      result.EntryID,
		"facts_created": result.FactsCreated,
	})
}

// pathID parses the {id} path variable, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respond.WriteBadRequest(w, "invalid entry id")
		return 0, false
	}
	return id, true
}

// queryInt parses an integer query parameter, falling back to a default.
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
