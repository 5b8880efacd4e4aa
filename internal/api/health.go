package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rememo/rememo/internal/api/respond"
)

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// HealthHandler handles health check endpoints
type HealthHandler struct {
	probes map[string]Probe
}

// NewHealthHandler creates a health handler over the given dependency
// probes.
func NewHealthHandler(probes map[string]Probe) *HealthHandler {
	return &HealthHandler{probes: probes}
}

// CheckHealth handles GET /api/health
// Always returns 200; body reports healthy/unhealthy per dependency.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	deps := make(map[string]string, len(h.probes))
	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			deps[name] = err.Error()
			status = "unhealthy"
		} else {
			deps[name] = "ok"
		}
	}

	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":       status,
		"dependencies": deps,
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}
