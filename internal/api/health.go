package api

import (
	"net/http"
	"time"

	"github.com/reverie-ai/reverie/internal/api/respond"
)

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	isHealthy func() bool
}

// NewHealthHandler wires the aggregated service health flag. A nil
// function reports healthy; main wires the real checker.
func NewHealthHandler(isHealthy func() bool) *HealthHandler {
	if isHealthy == nil {
		isHealthy = func() bool { return true }
	}
	return &HealthHandler{isHealthy: isHealthy}
}

// CheckHealth handles GET /api/health.
// Always returns 200; body reports healthy/unhealthy. 500 indicates handler failure only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	if h.isHealthy() {
		status = "healthy"
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
