// Package api provides HTTP handlers for the Reclaim REST API.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/reclaimhq/reclaim/internal/events"
	"github.com/reclaimhq/reclaim/internal/store"
)

// HealthHandler provides health and stats endpoints.
type HealthHandler struct {
	db        *store.DB
	bus       *events.Client
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *store.DB, bus *events.Client) *HealthHandler {
	return &HealthHandler{
		db:        db,
		bus:       bus,
		startTime: time.Now(),
	}
}

// Health returns the service health status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbStatus := "connected"
	if err := h.db.HealthCheck(ctx); err != nil {
		dbStatus = "disconnected"
	}

	busStatus := "disconnected"
	if h.bus != nil && h.bus.IsConnected() {
		busStatus = "connected"
	}

	resp := map[string]any{
		"status":         "healthy",
		"database":       dbStatus,
		"event_bus":      busStatus,
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	}

	if dbStatus == "disconnected" {
		resp["status"] = "degraded"
	}

	writeJSON(w, http.StatusOK, resp)
}

// Stats returns embedding pipeline statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, _ := store.CountPosts(ctx, h.db.DBTX())
	counts, err := store.EmbeddingStatusCounts(ctx, h.db.DBTX())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"posts_total":     total,
		"posts_by_status": counts,
		"uptime_seconds":  int(time.Since(h.startTime).Seconds()),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
		"meta": map[string]any{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeSuccess writes a standard success response.
func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{
		"data": data,
		"meta": map[string]any{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}
