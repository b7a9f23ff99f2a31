package api

import (
	"net/http"
	"strconv"

	"github.com/reclaimhq/reclaim/internal/store"
)

// ActivityHandler exposes the pipeline activity log for operators.
type ActivityHandler struct {
	activity *store.ActivityStore
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(activity *store.ActivityStore) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// List handles GET /activity. Supports ?action= and ?limit= query params.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	var action *store.ActivityAction
	if v := r.URL.Query().Get("action"); v != "" {
		a := store.ActivityAction(v)
		action = &a
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	entries, err := h.activity.Query(r.Context(), action, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read activity log")
		return
	}
	if entries == nil {
		entries = []store.ActivityEntry{}
	}

	writeSuccess(w, http.StatusOK, map[string]any{"entries": entries})
}
