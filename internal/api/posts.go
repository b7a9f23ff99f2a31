package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/reclaimhq/reclaim/internal/embeddings"
	"github.com/reclaimhq/reclaim/internal/encryption"
	"github.com/reclaimhq/reclaim/internal/events"
	"github.com/reclaimhq/reclaim/internal/matching"
	"github.com/reclaimhq/reclaim/internal/store"
)

// PostsHandler exposes similarity matching and semantic search over posts.
type PostsHandler struct {
	engine    *matching.Engine
	refresher *matching.Refresher
	encryptor *encryption.Encryptor
	publisher *events.Publisher
	logger    *slog.Logger
}

// NewPostsHandler creates a new PostsHandler. encryptor and publisher may be nil.
func NewPostsHandler(engine *matching.Engine, refresher *matching.Refresher, encryptor *encryption.Encryptor, publisher *events.Publisher, logger *slog.Logger) *PostsHandler {
	return &PostsHandler{
		engine:    engine,
		refresher: refresher,
		encryptor: encryptor,
		publisher: publisher,
		logger:    logger,
	}
}

// matchItem is one similar-post result. ContactToken is an opaque reference the
// chat service can redeem to reach the candidate's author; the raw author id is
// never exposed to browsing users.
type matchItem struct {
	Post         *store.Post `json:"post"`
	Similarity   float64     `json:"similarity"`
	ContactToken string      `json:"contact_token,omitempty"`
}

func (h *PostsHandler) matchItems(matches []store.PostMatch) []matchItem {
	items := make([]matchItem, 0, len(matches))
	for _, m := range matches {
		item := matchItem{Post: m.Post, Similarity: m.Similarity}
		if h.encryptor != nil {
			tok, err := h.encryptor.Encrypt(m.Post.ID.String() + ":" + m.Post.AuthorID.String())
			if err == nil {
				item.ContactToken = tok
			}
		}
		items = append(items, item)
	}
	return items
}

// Similar handles GET /posts/{id}/similar.
func (h *PostsHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid post ID")
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	result, err := h.engine.FindSimilar(r.Context(), id, limit)
	if err != nil {
		h.writeMatchingError(w, err, "Failed to find similar posts")
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"is_ready": result.Ready,
		"status":   result.Status,
		"items":    h.matchItems(result.Items),
	})
}

// SearchRequest is the request body for semantic search.
type SearchRequest struct {
	Text      string   `json:"text"`
	PostType  *string  `json:"post_type,omitempty"`
	Latitude  *float64 `json:"lat,omitempty"`
	Longitude *float64 `json:"lon,omitempty"`
	RadiusKm  *float64 `json:"radius_km,omitempty"`
	Page      int      `json:"page"`
	PageSize  int      `json:"page_size"`
}

// Search handles POST /posts/search.
func (h *PostsHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	filters := matching.SearchFilters{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		RadiusKm:  req.RadiusKm,
	}
	if req.PostType != nil {
		pt := store.PostType(*req.PostType)
		filters.PostType = &pt
	}

	page, err := h.engine.SearchBySemantic(r.Context(), req.Text, filters, req.Page, req.PageSize)
	if err != nil {
		h.writeMatchingError(w, err, "Search failed")
		return
	}

	if h.publisher != nil {
		_ = h.publisher.PostSearched(r.Context(), req.Text, len(page.Items))
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"items":       h.matchItems(page.Items),
		"total_count": page.TotalCount,
	})
}

// Refresh handles POST /posts/{id}/refresh, a manual re-embed trigger.
func (h *PostsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid post ID")
		return
	}

	if err := h.refresher.Refresh(r.Context(), id); err != nil {
		h.writeMatchingError(w, err, "Embedding refresh failed")
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"refreshed": true})
}

func (h *PostsHandler) writeMatchingError(w http.ResponseWriter, err error, fallback string) {
	var verr *matching.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", verr.Error())
	case errors.Is(err, matching.ErrPostNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Post not found")
	case errors.Is(err, matching.ErrDataCorruption):
		h.logger.Error("data corruption detected", "error", err)
		writeError(w, http.StatusInternalServerError, "DATA_CORRUPTION", "Post embedding state is inconsistent")
	case errors.Is(err, embeddings.ErrRateLimited):
		writeError(w, http.StatusServiceUnavailable, "PROVIDER_ERROR", "Embedding provider rate limited")
	case errors.Is(err, embeddings.ErrProviderUnavailable), errors.Is(err, embeddings.ErrMalformedResponse):
		writeError(w, http.StatusBadGateway, "PROVIDER_ERROR", "Embedding provider failed")
	default:
		h.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", fallback)
	}
}
