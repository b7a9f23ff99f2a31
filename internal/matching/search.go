package matching

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/reclaimhq/reclaim/internal/embeddings"
	"github.com/reclaimhq/reclaim/internal/store"
)

// Engine answers similarity queries against Ready posts. It composes vector
// similarity with the cross-type rule, author exclusion, and geo-radius filters.
// All operations are read-only against the post store.
type Engine struct {
	posts    PostStore
	provider embeddings.Provider
	activity ActivityLogger
	config   Config
	logger   *slog.Logger
}

// NewEngine creates a search engine. activity may be nil.
func NewEngine(posts PostStore, provider embeddings.Provider, activity ActivityLogger, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		posts:    posts,
		provider: provider,
		activity: activity,
		config:   cfg,
		logger:   logger,
	}
}

// SimilarResult is the outcome of FindSimilar. Ready is false while the source
// post's embedding is still pending, in flight, or failed; that is an expected
// user-visible waiting state, not an error.
type SimilarResult struct {
	Ready  bool                  `json:"is_ready"`
	Status store.EmbeddingStatus `json:"status"`
	Items  []store.PostMatch     `json:"items"`
}

// FindSimilar ranks counterpart posts for a source post: lost posts only match
// found posts and vice versa, the source author's own posts are excluded, and
// when the source has a location candidates beyond the configured radius are
// dropped. Results are ordered by descending similarity.
func (e *Engine) FindSimilar(ctx context.Context, postID uuid.UUID, limit int) (*SimilarResult, error) {
	if limit <= 0 {
		return nil, &ValidationError{Field: "limit", Reason: "must be positive"}
	}

	source, err := e.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("loading post %s: %w", postID, err)
	}
	if source == nil {
		return nil, fmt.Errorf("find similar %s: %w", postID, ErrPostNotFound)
	}

	if source.EmbeddingStatus != store.EmbeddingReady {
		return &SimilarResult{Ready: false, Status: source.EmbeddingStatus, Items: []store.PostMatch{}}, nil
	}
	if source.Embedding == nil {
		e.logger.Error("ready post has no embedding", "post_id", postID)
		return nil, fmt.Errorf("post %s: %w", postID, ErrDataCorruption)
	}

	counterpart := store.PostFound
	if source.Type == store.PostFound {
		counterpart = store.PostLost
	}
	filter := store.VectorFilter{
		PostType:        &counterpart,
		ExcludeAuthorID: &source.AuthorID,
	}
	if source.Location != nil {
		filter.Geo = &store.GeoFilter{
			Latitude:     source.Location.Latitude,
			Longitude:    source.Location.Longitude,
			RadiusMeters: e.config.SimilarRadiusKm * 1000,
		}
	}

	matches, err := e.posts.QueryByVector(ctx, *source.Embedding, filter, e.config.SimilarThreshold, limit)
	if err != nil {
		return nil, fmt.Errorf("querying similar posts for %s: %w", postID, err)
	}
	if matches == nil {
		matches = []store.PostMatch{}
	}

	e.logActivity(ctx, store.ActionSimilarQueried, &postID, map[string]any{"result_count": len(matches)})
	return &SimilarResult{Ready: true, Status: store.EmbeddingReady, Items: matches}, nil
}

// SearchFilters narrows free-text semantic search.
type SearchFilters struct {
	PostType  *store.PostType
	Latitude  *float64
	Longitude *float64
	RadiusKm  *float64
}

// SearchPage is one page of semantic search results plus the total match count.
type SearchPage struct {
	Items      []store.PostMatch `json:"items"`
	TotalCount int               `json:"total_count"`
}

// SearchBySemantic embeds the query text through the same prompt template used
// at index time and returns the requested page of Ready posts above the
// semantic threshold, ordered by descending similarity.
func (e *Engine) SearchBySemantic(ctx context.Context, text string, filters SearchFilters, page, pageSize int) (*SearchPage, error) {
	if err := e.validateSearch(text, filters, page, pageSize); err != nil {
		return nil, err
	}

	vec, err := e.provider.Embed(ctx, QueryPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	filter := store.VectorFilter{PostType: filters.PostType}
	if filters.Latitude != nil && filters.Longitude != nil {
		radiusKm := e.config.SimilarRadiusKm
		if filters.RadiusKm != nil {
			radiusKm = *filters.RadiusKm
		}
		filter.Geo = &store.GeoFilter{
			Latitude:     *filters.Latitude,
			Longitude:    *filters.Longitude,
			RadiusMeters: radiusKm * 1000,
		}
	}

	items, total, err := e.posts.QueryByVectorPaged(ctx, vec, filter, e.config.SemanticThreshold, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	if items == nil {
		items = []store.PostMatch{}
	}

	e.logActivity(ctx, store.ActionSemanticQueried, nil, map[string]any{"result_count": len(items), "total": total})
	return &SearchPage{Items: items, TotalCount: total}, nil
}

func (e *Engine) validateSearch(text string, filters SearchFilters, page, pageSize int) error {
	if text == "" {
		return &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if page < 1 {
		return &ValidationError{Field: "page", Reason: "must be at least 1"}
	}
	if pageSize < 1 || pageSize > e.config.MaxPageSize {
		return &ValidationError{Field: "page_size", Reason: fmt.Sprintf("must be between 1 and %d", e.config.MaxPageSize)}
	}
	if filters.PostType != nil && *filters.PostType != store.PostLost && *filters.PostType != store.PostFound {
		return &ValidationError{Field: "post_type", Reason: "must be lost or found"}
	}
	if (filters.Latitude == nil) != (filters.Longitude == nil) {
		return &ValidationError{Field: "location", Reason: "latitude and longitude must be provided together"}
	}
	if filters.Latitude != nil && !validLatitude(*filters.Latitude) {
		return &ValidationError{Field: "latitude", Reason: "must be between -90 and 90"}
	}
	if filters.Longitude != nil && !validLongitude(*filters.Longitude) {
		return &ValidationError{Field: "longitude", Reason: "must be between -180 and 180"}
	}
	if filters.RadiusKm != nil && *filters.RadiusKm <= 0 {
		return &ValidationError{Field: "radius_km", Reason: "must be positive"}
	}
	return nil
}

func (e *Engine) logActivity(ctx context.Context, action store.ActivityAction, postID *uuid.UUID, metadata map[string]any) {
	if e.activity == nil {
		return
	}
	var id *string
	if postID != nil {
		s := postID.String()
		id = &s
	}
	if err := e.activity.Log(ctx, action, id, true, metadata); err != nil {
		e.logger.Debug("activity log write failed", "action", action, "error", err)
	}
}
