package matching

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/reclaimhq/reclaim/internal/store"
)

// PostStore is the persistence surface the pipeline depends on. The pgvector
// implementation lives in internal/store; tests substitute in-memory fakes.
type PostStore interface {
	// GetPost fetches a post by id, returning (nil, nil) when it does not exist.
	GetPost(ctx context.Context, id uuid.UUID) (*store.Post, error)

	// UpdatePostEmbedding persists a post's embedding-related fields atomically.
	UpdatePostEmbedding(ctx context.Context, p *store.Post) error

	// QueryByVector returns Ready posts ordered by descending similarity.
	QueryByVector(ctx context.Context, vec pgvector.Vector, f store.VectorFilter, minSimilarity float64, limit int) ([]store.PostMatch, error)

	// QueryByVectorPaged returns one 1-based page plus the total match count.
	QueryByVectorPaged(ctx context.Context, vec pgvector.Vector, f store.VectorFilter, minSimilarity float64, page, pageSize int) ([]store.PostMatch, int, error)

	// RevertStaleProcessing flips posts stuck in Processing since before the
	// cutoff back to Failed, returning how many were reverted.
	RevertStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActivityLogger records pipeline activity for analytics. Implementations must
// tolerate being called on hot paths; errors are ignored by callers.
type ActivityLogger interface {
	Log(ctx context.Context, action store.ActivityAction, postID *string, success bool, metadata map[string]any) error
}

// Notifier receives embedding lifecycle notifications. A nil Notifier is valid.
type Notifier interface {
	EmbeddingReady(ctx context.Context, post *store.Post)
	EmbeddingFailed(ctx context.Context, post *store.Post, cause error)
}
