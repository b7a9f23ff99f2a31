package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// PostStore provides post persistence operations backed by the connection pool.
// It satisfies the matching package's store interface.
type PostStore struct {
	db *DB
}

// NewPostStore creates a new PostStore.
func NewPostStore(db *DB) *PostStore {
	return &PostStore{db: db}
}

// GetPost fetches a post by id, returning (nil, nil) when it does not exist.
func (s *PostStore) GetPost(ctx context.Context, id uuid.UUID) (*Post, error) {
	return GetPost(ctx, s.db.DBTX(), id)
}

// UpdatePostEmbedding persists a post's embedding-related fields.
func (s *PostStore) UpdatePostEmbedding(ctx context.Context, p *Post) error {
	return UpdatePostEmbedding(ctx, s.db.DBTX(), p)
}

// QueryByVector returns Ready posts nearest to the query vector.
func (s *PostStore) QueryByVector(ctx context.Context, vec pgvector.Vector, f VectorFilter, minSimilarity float64, limit int) ([]PostMatch, error) {
	return QueryByVector(ctx, s.db.DBTX(), vec, f, minSimilarity, limit)
}

// QueryByVectorPaged returns one page of matches plus the total match count.
func (s *PostStore) QueryByVectorPaged(ctx context.Context, vec pgvector.Vector, f VectorFilter, minSimilarity float64, page, pageSize int) ([]PostMatch, int, error) {
	return QueryByVectorPaged(ctx, s.db.DBTX(), vec, f, minSimilarity, page, pageSize)
}

// RevertStaleProcessing flips stale Processing posts back to Failed.
func (s *PostStore) RevertStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	return RevertStaleProcessing(ctx, s.db.DBTX(), cutoff)
}
