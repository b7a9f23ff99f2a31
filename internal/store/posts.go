package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// PostType distinguishes lost-item posts from found-item posts.
type PostType string

const (
	PostLost  PostType = "lost"
	PostFound PostType = "found"
)

// EmbeddingStatus tracks whether a post's embedding is usable.
type EmbeddingStatus string

const (
	EmbeddingPending    EmbeddingStatus = "pending"
	EmbeddingProcessing EmbeddingStatus = "processing"
	EmbeddingReady      EmbeddingStatus = "ready"
	EmbeddingFailed     EmbeddingStatus = "failed"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Post is a lost or found item report. The embedding pipeline only reads and
// updates the embedding-related fields; everything else is owned by the CRUD layer.
type Post struct {
	ID                  uuid.UUID        `json:"id"`
	AuthorID            uuid.UUID        `json:"author_id"`
	Type                PostType         `json:"post_type"`
	ItemName            string           `json:"item_name"`
	Description         string           `json:"description"`
	DistinctiveMarks    string           `json:"distinctive_marks,omitempty"`
	Location            *GeoPoint        `json:"location,omitempty"`
	ContentHash         string           `json:"-"`
	Embedding           *pgvector.Vector `json:"-"`
	EmbeddingStatus     EmbeddingStatus  `json:"embedding_status"`
	ProcessingStartedAt *time.Time       `json:"-"`
	EventTime           time.Time        `json:"event_time"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// PostMatch pairs a candidate post with its cosine similarity to a query vector.
type PostMatch struct {
	Post       *Post   `json:"post"`
	Similarity float64 `json:"similarity"`
}

// GeoFilter restricts candidates to a radius around a point. Candidates without
// coordinates are not filtered out; the predicate only applies when both ends
// have a location.
type GeoFilter struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// VectorFilter narrows vector-similarity queries.
type VectorFilter struct {
	PostType        *PostType
	ExcludeAuthorID *uuid.UUID
	Geo             *GeoFilter
}

const postColumns = `id, author_id, post_type, item_name, description,
	COALESCE(distinctive_marks, ''), latitude, longitude, COALESCE(content_hash, ''),
	embedding, embedding_status, processing_started_at, event_time, created_at, updated_at`

// haversineSQL computes the great-circle distance in meters between a post's
// coordinates and a query point whose latitude/longitude occupy the two given
// placeholder positions.
func haversineSQL(latArg, lonArg int) string {
	return fmt.Sprintf(`6371000 * 2 * asin(sqrt(
		power(sin(radians(latitude - $%d) / 2), 2) +
		cos(radians($%d)) * cos(radians(latitude)) *
		power(sin(radians(longitude - $%d) / 2), 2)))`, latArg, latArg, lonArg)
}

func scanPost(row pgx.Row) (*Post, error) {
	p := &Post{}
	var lat, lon *float64
	err := row.Scan(&p.ID, &p.AuthorID, &p.Type, &p.ItemName, &p.Description,
		&p.DistinctiveMarks, &lat, &lon, &p.ContentHash, &p.Embedding,
		&p.EmbeddingStatus, &p.ProcessingStartedAt, &p.EventTime, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		p.Location = &GeoPoint{Latitude: *lat, Longitude: *lon}
	}
	return p, nil
}

// GetPost fetches a post by id. Returns (nil, nil) when no such post exists.
func GetPost(ctx context.Context, db DBTX, id uuid.UUID) (*Post, error) {
	p, err := scanPost(db.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	return p, nil
}

// UpdatePostEmbedding persists a post's embedding-related fields (status, vector,
// content hash, processing timestamp) in a single statement.
func UpdatePostEmbedding(ctx context.Context, db DBTX, p *Post) error {
	tag, err := db.Exec(ctx, `
		UPDATE posts SET
			embedding_status = $2,
			embedding = $3,
			content_hash = $4,
			processing_started_at = $5,
			updated_at = now()
		WHERE id = $1
	`, p.ID, p.EmbeddingStatus, p.Embedding, p.ContentHash, p.ProcessingStartedAt)
	if err != nil {
		return fmt.Errorf("update post embedding %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update post embedding %s: no rows affected", p.ID)
	}
	return nil
}

// buildVectorQuery assembles the WHERE clause shared by QueryByVector and
// QueryByVectorPaged. $1 is always the query vector, $2 the max cosine distance.
func buildVectorQuery(f VectorFilter, minSimilarity float64) (string, []any) {
	where := `embedding_status = 'ready' AND embedding IS NOT NULL AND embedding <=> $1 <= $2`
	args := []any{nil, 1.0 - minSimilarity} // args[0] filled by callers
	argN := 3

	if f.PostType != nil {
		where += fmt.Sprintf(" AND post_type = $%d", argN)
		args = append(args, *f.PostType)
		argN++
	}
	if f.ExcludeAuthorID != nil {
		where += fmt.Sprintf(" AND author_id != $%d", argN)
		args = append(args, *f.ExcludeAuthorID)
		argN++
	}
	if f.Geo != nil {
		// Posts without coordinates pass through; the radius only applies
		// when both endpoints are located.
		where += fmt.Sprintf(" AND (latitude IS NULL OR longitude IS NULL OR %s <= $%d)",
			haversineSQL(argN, argN+1), argN+2)
		args = append(args, f.Geo.Latitude, f.Geo.Longitude, f.Geo.RadiusMeters)
		argN += 3
	}
	return where, args
}

func collectMatches(rows pgx.Rows) ([]PostMatch, error) {
	defer rows.Close()
	var matches []PostMatch
	for rows.Next() {
		p := &Post{}
		var lat, lon *float64
		var distance float64
		err := rows.Scan(&p.ID, &p.AuthorID, &p.Type, &p.ItemName, &p.Description,
			&p.DistinctiveMarks, &lat, &lon, &p.ContentHash, &p.Embedding,
			&p.EmbeddingStatus, &p.ProcessingStartedAt, &p.EventTime, &p.CreatedAt,
			&p.UpdatedAt, &distance)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if lat != nil && lon != nil {
			p.Location = &GeoPoint{Latitude: *lat, Longitude: *lon}
		}
		matches = append(matches, PostMatch{Post: p, Similarity: 1.0 - distance})
	}
	return matches, rows.Err()
}

// QueryByVector returns Ready posts nearest to the query vector, filtered and
// ordered by ascending cosine distance (descending similarity).
func QueryByVector(ctx context.Context, db DBTX, vec pgvector.Vector, f VectorFilter, minSimilarity float64, limit int) ([]PostMatch, error) {
	where, args := buildVectorQuery(f, minSimilarity)
	args[0] = vec

	query := fmt.Sprintf(`SELECT %s, embedding <=> $1 AS distance FROM posts
		WHERE %s ORDER BY distance LIMIT $%d`, postColumns, where, len(args)+1)
	args = append(args, limit)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by vector: %w", err)
	}
	return collectMatches(rows)
}

// QueryByVectorPaged returns one page of matches plus the total count of posts
// matching the same predicates. Pages are 1-based.
func QueryByVectorPaged(ctx context.Context, db DBTX, vec pgvector.Vector, f VectorFilter, minSimilarity float64, page, pageSize int) ([]PostMatch, int, error) {
	where, args := buildVectorQuery(f, minSimilarity)
	args[0] = vec

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM posts WHERE %s`, where)
	if err := db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count by vector: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s, embedding <=> $1 AS distance FROM posts
		WHERE %s ORDER BY distance LIMIT $%d OFFSET $%d`, postColumns, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query by vector paged: %w", err)
	}
	matches, err := collectMatches(rows)
	if err != nil {
		return nil, 0, err
	}
	return matches, total, nil
}

// RevertStaleProcessing flips posts stuck in Processing since before the cutoff
// back to Failed so the retry path can pick them up again.
func RevertStaleProcessing(ctx context.Context, db DBTX, cutoff time.Time) (int64, error) {
	tag, err := db.Exec(ctx, `
		UPDATE posts SET
			embedding_status = 'failed',
			processing_started_at = NULL,
			updated_at = now()
		WHERE embedding_status = 'processing' AND processing_started_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("revert stale processing: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountPosts returns the total number of posts.
func CountPosts(ctx context.Context, db DBTX) (int, error) {
	var n int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// EmbeddingStatusCounts returns the number of posts in each embedding status.
func EmbeddingStatusCounts(ctx context.Context, db DBTX) (map[EmbeddingStatus]int, error) {
	rows, err := db.Query(ctx, `SELECT embedding_status, COUNT(*) FROM posts GROUP BY embedding_status`)
	if err != nil {
		return nil, fmt.Errorf("embedding status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[EmbeddingStatus]int)
	for rows.Next() {
		var s EmbeddingStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[s] = n
	}
	return counts, rows.Err()
}
