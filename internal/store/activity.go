package store

import (
	"context"
	"fmt"
	"time"
)

// ActivityAction represents the type of recorded pipeline activity.
type ActivityAction string

const (
	ActionRefreshReady    ActivityAction = "refresh.ready"
	ActionRefreshFailed   ActivityAction = "refresh.failed"
	ActionRefreshSkipped  ActivityAction = "refresh.skipped"
	ActionSimilarQueried  ActivityAction = "search.similar"
	ActionSemanticQueried ActivityAction = "search.semantic"
)

// ActivityEntry is one row of the pipeline activity log.
type ActivityEntry struct {
	ID        string         `json:"id"`
	Action    ActivityAction `json:"action"`
	PostID    *string        `json:"post_id,omitempty"`
	Success   bool           `json:"success"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActivityStore records embedding refresh outcomes and search invocations for
// analytics. Writes are best-effort; callers ignore errors.
type ActivityStore struct {
	db *DB
}

// NewActivityStore creates a new ActivityStore.
func NewActivityStore(db *DB) *ActivityStore {
	return &ActivityStore{db: db}
}

// Log writes an activity entry.
func (s *ActivityStore) Log(ctx context.Context, action ActivityAction, postID *string, success bool, metadata map[string]any) error {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO activity_log (action, post_id, success, metadata)
		 VALUES ($1, $2, $3, $4)`,
		action, postID, success, metadata,
	)
	if err != nil {
		return fmt.Errorf("writing activity log: %w", err)
	}
	return nil
}

// Query retrieves activity entries, newest first.
func (s *ActivityStore) Query(ctx context.Context, action *ActivityAction, limit int) ([]ActivityEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `SELECT id, action, post_id, success, metadata, created_at
		FROM activity_log WHERE 1=1`
	var args []any
	argN := 1

	if action != nil {
		query += fmt.Sprintf(" AND action = $%d", argN)
		args = append(args, *action)
		argN++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argN)
	args = append(args, limit)

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity log: %w", err)
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.PostID, &e.Success, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
