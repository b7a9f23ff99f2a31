package matching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/reclaimhq/reclaim/internal/embeddings"
	"github.com/reclaimhq/reclaim/internal/store"
)

// Refresher recomputes post embeddings when their matchable content changes.
// It owns every embedding status transition after post creation.
type Refresher struct {
	posts    PostStore
	provider embeddings.Provider
	activity ActivityLogger
	notifier Notifier
	logger   *slog.Logger
	group    singleflight.Group
}

// NewRefresher creates a Refresher. activity and notifier may be nil.
func NewRefresher(posts PostStore, provider embeddings.Provider, activity ActivityLogger, notifier Notifier, logger *slog.Logger) *Refresher {
	return &Refresher{
		posts:    posts,
		provider: provider,
		activity: activity,
		notifier: notifier,
		logger:   logger,
	}
}

// Refresh recomputes the embedding for one post if its content fingerprint no
// longer matches the stored hash. Concurrent calls for the same post id are
// coalesced into a single provider call. Provider errors are persisted as a
// Failed status and then returned, so the delivery layer can redeliver with
// backoff. Returns ErrPostNotFound when the post does not exist.
func (r *Refresher) Refresh(ctx context.Context, postID uuid.UUID) error {
	_, err, _ := r.group.Do(postID.String(), func() (any, error) {
		return nil, r.refresh(ctx, postID)
	})
	return err
}

func (r *Refresher) refresh(ctx context.Context, postID uuid.UUID) error {
	post, err := r.posts.GetPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("loading post %s: %w", postID, err)
	}
	if post == nil {
		return fmt.Errorf("refresh %s: %w", postID, ErrPostNotFound)
	}

	newHash := Fingerprint(post.ItemName, post.Description, post.DistinctiveMarks)

	// Unchanged content with a usable embedding: nothing to do. This is what
	// keeps edits to unrelated post fields from burning provider calls.
	if post.EmbeddingStatus == store.EmbeddingReady && post.Embedding != nil && post.ContentHash == newHash {
		r.logger.Debug("embedding up to date", "post_id", postID)
		r.logActivity(ctx, store.ActionRefreshSkipped, postID, true, nil)
		return nil
	}

	now := time.Now()
	post.EmbeddingStatus = store.EmbeddingProcessing
	post.ProcessingStartedAt = &now
	if err := r.posts.UpdatePostEmbedding(ctx, post); err != nil {
		return fmt.Errorf("marking post %s processing: %w", postID, err)
	}

	vec, genErr := r.provider.Embed(ctx, IndexPrompt(post.ItemName, post.Description, post.DistinctiveMarks))
	if genErr != nil {
		// Previous embedding and content hash stay untouched so a retry
		// recomputes from scratch instead of trusting partial state.
		post.EmbeddingStatus = store.EmbeddingFailed
		post.ProcessingStartedAt = nil
		if uerr := r.posts.UpdatePostEmbedding(ctx, post); uerr != nil {
			r.logger.Error("persisting failed status", "post_id", postID, "error", uerr)
		}
		r.logger.Warn("embedding generation failed", "post_id", postID, "provider", r.provider.Name(), "error", genErr)
		r.logActivity(ctx, store.ActionRefreshFailed, postID, false, map[string]any{"error": genErr.Error()})
		if r.notifier != nil {
			r.notifier.EmbeddingFailed(ctx, post, genErr)
		}
		return fmt.Errorf("generating embedding for post %s: %w", postID, genErr)
	}

	post.Embedding = &vec
	post.ContentHash = newHash
	post.EmbeddingStatus = store.EmbeddingReady
	post.ProcessingStartedAt = nil
	if err := r.posts.UpdatePostEmbedding(ctx, post); err != nil {
		return fmt.Errorf("persisting embedding for post %s: %w", postID, err)
	}

	r.logger.Info("embedding refreshed", "post_id", postID, "provider", r.provider.Name())
	r.logActivity(ctx, store.ActionRefreshReady, postID, true, nil)
	if r.notifier != nil {
		r.notifier.EmbeddingReady(ctx, post)
	}
	return nil
}

func (r *Refresher) logActivity(ctx context.Context, action store.ActivityAction, postID uuid.UUID, success bool, metadata map[string]any) {
	if r.activity == nil {
		return
	}
	id := postID.String()
	if err := r.activity.Log(ctx, action, &id, success, metadata); err != nil {
		r.logger.Debug("activity log write failed", "action", action, "error", err)
	}
}
