package matching_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/reclaimhq/reclaim/internal/matching"
	"github.com/reclaimhq/reclaim/internal/store"
)

func processingPost(startedAgo time.Duration) *store.Post {
	started := time.Now().Add(-startedAgo)
	return &store.Post{
		ID:                  uuid.New(),
		AuthorID:            uuid.New(),
		Type:                store.PostLost,
		ItemName:            "item",
		EmbeddingStatus:     store.EmbeddingProcessing,
		ProcessingStartedAt: &started,
	}
}

func TestSweeper_RevertsOnlyStaleProcessing(t *testing.T) {
	stale := processingPost(30 * time.Minute)
	fresh := processingPost(30 * time.Second)
	ready := pendingPost()
	ready.EmbeddingStatus = store.EmbeddingReady
	ready.Embedding = vecOf(1, 0, 0)

	posts := newFakePostStore(stale, fresh, ready)
	sweeper := matching.NewSweeper(posts, testConfig(), discardLogger())

	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := posts.GetPost(context.Background(), stale.ID)
	if got.EmbeddingStatus != store.EmbeddingFailed {
		t.Errorf("stale processing post should be reverted to failed, got %s", got.EmbeddingStatus)
	}
	if got.ProcessingStartedAt != nil {
		t.Error("reverted post should have its processing timestamp cleared")
	}

	got, _ = posts.GetPost(context.Background(), fresh.ID)
	if got.EmbeddingStatus != store.EmbeddingProcessing {
		t.Errorf("in-flight post should be left alone, got %s", got.EmbeddingStatus)
	}

	got, _ = posts.GetPost(context.Background(), ready.ID)
	if got.EmbeddingStatus != store.EmbeddingReady {
		t.Errorf("ready post should be left alone, got %s", got.EmbeddingStatus)
	}
}
