package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reclaimhq/reclaim/internal/store"
)

// Publisher publishes Reclaim pipeline events to NATS.
type Publisher struct {
	client *Client
	logger *slog.Logger
}

// NewPublisher creates a new event publisher.
func NewPublisher(client *Client, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Event is the standard envelope published to the bus.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

func (p *Publisher) publish(_ context.Context, subject string, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	if err := p.client.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}

	p.logger.Debug("published event", "subject", subject, "type", event.Type)
	return nil
}

// EmbeddingReady publishes a post.embedding.ready event.
func (p *Publisher) EmbeddingReady(ctx context.Context, post *store.Post) error {
	return p.publish(ctx, "reclaim.post.embedding.ready", Event{
		Type:      "post.embedding.ready",
		Source:    "reclaim",
		Timestamp: time.Now(),
		Data: map[string]any{
			"post_id":   post.ID,
			"post_type": post.Type,
		},
	})
}

// EmbeddingFailed publishes a post.embedding.failed event.
func (p *Publisher) EmbeddingFailed(ctx context.Context, post *store.Post, cause error) error {
	return p.publish(ctx, "reclaim.post.embedding.failed", Event{
		Type:      "post.embedding.failed",
		Source:    "reclaim",
		Timestamp: time.Now(),
		Data: map[string]any{
			"post_id":   post.ID,
			"post_type": post.Type,
			"error":     cause.Error(),
		},
	})
}

// PostSearched publishes a search analytics event.
func (p *Publisher) PostSearched(ctx context.Context, query string, resultCount int) error {
	return p.publish(ctx, "reclaim.post.searched", Event{
		Type:      "post.searched",
		Source:    "reclaim",
		Timestamp: time.Now(),
		Data: map[string]any{
			"query_length": len(query),
			"result_count": resultCount,
		},
	})
}

// Notifier adapts the Publisher to the matching package's notification
// interface; publish failures are logged, never propagated into the pipeline.
type Notifier struct {
	pub    *Publisher
	logger *slog.Logger
}

// NewNotifier wraps a publisher.
func NewNotifier(pub *Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{pub: pub, logger: logger}
}

// EmbeddingReady forwards the ready notification to the bus.
func (n *Notifier) EmbeddingReady(ctx context.Context, post *store.Post) {
	if err := n.pub.EmbeddingReady(ctx, post); err != nil {
		n.logger.Warn("publishing embedding.ready", "post_id", post.ID, "error", err)
	}
}

// EmbeddingFailed forwards the failure notification to the bus.
func (n *Notifier) EmbeddingFailed(ctx context.Context, post *store.Post, cause error) {
	if err := n.pub.EmbeddingFailed(ctx, post, cause); err != nil {
		n.logger.Warn("publishing embedding.failed", "post_id", post.ID, "error", err)
	}
}
