package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/reclaimhq/reclaim/internal/matching"
)

// PostEvent is the envelope the CRUD layer publishes on post create/update.
type PostEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Data      struct {
		PostID string `json:"post_id"`
	} `json:"data"`
}

// Subscriber listens for post create/update events and triggers embedding
// refreshes. JetStream redelivery is the retry/backoff mechanism: provider
// failures are Nak'd so the message comes back, everything else is Ack'd.
type Subscriber struct {
	client    *Client
	refresher *matching.Refresher
	logger    *slog.Logger
	timeout   time.Duration
	subs      []*nats.Subscription
}

// NewSubscriber creates a post event subscriber.
func NewSubscriber(client *Client, refresher *matching.Refresher, timeout time.Duration, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		client:    client,
		refresher: refresher,
		logger:    logger,
		timeout:   timeout,
	}
}

// Start begins subscribing to post event subjects.
func (s *Subscriber) Start(ctx context.Context) error {
	subjects := []string{
		"reclaim.post.created",
		"reclaim.post.updated",
	}

	for _, subject := range subjects {
		handler := s.handlePostEvent
		// Try JetStream durable consumer first, fall back to core NATS
		sub, err := s.client.js.Subscribe(subject, handler,
			nats.Durable("reclaim-"+sanitizeSubject(subject)),
			nats.DeliverAll(),
			nats.AckExplicit(),
			nats.MaxDeliver(5),
		)
		if err != nil {
			// JetStream might not have the stream; use core NATS
			s.logger.Warn("JetStream subscribe failed, using core NATS", "subject", subject, "error", err)
			sub, err = s.client.conn.Subscribe(subject, handler)
			if err != nil {
				return fmt.Errorf("subscribing to %s: %w", subject, err)
			}
		}
		s.subs = append(s.subs, sub)
		s.logger.Info("subscribed to post events", "subject", subject)
	}

	return nil
}

// Stop unsubscribes from all subjects.
func (s *Subscriber) Stop() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
}

func (s *Subscriber) handlePostEvent(msg *nats.Msg) {
	var event PostEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.logger.Error("failed to parse post event", "error", err, "subject", msg.Subject)
		s.ack(msg)
		return
	}

	postID, err := uuid.Parse(event.Data.PostID)
	if err != nil {
		s.logger.Error("post event has invalid post id", "post_id", event.Data.PostID, "event_id", event.ID)
		s.ack(msg)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err = s.refresher.Refresh(ctx, postID)
	switch {
	case err == nil:
		s.ack(msg)
	case errors.Is(err, matching.ErrPostNotFound):
		// Deleted before the event was consumed; nothing to retry.
		s.logger.Debug("post gone before refresh", "post_id", postID)
		s.ack(msg)
	default:
		// Provider or store failure: leave it to JetStream redelivery.
		s.logger.Warn("embedding refresh failed, requesting redelivery", "post_id", postID, "error", err)
		s.nak(msg)
	}
}

func (s *Subscriber) ack(msg *nats.Msg) {
	if msg.Reply != "" {
		_ = msg.Ack()
	}
}

func (s *Subscriber) nak(msg *nats.Msg) {
	if msg.Reply != "" {
		_ = msg.Nak()
	}
}

func sanitizeSubject(subject string) string {
	r := ""
	for _, c := range subject {
		switch c {
		case '.', '>', '*':
			r += "-"
		default:
			r += string(c)
		}
	}
	return r
}
