package matching

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically reverts posts stuck in Processing back to Failed. A
// crash between the Processing transition and the provider response would
// otherwise leave a post unembeddable forever.
type Sweeper struct {
	posts  PostStore
	config Config
	logger *slog.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(posts PostStore, cfg Config, logger *slog.Logger) *Sweeper {
	return &Sweeper{posts: posts, config: cfg, logger: logger}
}

// Start launches the sweep loop in a goroutine. It runs until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("stale-processing sweeper starting", "interval", s.config.SweepInterval, "timeout", s.config.ProcessingTimeout)

	go func() {
		ticker := time.NewTicker(s.config.SweepInterval)
		defer ticker.Stop()

		if err := s.Sweep(ctx); err != nil {
			s.logger.Warn("sweeper initial run", "error", err)
		}

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("sweeper shutting down")
				return
			case <-ticker.C:
				if err := s.Sweep(ctx); err != nil {
					s.logger.Warn("sweeper run", "error", err)
				}
			}
		}
	}()
}

// Sweep runs one pass, reverting Processing posts older than the timeout.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.config.ProcessingTimeout)
	reverted, err := s.posts.RevertStaleProcessing(ctx, cutoff)
	if err != nil {
		return err
	}
	if reverted > 0 {
		s.logger.Info("reverted stale processing posts", "count", reverted)
	}
	return nil
}
