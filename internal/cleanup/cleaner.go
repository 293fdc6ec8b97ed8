package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredResetStore deletes password resets past their expiry
type ExpiredResetStore interface {
	DeleteExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error)
}

// Cleaner handles periodic cleanup of expired password reset tokens
type Cleaner struct {
	store    ExpiredResetStore
	interval time.Duration
	now      func() time.Time
}

// NewCleaner creates a new cleanup worker
func NewCleaner(store ExpiredResetStore, interval time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &Cleaner{
		store:    store,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single cleanup cycle and returns how many resets
// were removed.
func (c *Cleaner) RunOnce(ctx context.Context) int64 {
	slog.Debug("running cleanup cycle")

	deleted, err := c.store.DeleteExpiredPasswordResets(ctx, c.now())
	if err != nil {
		slog.Error("failed to delete expired password resets", "error", err)
		return 0
	}

	if deleted > 0 {
		slog.Info("expired password resets deleted", "count", deleted)
	}
	return deleted
}
