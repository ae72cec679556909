package session

import (
	"context"
	"time"
)

const (
	DefaultSweepInterval = 5 * time.Minute
	DefaultMaxIdle       = 30 * time.Minute
)

// RunSweeper evicts idle sessions every interval until ctx is done.
// Non-positive durations fall back to the defaults.
func RunSweeper(ctx context.Context, r *Registry, interval, maxIdle time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Debug("Idle sweeper started", "interval", interval, "max_idle", maxIdle)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := r.SweepIdle(maxIdle); len(evicted) > 0 {
				r.logger.Info("Idle sessions swept", "count", len(evicted), "remaining", r.Len())
			}
		}
	}
}
