// Package janitor runs periodic age-based cleanup of in-memory logs.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Loop evicts old entries every Interval by calling Run with the current
// time. Run returns the number of entries it removed.
type Loop struct {
	Name     string
	Interval time.Duration
	Run      func(now time.Time) int
	Logger   *slog.Logger
}

// Start runs the loop until ctx is cancelled and returns ctx.Err().
func (l Loop) Start(ctx context.Context) error {
	if l.Run == nil || l.Interval <= 0 {
		return errors.New("janitor: run func and positive interval are required")
	}
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			l.Sweep(ctx, now)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Sweep performs one cleanup pass at now.
func (l Loop) Sweep(ctx context.Context, now time.Time) int {
	n := l.Run(now)
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if n > 0 {
		logger.InfoContext(ctx, "evicted expired entries", "loop", l.Name, "count", n)
	} else {
		logger.DebugContext(ctx, "nothing to evict", "loop", l.Name)
	}
	return n
}
