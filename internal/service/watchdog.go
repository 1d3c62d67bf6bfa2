package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StartWatchdog periodically fails tasks that have sat in pending or running
// longer than maxAge. Producers normally terminate their own tasks; the
// watchdog only catches the ones whose producer never reports back (aborted
// HTTP call, closed tab, forgotten code path). The returned function stops
// the sweeper.
func (tr *Tracker) StartWatchdog(ctx context.Context, interval, maxAge time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				tr.sweepExpired(ctx, maxAge)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}

func (tr *Tracker) sweepExpired(ctx context.Context, maxAge time.Duration) {
	cutoff := tr.now().Add(-maxAge)

	tr.mu.Lock()
	var expired []string
	for id, t := range tr.tasks {
		if !t.Status.Terminal() && t.StartedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	tr.mu.Unlock()

	for _, id := range expired {
		slog.Warn("task exceeded watchdog deadline", "task_id", id, "max_age", maxAge)
		tr.Fail(ctx, id, fmt.Sprintf("timed out after %s without a result", maxAge))
	}
}
