package logger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// captureHandler records every record it handles.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
	block   chan struct{} // when non-nil, Handle waits on it
}

func (c *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (c *captureHandler) Handle(_ context.Context, rec slog.Record) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

func (c *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return c }
func (c *captureHandler) WithGroup(string) slog.Handler      { return c }

func (c *captureHandler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func TestAsyncHandlerDelivers(t *testing.T) {
	inner := &captureHandler{}
	h := NewAsyncHandler(inner, 16, 2)

	log := slog.New(h)
	for i := 0; i < 5; i++ {
		log.Info("msg")
	}
	h.Close()

	if got := inner.count(); got != 5 {
		t.Fatalf("expected 5 records after Close, got %d", got)
	}
	if h.DroppedCount() != 0 {
		t.Fatalf("expected 0 dropped, got %d", h.DroppedCount())
	}
}

func TestAsyncHandlerDropsWhenFull(t *testing.T) {
	inner := &captureHandler{block: make(chan struct{})}
	h := NewAsyncHandler(inner, 1, 1)

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0)

	// Let the single worker pick up one record and park on it, then fill
	// the one-slot buffer. Everything beyond that must be dropped.
	_ = h.Handle(context.Background(), rec)
	deadline := time.After(time.Second)
	for h.DroppedCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("handler never started dropping")
		default:
		}
		_ = h.Handle(context.Background(), rec)
	}

	close(inner.block)
	h.Close()
}

func TestAsyncHandlerCloseDrains(t *testing.T) {
	inner := &captureHandler{}
	h := NewAsyncHandler(inner, 64, 1)

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0)
	for i := 0; i < 20; i++ {
		_ = h.Handle(context.Background(), rec)
	}
	h.Close()

	if got := inner.count(); got != 20 {
		t.Fatalf("expected all 20 records drained, got %d", got)
	}
}
