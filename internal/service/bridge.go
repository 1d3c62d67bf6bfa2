package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lexhq/tasktrack/internal/domain/task"
	"github.com/lexhq/tasktrack/internal/port/messagequeue"
)

// QueueBridge translates lifecycle messages published by out-of-process
// producers (the AI backend workers) into tracker calls. In-process feature
// code calls the Tracker directly; the bridge exists for producers on the
// other side of the queue.
type QueueBridge struct {
	tracker *Tracker
	queue   messagequeue.Queue
}

// NewQueueBridge creates a QueueBridge.
func NewQueueBridge(tracker *Tracker, queue messagequeue.Queue) *QueueBridge {
	return &QueueBridge{tracker: tracker, queue: queue}
}

// Start subscribes to all task lifecycle subjects. The returned function
// cancels every subscription.
func (b *QueueBridge) Start(ctx context.Context) (cancel func(), err error) {
	var cancels []func()
	stopAll := func() {
		for _, c := range cancels {
			c()
		}
	}

	subs := []struct {
		subject string
		handler messagequeue.Handler
	}{
		{messagequeue.SubjectTaskRegister, b.handleRegister},
		{messagequeue.SubjectTaskStart, b.handleStart},
		{messagequeue.SubjectTaskProgress, b.handleProgress},
		{messagequeue.SubjectTaskResult, b.handleResult},
	}
	for _, s := range subs {
		c, err := b.queue.Subscribe(ctx, s.subject, s.handler)
		if err != nil {
			stopAll()
			return nil, fmt.Errorf("subscribe %s: %w", s.subject, err)
		}
		cancels = append(cancels, c)
	}

	return stopAll, nil
}

func (b *QueueBridge) handleRegister(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.TaskRegisterPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("unmarshal register: %w", err)
	}
	if !p.Type.Valid() {
		slog.Warn("queue register with unknown task type ignored", "type", p.Type, "title", p.Title)
		return nil
	}

	t := b.tracker.Register(ctx, task.RegisterRequest{
		ID:          p.TaskID,
		Type:        p.Type,
		Title:       p.Title,
		Description: p.Description,
		Context:     p.Context,
	})
	slog.Debug("task registered from queue", "task_id", t.ID, "type", t.Type)
	return nil
}

func (b *QueueBridge) handleStart(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.TaskStartPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("unmarshal start: %w", err)
	}
	b.tracker.Start(ctx, p.TaskID)
	return nil
}

func (b *QueueBridge) handleProgress(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.TaskProgressPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("unmarshal progress: %w", err)
	}
	b.tracker.ReportProgress(ctx, p.TaskID, p.Progress, p.Description)
	return nil
}

// handleResult applies a terminal outcome. A non-empty error marks the task
// failed; otherwise the result payload is attached and the task completes.
func (b *QueueBridge) handleResult(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.TaskResultPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}

	if p.Error != "" {
		b.tracker.Fail(ctx, p.TaskID, p.Error)
		return nil
	}
	b.tracker.Complete(ctx, p.TaskID, p.Result)
	return nil
}
