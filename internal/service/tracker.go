// Package service contains application services.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexhq/tasktrack/internal/adapter/ws"
	"github.com/lexhq/tasktrack/internal/domain"
	"github.com/lexhq/tasktrack/internal/domain/task"
	"github.com/lexhq/tasktrack/internal/port/broadcast"
	"github.com/lexhq/tasktrack/internal/port/cache"
)

// tombstoneTTL bounds how long a removed task id is remembered. Late
// callbacks beyond this window log as unknown ids, which is acceptable.
const tombstoneTTL = time.Hour

// SnapshotListener receives the full task list after every mutation
// (replace-on-write semantics; the slice is a copy the listener may keep).
type SnapshotListener func(tasks []task.Task)

// TerminalListener receives a copy of a task that just reached a terminal state.
type TerminalListener func(t task.Task)

// Tracker is the authoritative, observable registry of background AI tasks.
// All state is in-memory and session-scoped: there is no persistence, and a
// process restart loses all tasks.
//
// Listener callbacks are dispatched synchronously and in mutation order.
// Callbacks must not call back into the Tracker.
type Tracker struct {
	mu      sync.Mutex
	tasks   map[string]*task.Task
	order   []string // registration order, drives stable snapshots
	handles map[string]func()

	// dispatchMu serializes listener dispatch so that snapshot order
	// matches mutation order. It is acquired before mu is released.
	dispatchMu        sync.Mutex
	listeners         map[int]SnapshotListener
	terminalListeners map[int]TerminalListener
	nextListenerID    int

	hub        broadcast.Broadcaster
	tombstones cache.Cache // removed ids, may be nil

	now func() time.Time // for testing
}

// NewTracker creates a Tracker broadcasting to hub. tombstones may be nil;
// when set, removed task ids are remembered so late lifecycle calls can be
// told apart from calls for ids that never existed.
func NewTracker(hub broadcast.Broadcaster, tombstones cache.Cache) *Tracker {
	if hub == nil {
		hub = broadcast.Nop{}
	}
	return &Tracker{
		tasks:             make(map[string]*task.Task),
		handles:           make(map[string]func()),
		listeners:         make(map[int]SnapshotListener),
		terminalListeners: make(map[int]TerminalListener),
		hub:               hub,
		tombstones:        tombstones,
		now:               time.Now,
	}
}

// Register creates a task in pending state and returns it. Registration
// always succeeds; the caller validates the task type at its own boundary.
// A caller-supplied id is honored unless it is taken or was removed earlier
// in this session, in which case a fresh id is assigned instead.
func (tr *Tracker) Register(ctx context.Context, req task.RegisterRequest) *task.Task {
	tr.mu.Lock()

	id := req.ID
	if id != "" && !tr.idAvailable(ctx, id) {
		slog.Warn("requested task id unavailable, assigning fresh id", "requested_id", id)
		id = ""
	}
	if id == "" {
		id = uuid.NewString()
		for !tr.idAvailable(ctx, id) {
			id = uuid.NewString()
		}
	}

	t := &task.Task{
		ID:          id,
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Status:      task.StatusPending,
		StartedAt:   tr.now(),
		Context:     req.Context,
	}
	tr.tasks[id] = t
	tr.order = append(tr.order, id)

	out := *t
	tr.finishMutation(ctx, nil)

	slog.Debug("task registered", "task_id", id, "type", req.Type, "title", req.Title)
	return &out
}

// Start transitions a pending task to running. Calls for removed or unknown
// ids, or for tasks already past pending, are benign no-ops.
func (tr *Tracker) Start(ctx context.Context, id string) {
	tr.mu.Lock()

	t, ok := tr.tasks[id]
	if !ok {
		tr.mu.Unlock()
		tr.logStale(ctx, "start", id)
		return
	}
	if t.Status != task.StatusPending {
		tr.mu.Unlock()
		slog.Warn("invalid task transition ignored", "task_id", id, "from", t.Status, "to", task.StatusRunning)
		return
	}

	t.Status = task.StatusRunning
	tr.finishMutation(ctx, nil)
}

// ReportProgress updates progress (0–100) and optionally the description of
// a non-terminal task. Progress is monotonic: a lower value than the current
// one is ignored. Stale ids are benign no-ops.
func (tr *Tracker) ReportProgress(ctx context.Context, id string, progress int, description string) {
	tr.mu.Lock()

	t, ok := tr.tasks[id]
	if !ok {
		tr.mu.Unlock()
		tr.logStale(ctx, "progress", id)
		return
	}
	if t.Status.Terminal() {
		tr.mu.Unlock()
		slog.Warn("progress report on terminal task ignored", "task_id", id, "status", t.Status)
		return
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress < t.Progress {
		tr.mu.Unlock()
		slog.Debug("non-monotonic progress ignored", "task_id", id, "current", t.Progress, "reported", progress)
		return
	}

	t.Progress = progress
	if description != "" {
		t.Description = description
	}
	tr.finishMutation(ctx, nil)
}

// Complete transitions a task to completed, forces progress to 100, records
// the completion time and attaches the opaque result. Stale ids and tasks
// already terminal are benign no-ops.
func (tr *Tracker) Complete(ctx context.Context, id string, result json.RawMessage) {
	tr.terminate(ctx, id, task.StatusCompleted, result, "")
}

// Fail transitions a task to failed and records the failure reason.
// Stale ids and tasks already terminal are benign no-ops.
func (tr *Tracker) Fail(ctx context.Context, id, errMsg string) {
	tr.terminate(ctx, id, task.StatusFailed, nil, errMsg)
}

func (tr *Tracker) terminate(ctx context.Context, id string, final task.Status, result json.RawMessage, errMsg string) {
	tr.mu.Lock()

	t, ok := tr.tasks[id]
	if !ok {
		tr.mu.Unlock()
		tr.logStale(ctx, string(final), id)
		return
	}
	if t.Status.Terminal() {
		tr.mu.Unlock()
		slog.Warn("invalid task transition ignored", "task_id", id, "from", t.Status, "to", final)
		return
	}

	now := tr.now()
	t.Status = final
	t.CompletedAt = &now
	if final == task.StatusCompleted {
		t.Progress = 100
		t.Result = result
	} else {
		t.Error = errMsg
	}

	terminal := *t
	tr.finishMutation(ctx, &terminal)
}

// Remove deletes a task regardless of status and releases its cancellable
// handle, if any. The release func runs after the record is deleted and
// outside the store lock: abort paths often call back into the Tracker, and
// by release time every lifecycle call on the removed id is a benign no-op,
// so orphaned background work can no longer mutate the record. Removing an
// unknown id is a no-op.
func (tr *Tracker) Remove(ctx context.Context, id string) {
	tr.mu.Lock()

	release, hasHandle := tr.handles[id]
	delete(tr.handles, id)

	if _, ok := tr.tasks[id]; !ok {
		tr.mu.Unlock()
		if hasHandle {
			release()
		}
		return
	}

	delete(tr.tasks, id)
	tr.dropFromOrder(id)
	tr.rememberRemoved(ctx, id)
	tr.finishMutation(ctx, nil)

	if hasHandle {
		release()
	}
	slog.Debug("task removed", "task_id", id)
}

// ClearCompleted removes every task in a terminal state and leaves pending
// and running tasks untouched. Handles are released after the records are
// gone, outside the lock, for the same reason as in Remove.
func (tr *Tracker) ClearCompleted(ctx context.Context) {
	tr.mu.Lock()

	var released []func()
	kept := tr.order[:0]
	for _, id := range tr.order {
		t := tr.tasks[id]
		if t == nil {
			continue
		}
		if !t.Status.Terminal() {
			kept = append(kept, id)
			continue
		}
		if release, ok := tr.handles[id]; ok {
			released = append(released, release)
			delete(tr.handles, id)
		}
		delete(tr.tasks, id)
		tr.rememberRemoved(ctx, id)
	}
	tr.order = kept
	tr.finishMutation(ctx, nil)

	for _, release := range released {
		release()
	}
}

// BindHandle associates a release func (unsubscribe/abort for the underlying
// async operation) with a task. Remove invokes it before deleting the record.
// If the task is already gone, release is invoked immediately.
func (tr *Tracker) BindHandle(id string, release func()) {
	tr.mu.Lock()
	if _, ok := tr.tasks[id]; !ok {
		tr.mu.Unlock()
		release()
		return
	}
	tr.handles[id] = release
	tr.mu.Unlock()
}

// finishMutation builds the snapshot, hands the mutex over to the dispatch
// lock and notifies all subscribers. Must be called with tr.mu held; it
// releases tr.mu.
func (tr *Tracker) finishMutation(ctx context.Context, terminal *task.Task) {
	snapshot := tr.snapshotLocked()
	summary := tr.summaryLocked()

	tr.dispatchMu.Lock()
	tr.mu.Unlock()
	defer tr.dispatchMu.Unlock()

	tr.hub.BroadcastEvent(ctx, ws.EventTaskSnapshot, ws.TaskSnapshotEvent{
		Tasks:   snapshot,
		Summary: summary,
	})
	if terminal != nil {
		eventType := ws.EventTaskCompleted
		if terminal.Status == task.StatusFailed {
			eventType = ws.EventTaskFailed
		}
		tr.hub.BroadcastEvent(ctx, eventType, terminal)
	}

	for _, fn := range tr.listeners {
		fn(snapshot)
	}
	if terminal != nil {
		for _, fn := range tr.terminalListeners {
			fn(*terminal)
		}
	}
}

// Subscribe registers a listener for full task-list snapshots. The returned
// function cancels the subscription.
func (tr *Tracker) Subscribe(fn SnapshotListener) (cancel func()) {
	tr.dispatchMu.Lock()
	defer tr.dispatchMu.Unlock()

	id := tr.nextListenerID
	tr.nextListenerID++
	tr.listeners[id] = fn
	return func() {
		tr.dispatchMu.Lock()
		defer tr.dispatchMu.Unlock()
		delete(tr.listeners, id)
	}
}

// SubscribeTerminal registers a listener for completed/failed transitions.
func (tr *Tracker) SubscribeTerminal(fn TerminalListener) (cancel func()) {
	tr.dispatchMu.Lock()
	defer tr.dispatchMu.Unlock()

	id := tr.nextListenerID
	tr.nextListenerID++
	tr.terminalListeners[id] = fn
	return func() {
		tr.dispatchMu.Lock()
		defer tr.dispatchMu.Unlock()
		delete(tr.terminalListeners, id)
	}
}

// idAvailable reports whether id is neither registered nor a tombstone of a
// removed task. Removed ids are never reused within a session.
// Must be called with tr.mu held.
func (tr *Tracker) idAvailable(ctx context.Context, id string) bool {
	if _, exists := tr.tasks[id]; exists {
		return false
	}
	if tr.tombstones != nil {
		if _, removed, _ := tr.tombstones.Get(ctx, "removed:"+id); removed {
			return false
		}
	}
	return true
}

func (tr *Tracker) dropFromOrder(id string) {
	for i, v := range tr.order {
		if v == id {
			tr.order = append(tr.order[:i], tr.order[i+1:]...)
			return
		}
	}
}

func (tr *Tracker) rememberRemoved(ctx context.Context, id string) {
	if tr.tombstones == nil {
		return
	}
	if err := tr.tombstones.Set(ctx, "removed:"+id, []byte{1}, tombstoneTTL); err != nil {
		slog.Debug("tombstone set failed", "task_id", id, "error", err)
	}
}

// logStale logs a lifecycle call for a missing task id. Removed ids are
// distinguished from ids that were never in the store.
func (tr *Tracker) logStale(ctx context.Context, op, id string) {
	if tr.tombstones != nil {
		if _, removed, _ := tr.tombstones.Get(ctx, "removed:"+id); removed {
			slog.Debug("late lifecycle call for removed task", "op", op, "task_id", id)
			return
		}
	}
	slog.Warn("lifecycle call for unknown task", "op", op, "task_id", id)
}

func (tr *Tracker) snapshotLocked() []task.Task {
	out := make([]task.Task, 0, len(tr.order))
	for _, id := range tr.order {
		if t, ok := tr.tasks[id]; ok {
			out = append(out, *t)
		}
	}
	return out
}

func (tr *Tracker) summaryLocked() task.Summary {
	var s task.Summary
	for _, t := range tr.tasks {
		switch t.Status {
		case task.StatusPending:
			s.Pending++
		case task.StatusRunning:
			s.Running++
		case task.StatusCompleted:
			s.Completed++
		case task.StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Get returns a copy of the task with the given id.
func (tr *Tracker) Get(id string) (*task.Task, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	t, ok := tr.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *t
	return &out, nil
}

// List returns all tasks in registration order.
func (tr *Tracker) List() []task.Task {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.snapshotLocked()
}

// ListByType returns all tasks of the given type in registration order.
func (tr *Tracker) ListByType(tt task.Type) []task.Task {
	return tr.filter(func(t *task.Task) bool { return t.Type == tt })
}

// ListRunning returns tasks that are pending or running.
func (tr *Tracker) ListRunning() []task.Task {
	return tr.filter(func(t *task.Task) bool { return !t.Status.Terminal() })
}

// ListCompleted returns tasks in a terminal state (completed or failed).
func (tr *Tracker) ListCompleted() []task.Task {
	return tr.filter(func(t *task.Task) bool { return t.Status.Terminal() })
}

// HasRunning reports whether any task is pending or running.
func (tr *Tracker) HasRunning() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, t := range tr.tasks {
		if !t.Status.Terminal() {
			return true
		}
	}
	return false
}

// HasCompleted reports whether any task is in a terminal state.
func (tr *Tracker) HasCompleted() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, t := range tr.tasks {
		if t.Status.Terminal() {
			return true
		}
	}
	return false
}

// FirstCompletedForConversation returns the earliest-registered completed
// task whose context references the given conversation id. Used to resume a
// specific chat thread when the workspace view initializes.
func (tr *Tracker) FirstCompletedForConversation(conversationID string) (*task.Task, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	for _, id := range tr.order {
		t, ok := tr.tasks[id]
		if !ok || t.Status != task.StatusCompleted {
			continue
		}
		if t.Context.ConversationID == conversationID || t.Context.BackendConversationID == conversationID {
			out := *t
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Summary returns per-status task counts.
func (tr *Tracker) Summary() task.Summary {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.summaryLocked()
}

func (tr *Tracker) filter(keep func(*task.Task) bool) []task.Task {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	var out []task.Task
	for _, id := range tr.order {
		if t, ok := tr.tasks[id]; ok && keep(t) {
			out = append(out, *t)
		}
	}
	return out
}
