package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/lexhq/tasktrack/internal/domain/task"
)

// Event type constants for WebSocket messages.
const (
	EventTaskSnapshot  = "task.snapshot"
	EventTaskCompleted = "task.completed"
	EventTaskFailed    = "task.failed"
	EventToastShow     = "toast.show"
)

// TaskSnapshotEvent carries the full task list after every mutation.
// Clients replace their local state wholesale rather than patching diffs.
type TaskSnapshotEvent struct {
	Tasks   []task.Task  `json:"tasks"`
	Summary task.Summary `json:"summary"`
}

// ToastEvent instructs the client toast widget to render an alert.
type ToastEvent struct {
	Title       string `json:"title"`
	Message     string `json:"message"`
	Level       string `json:"level"` // "success" or "error"
	TaskID      string `json:"task_id,omitempty"`
	ActionLabel string `json:"action_label,omitempty"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
