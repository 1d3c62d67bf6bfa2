package messagequeue

import (
	"encoding/json"

	"github.com/lexhq/tasktrack/internal/domain/task"
)

// TaskRegisterPayload is the schema for tasks.register messages.
type TaskRegisterPayload struct {
	TaskID      string       `json:"task_id,omitempty"` // empty: tracker assigns one
	Type        task.Type    `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Context     task.Context `json:"context,omitempty"`
}

// TaskStartPayload is the schema for tasks.start messages.
type TaskStartPayload struct {
	TaskID string `json:"task_id"`
}

// TaskProgressPayload is the schema for tasks.progress messages.
type TaskProgressPayload struct {
	TaskID      string `json:"task_id"`
	Progress    int    `json:"progress"`
	Description string `json:"description,omitempty"`
}

// TaskResultPayload is the schema for tasks.result messages. A non-empty
// Error marks the task failed; otherwise Result is attached and the task
// completes.
type TaskResultPayload struct {
	TaskID string          `json:"task_id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}
