// Package notifier defines the notification port (interface) and capabilities.
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Notification is the payload sent through a Notifier.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Level   string `json:"level"`  // "info", "success", "warning", "error"
	Source  string `json:"source"` // e.g. "task.completed", "task.failed"

	// TaskID and ActionLabel describe the primary action ("View Result").
	// Both are empty for failure notifications, which offer no action.
	TaskID      string `json:"task_id,omitempty"`
	ActionLabel string `json:"action_label,omitempty"`
}

// Capabilities declares which features a notifier supports.
type Capabilities struct {
	RichFormatting bool `json:"rich_formatting"`
	Actions        bool `json:"actions"`
}

// Notifier is the port interface for rendering notifications.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "toast", "slack").
	Name() string

	// Capabilities returns what this notifier supports.
	Capabilities() Capabilities

	// Send delivers a notification.
	Send(ctx context.Context, notification Notification) error
}
