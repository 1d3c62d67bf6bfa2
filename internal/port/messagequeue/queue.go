// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for lifecycle messages published by out-of-process
// producers (the AI backend workers).
const (
	SubjectTaskRegister = "tasks.register" // worker announces a new task
	SubjectTaskStart    = "tasks.start"    // worker picked the task up
	SubjectTaskProgress = "tasks.progress" // progress updates while running
	SubjectTaskResult   = "tasks.result"   // terminal outcome, success or failure
)
