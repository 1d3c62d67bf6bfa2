// Package otel wires OpenTelemetry metrics and tracing for tasktrack.
package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lexhq/tasktrack/internal/domain/task"
)

const meterName = "tasktrack"

// Metrics holds all tasktrack metric instruments.
type Metrics struct {
	TasksRegistered         metric.Int64Counter
	TasksCompleted          metric.Int64Counter
	TasksFailed             metric.Int64Counter
	TaskDuration            metric.Float64Histogram
	NotificationsSent       metric.Int64Counter
	NotificationsSuppressed metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksRegistered, err = meter.Int64Counter("tasktrack.tasks.registered",
		metric.WithDescription("Number of tasks registered"))
	if err != nil {
		return nil, err
	}

	m.TasksCompleted, err = meter.Int64Counter("tasktrack.tasks.completed",
		metric.WithDescription("Number of tasks completed"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("tasktrack.tasks.failed",
		metric.WithDescription("Number of tasks failed"))
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram("tasktrack.task.duration_seconds",
		metric.WithDescription("Wall time from registration to terminal state"))
	if err != nil {
		return nil, err
	}

	m.NotificationsSent, err = meter.Int64Counter("tasktrack.notifications.sent",
		metric.WithDescription("Number of notifications dispatched"))
	if err != nil {
		return nil, err
	}

	m.NotificationsSuppressed, err = meter.Int64Counter("tasktrack.notifications.suppressed",
		metric.WithDescription("Number of notifications suppressed by workspace presence"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTerminal records the counters and duration for a task that just
// reached a terminal state.
func (m *Metrics) RecordTerminal(ctx context.Context, t task.Task) {
	attrs := metric.WithAttributes(attribute.String("task.type", string(t.Type)))

	if t.Status == task.StatusFailed {
		m.TasksFailed.Add(ctx, 1, attrs)
	} else {
		m.TasksCompleted.Add(ctx, 1, attrs)
	}
	if t.CompletedAt != nil {
		m.TaskDuration.Record(ctx, t.CompletedAt.Sub(t.StartedAt).Seconds(), attrs)
	}
}
