package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lexhq/tasktrack/internal/adapter/otel"
	"github.com/lexhq/tasktrack/internal/domain/navigation"
	"github.com/lexhq/tasktrack/internal/domain/task"
	"github.com/lexhq/tasktrack/internal/port/notifier"
	"github.com/lexhq/tasktrack/internal/resilience"
)

// ViewResultLabel is the primary action offered on success notifications.
const ViewResultLabel = "View Result"

// ErrNoResult is returned when a view action targets a task without a
// viewable result (still running, or failed).
var ErrNoResult = errors.New("task has no viewable result")

// WorkspaceRoute is the in-app route of the AI workspace view.
const WorkspaceRoute = "/workspace"

// NavigationTarget is what the host application needs to route the user
// after they act on a notification.
type NavigationTarget struct {
	Route string            `json:"route"`
	Query map[string]string `json:"query,omitempty"`
}

// Presenter decides whether a terminal task transition is surfaced to the
// user and dispatches it to the registered notifiers. Rendering is
// best-effort: a notifier failure is logged and never reaches task state.
type Presenter struct {
	tracker  *Tracker
	presence *Presence
	resolver *NavigationResolver

	notifiers []notifier.Notifier
	breakers  map[string]*resilience.Breaker
	sem       *semaphore.Weighted
	sendWait  time.Duration

	metrics *otel.Metrics // may be nil
}

// PresenterOptions tunes notification delivery.
type PresenterOptions struct {
	// MaxConcurrentSends bounds parallel notifier deliveries. Default 4.
	MaxConcurrentSends int64
	// BreakerMaxFailures and BreakerTimeout configure the per-notifier
	// circuit breaker. Defaults: 5 failures, 30s open interval.
	BreakerMaxFailures int
	BreakerTimeout     time.Duration
	// SendTimeout bounds a single notifier delivery. Default 10s.
	SendTimeout time.Duration
	// Metrics receives sent/suppressed counters when non-nil.
	Metrics *otel.Metrics
}

// NewPresenter creates a Presenter over the given collaborators. Call Start
// to begin consuming terminal transitions.
func NewPresenter(tracker *Tracker, presence *Presence, resolver *NavigationResolver, notifiers []notifier.Notifier, opts PresenterOptions) *Presenter {
	if opts.MaxConcurrentSends <= 0 {
		opts.MaxConcurrentSends = 4
	}
	if opts.BreakerMaxFailures <= 0 {
		opts.BreakerMaxFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}

	breakers := make(map[string]*resilience.Breaker, len(notifiers))
	for _, n := range notifiers {
		breakers[n.Name()] = resilience.NewBreaker(opts.BreakerMaxFailures, opts.BreakerTimeout)
	}

	return &Presenter{
		tracker:   tracker,
		presence:  presence,
		resolver:  resolver,
		notifiers: notifiers,
		breakers:  breakers,
		sem:       semaphore.NewWeighted(opts.MaxConcurrentSends),
		sendWait:  opts.SendTimeout,
		metrics:   opts.Metrics,
	}
}

// Start subscribes to the tracker's terminal transitions. The returned
// function cancels the subscription.
func (p *Presenter) Start() (cancel func()) {
	return p.tracker.SubscribeTerminal(p.OnTerminal)
}

// OnTerminal handles a single completed/failed transition. Exposed for the
// tests; production wiring goes through Start.
func (p *Presenter) OnTerminal(t task.Task) {
	ctx := context.Background()

	if p.metrics != nil {
		p.metrics.RecordTerminal(ctx, t)
	}

	if p.presence.Active() {
		slog.Debug("notification suppressed, workspace active", "task_id", t.ID, "status", t.Status)
		if p.metrics != nil {
			p.metrics.NotificationsSuppressed.Add(ctx, 1)
		}
		return
	}

	p.Dispatch(ctx, buildNotification(t))
}

// Dispatch delivers a notification to every registered notifier. Each
// delivery runs in its own goroutine, bounded by the presenter's semaphore
// and guarded by the notifier's circuit breaker.
func (p *Presenter) Dispatch(ctx context.Context, n notifier.Notification) {
	for _, provider := range p.notifiers {
		go p.send(ctx, provider, n)
	}
	if p.metrics != nil {
		p.metrics.NotificationsSent.Add(ctx, 1)
	}
}

func (p *Presenter) send(ctx context.Context, provider notifier.Notifier, n notifier.Notification) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer p.sem.Release(1)

	sendCtx, cancel := context.WithTimeout(ctx, p.sendWait)
	defer cancel()

	breaker := p.breakers[provider.Name()]
	err := breaker.Execute(func() error {
		return provider.Send(sendCtx, n)
	})
	if err != nil {
		slog.Warn("notification send failed",
			"provider", provider.Name(),
			"title", n.Title,
			"error", err,
		)
		return
	}
	slog.Debug("notification sent", "provider", provider.Name(), "title", n.Title)
}

// HandleViewAction services a "View Result" click: it stashes the task's
// navigation context, removes the task and returns the destination route.
// Only completed tasks carry a viewable result.
func (p *Presenter) HandleViewAction(ctx context.Context, taskID string) (*NavigationTarget, error) {
	t, err := p.tracker.Get(taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != task.StatusCompleted {
		return nil, fmt.Errorf("%w: task %s is %s", ErrNoResult, taskID, t.Status)
	}

	p.resolver.Set(navigation.FromTask(t))
	p.tracker.Remove(ctx, taskID)

	target := &NavigationTarget{Route: WorkspaceRoute, Query: map[string]string{}}
	if t.Context.ConversationID != "" {
		target.Query["conversation"] = t.Context.ConversationID
	}
	if t.Context.WorkflowID != "" {
		target.Query["workflow"] = t.Context.WorkflowID
	}
	return target, nil
}

// buildNotification maps a terminal task to user-facing copy. Failure
// notifications carry no action: there is no result to view.
func buildNotification(t task.Task) notifier.Notification {
	if t.Status == task.StatusFailed {
		return notifier.Notification{
			Title:   failureTitle(t.Type),
			Message: failureMessage(t),
			Level:   "error",
			Source:  "task.failed",
		}
	}
	return notifier.Notification{
		Title:       successTitle(t.Type),
		Message:     t.Title,
		Level:       "success",
		Source:      "task.completed",
		TaskID:      t.ID,
		ActionLabel: ViewResultLabel,
	}
}

func successTitle(tt task.Type) string {
	switch tt {
	case task.TypeQuestion:
		return "Answer ready"
	case task.TypeDraft:
		return "Draft ready"
	case task.TypeAnalysis:
		return "Analysis complete"
	case task.TypeWorkflow:
		return "Workflow finished"
	default:
		return "Task complete"
	}
}

func failureTitle(tt task.Type) string {
	switch tt {
	case task.TypeQuestion:
		return "Question failed"
	case task.TypeDraft:
		return "Draft generation failed"
	case task.TypeAnalysis:
		return "Analysis failed"
	case task.TypeWorkflow:
		return "Workflow failed"
	default:
		return "Task failed"
	}
}

func failureMessage(t task.Task) string {
	if t.Error != "" {
		return fmt.Sprintf("%s: %s", t.Title, t.Error)
	}
	return t.Title
}
