package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lexhq/tasktrack/internal/adapter/otel"
	"github.com/lexhq/tasktrack/internal/domain"
	"github.com/lexhq/tasktrack/internal/domain/task"
	"github.com/lexhq/tasktrack/internal/service"
)

// Handlers bundles the service dependencies for all HTTP handlers.
type Handlers struct {
	Tracker   *service.Tracker
	Presenter *service.Presenter
	Presence  *service.Presence
	Resolver  *service.NavigationResolver
	Metrics   *otel.Metrics // may be nil
}

// RegisterTask creates a new tracked task in pending state.
func (h *Handlers) RegisterTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.RegisterRequest](w, r)
	if !ok {
		return
	}
	if !req.Type.Valid() {
		writeDomainError(w, domain.ErrInvalidType, "")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	t := h.Tracker.Register(r.Context(), req)
	if h.Metrics != nil {
		h.Metrics.TasksRegistered.Add(r.Context(), 1,
			metric.WithAttributes(attribute.String("task.type", string(t.Type))))
	}
	writeJSON(w, http.StatusCreated, t)
}

// StartTask transitions a task to running. Stale ids are benign no-ops and
// still answer 204: the task may have been removed by a concurrent user action.
func (h *Handlers) StartTask(w http.ResponseWriter, r *http.Request) {
	h.Tracker.Start(r.Context(), urlParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// ReportProgress updates a running task's progress and description.
func (h *Handlers) ReportProgress(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Progress    int    `json:"progress"`
		Description string `json:"description,omitempty"`
	}](w, r)
	if !ok {
		return
	}

	h.Tracker.ReportProgress(r.Context(), urlParam(r, "id"), req.Progress, req.Description)
	w.WriteHeader(http.StatusNoContent)
}

// CompleteTask marks a task completed with an opaque result payload.
func (h *Handlers) CompleteTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Result json.RawMessage `json:"result,omitempty"`
	}](w, r)
	if !ok {
		return
	}

	h.Tracker.Complete(r.Context(), urlParam(r, "id"), req.Result)
	w.WriteHeader(http.StatusNoContent)
}

// FailTask marks a task failed with a human-readable reason.
func (h *Handlers) FailTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Error string `json:"error"`
	}](w, r)
	if !ok {
		return
	}
	if req.Error == "" {
		writeError(w, http.StatusBadRequest, "error is required")
		return
	}

	h.Tracker.Fail(r.Context(), urlParam(r, "id"), req.Error)
	w.WriteHeader(http.StatusNoContent)
}

// RemoveTask deletes a task regardless of status.
func (h *Handlers) RemoveTask(w http.ResponseWriter, r *http.Request) {
	h.Tracker.Remove(r.Context(), urlParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// ClearCompleted removes every task in a terminal state.
func (h *Handlers) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	h.Tracker.ClearCompleted(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// ListTasks returns all tasks, optionally filtered by ?type=.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	if tt := r.URL.Query().Get("type"); tt != "" {
		if !task.Type(tt).Valid() {
			writeDomainError(w, domain.ErrInvalidType, "")
			return
		}
		writeJSON(w, http.StatusOK, nonNil(h.Tracker.ListByType(task.Type(tt))))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(h.Tracker.List()))
}

// GetTask returns a single task by id.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tracker.Get(urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListRunning returns tasks that are pending or running.
func (h *Handlers) ListRunning(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.Tracker.ListRunning()))
}

// ListCompleted returns tasks in a terminal state.
func (h *Handlers) ListCompleted(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.Tracker.ListCompleted()))
}

// TaskSummary returns per-status counts for the workspace indicator.
func (h *Handlers) TaskSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Tracker.Summary())
}

// FirstCompletedForConversation returns the earliest completed task bound to
// a conversation, used to resume a chat thread.
func (h *Handlers) FirstCompletedForConversation(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tracker.FirstCompletedForConversation(urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "no completed task for conversation")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ViewTask services the "View Result" notification action: it stashes the
// navigation context, removes the task and returns the destination route.
func (h *Handlers) ViewTask(w http.ResponseWriter, r *http.Request) {
	target, err := h.Presenter.HandleViewAction(r.Context(), urlParam(r, "id"))
	if err != nil {
		if errors.Is(err, service.ErrNoResult) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, target)
}

// SetPresence records whether the workspace view is active. While active,
// completion toasts are suppressed.
func (h *Handlers) SetPresence(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Active bool `json:"active"`
	}](w, r)
	if !ok {
		return
	}

	h.Presence.Set(req.Active)
	w.WriteHeader(http.StatusNoContent)
}

// TakeNavigation consumes and returns the pending navigation, or 204 when
// none is waiting.
func (h *Handlers) TakeNavigation(w http.ResponseWriter, _ *http.Request) {
	p := h.Resolver.Take()
	if p == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HasNavigation reports whether a navigation is pending without consuming it.
func (h *Handlers) HasNavigation(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"pending": h.Resolver.Pending()})
}

// nonNil normalizes a nil slice to an empty one so clients always see an array.
func nonNil(tasks []task.Task) []task.Task {
	if tasks == nil {
		return []task.Task{}
	}
	return tasks
}
