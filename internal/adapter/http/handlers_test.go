package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/lexhq/tasktrack/internal/domain/navigation"
	"github.com/lexhq/tasktrack/internal/domain/task"
	"github.com/lexhq/tasktrack/internal/port/broadcast"
	"github.com/lexhq/tasktrack/internal/service"
)

func newTestRouter(t *testing.T) (chi.Router, *Handlers) {
	t.Helper()

	tracker := service.NewTracker(broadcast.Nop{}, nil)
	presence := service.NewPresence()
	resolver := service.NewNavigationResolver()
	presenter := service.NewPresenter(tracker, presence, resolver, nil, service.PresenterOptions{})

	h := &Handlers{
		Tracker:   tracker,
		Presenter: presenter,
		Presence:  presence,
		Resolver:  resolver,
	}

	r := chi.NewRouter()
	MountRoutes(r, h)
	return r, h
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) task.Task {
	t.Helper()
	var got task.Task
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	return got
}

func TestRegisterTask(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/tasks", task.RegisterRequest{
		Type:  task.TypeQuestion,
		Title: "Is this clause enforceable?",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	got := decodeTask(t, rec)
	if got.ID == "" || got.Status != task.StatusPending {
		t.Fatalf("unexpected task %+v", got)
	}
}

func TestRegisterTaskValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/tasks", task.RegisterRequest{
		Type:  "juggling",
		Title: "nope",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/v1/tasks", task.RegisterRequest{
		Type: task.TypeQuestion,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing title, got %d", rec.Code)
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/tasks", task.RegisterRequest{
		Type:  task.TypeAnalysis,
		Title: "Analyze merger agreement",
	})
	created := decodeTask(t, rec)

	if rec := doJSON(t, r, http.MethodPost, "/api/v1/tasks/"+created.ID+"/start", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("start: expected 204, got %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodPost, "/api/v1/tasks/"+created.ID+"/progress", map[string]any{
		"progress": 40, "description": "chunk 2 of 5",
	}); rec.Code != http.StatusNoContent {
		t.Fatalf("progress: expected 204, got %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodPost, "/api/v1/tasks/"+created.ID+"/complete", map[string]any{
		"result": map[string]string{"summary": "low risk"},
	}); rec.Code != http.StatusNoContent {
		t.Fatalf("complete: expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/v1/tasks/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	got := decodeTask(t, rec)
	if got.Status != task.StatusCompleted || got.Progress != 100 {
		t.Fatalf("unexpected final task %+v", got)
	}
}

func TestFailTaskRequiresReason(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/tasks", task.RegisterRequest{
		Type:  task.TypeDraft,
		Title: "Draft demand letter",
	})
	created := decodeTask(t, rec)

	if rec := doJSON(t, r, http.MethodPost, "/api/v1/tasks/"+created.ID+"/fail", map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty error, got %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodPost, "/api/v1/tasks/"+created.ID+"/fail", map[string]string{
		"error": "backend unavailable",
	}); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestLifecycleOnUnknownIDAnswers204(t *testing.T) {
	r, _ := newTestRouter(t)

	// The task may have been removed by a concurrent user action; late
	// producer callbacks must not see an error.
	if rec := doJSON(t, r, http.MethodPost, "/api/v1/tasks/ghost/start", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodPost, "/api/v1/tasks/ghost/complete", map[string]any{}); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/tasks/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListEndpoints(t *testing.T) {
	r, h := newTestRouter(t)
	ctx := context.Background()

	q := h.Tracker.Register(ctx, task.RegisterRequest{Type: task.TypeQuestion, Title: "q"})
	d := h.Tracker.Register(ctx, task.RegisterRequest{Type: task.TypeDraft, Title: "d"})
	h.Tracker.Start(ctx, d.ID)
	h.Tracker.Complete(ctx, d.ID, nil)
	_ = q

	checkCount := func(path string, want int) {
		t.Helper()
		rec := doJSON(t, r, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		var got []task.Task
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
		if len(got) != want {
			t.Fatalf("%s: expected %d tasks, got %d", path, want, len(got))
		}
	}

	checkCount("/api/v1/tasks", 2)
	checkCount("/api/v1/tasks?type=question", 1)
	checkCount("/api/v1/tasks/running", 1)
	checkCount("/api/v1/tasks/completed", 1)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/tasks/summary", nil)
	var s task.Summary
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if s.Pending != 1 || s.Completed != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestListTasksEmptyIsArray(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/tasks", nil)
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty JSON array, got %q", body)
	}
}

func TestViewTaskFlow(t *testing.T) {
	r, h := newTestRouter(t)
	ctx := context.Background()

	created := h.Tracker.Register(ctx, task.RegisterRequest{
		Type:    task.TypeQuestion,
		Title:   "q",
		Context: task.Context{ConversationID: "conv-11"},
	})
	h.Tracker.Start(ctx, created.ID)
	h.Tracker.Complete(ctx, created.ID, nil)

	rec := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/view", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var target service.NavigationTarget
	if err := json.NewDecoder(rec.Body).Decode(&target); err != nil {
		t.Fatalf("decode target: %v", err)
	}
	if target.Route != service.WorkspaceRoute || target.Query["conversation"] != "conv-11" {
		t.Fatalf("unexpected target %+v", target)
	}

	// Task is gone, navigation is stashed and consumable exactly once.
	if rec := doJSON(t, r, http.MethodGet, "/api/v1/tasks/"+created.ID, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after view, got %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/v1/workspace/navigation/pending", nil)
	var pendingResp map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&pendingResp); err != nil {
		t.Fatalf("decode pending: %v", err)
	}
	if !pendingResp["pending"] {
		t.Fatal("expected pending navigation")
	}

	rec = doJSON(t, r, http.MethodGet, "/api/v1/workspace/navigation", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var nav navigation.Pending
	if err := json.NewDecoder(rec.Body).Decode(&nav); err != nil {
		t.Fatalf("decode navigation: %v", err)
	}
	if nav.ConversationID != "conv-11" {
		t.Fatalf("unexpected navigation %+v", nav)
	}

	if rec := doJSON(t, r, http.MethodGet, "/api/v1/workspace/navigation", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on second take, got %d", rec.Code)
	}
}

func TestViewTaskConflictForRunning(t *testing.T) {
	r, h := newTestRouter(t)
	ctx := context.Background()

	created := h.Tracker.Register(ctx, task.RegisterRequest{Type: task.TypeDraft, Title: "d"})
	h.Tracker.Start(ctx, created.ID)

	rec := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/view", created.ID), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestSetPresence(t *testing.T) {
	r, h := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPut, "/api/v1/workspace/presence", map[string]bool{"active": true})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if !h.Presence.Active() {
		t.Fatal("expected presence active")
	}

	doJSON(t, r, http.MethodPut, "/api/v1/workspace/presence", map[string]bool{"active": false})
	if h.Presence.Active() {
		t.Fatal("expected presence inactive")
	}
}

func TestClearCompletedEndpoint(t *testing.T) {
	r, h := newTestRouter(t)
	ctx := context.Background()

	keep := h.Tracker.Register(ctx, task.RegisterRequest{Type: task.TypeQuestion, Title: "keep"})
	done := h.Tracker.Register(ctx, task.RegisterRequest{Type: task.TypeDraft, Title: "done"})
	h.Tracker.Start(ctx, done.ID)
	h.Tracker.Complete(ctx, done.ID, nil)

	if rec := doJSON(t, r, http.MethodPost, "/api/v1/tasks/clear-completed", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	if _, err := h.Tracker.Get(keep.ID); err != nil {
		t.Fatal("pending task must survive")
	}
	if _, err := h.Tracker.Get(done.ID); err == nil {
		t.Fatal("completed task must be cleared")
	}
}

func TestFirstCompletedForConversationEndpoint(t *testing.T) {
	r, h := newTestRouter(t)
	ctx := context.Background()

	created := h.Tracker.Register(ctx, task.RegisterRequest{
		Type:    task.TypeQuestion,
		Title:   "q",
		Context: task.Context{ConversationID: "conv-5"},
	})
	h.Tracker.Start(ctx, created.ID)
	h.Tracker.Complete(ctx, created.ID, nil)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/conversations/conv-5/first-completed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decodeTask(t, rec)
	if got.ID != created.ID {
		t.Fatalf("expected task %s, got %s", created.ID, got.ID)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/v1/conversations/other/first-completed", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
