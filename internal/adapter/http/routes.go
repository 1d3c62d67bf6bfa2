package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Task lifecycle (feature producers)
		r.Post("/tasks", h.RegisterTask)
		r.Post("/tasks/clear-completed", h.ClearCompleted)
		r.Post("/tasks/{id}/start", h.StartTask)
		r.Post("/tasks/{id}/progress", h.ReportProgress)
		r.Post("/tasks/{id}/complete", h.CompleteTask)
		r.Post("/tasks/{id}/fail", h.FailTask)
		r.Delete("/tasks/{id}", h.RemoveTask)

		// Task queries (workspace view)
		r.Get("/tasks", h.ListTasks)
		r.Get("/tasks/running", h.ListRunning)
		r.Get("/tasks/completed", h.ListCompleted)
		r.Get("/tasks/summary", h.TaskSummary)
		r.Get("/tasks/{id}", h.GetTask)
		r.Get("/conversations/{id}/first-completed", h.FirstCompletedForConversation)

		// Notification action
		r.Post("/tasks/{id}/view", h.ViewTask)

		// Workspace presence and navigation handoff
		r.Put("/workspace/presence", h.SetPresence)
		r.Get("/workspace/navigation", h.TakeNavigation)
		r.Get("/workspace/navigation/pending", h.HasNavigation)
	})
}
