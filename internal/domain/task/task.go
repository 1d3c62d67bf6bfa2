// Package task defines the tracked background task entity.
package task

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of AI operation a task tracks. The set is closed:
// it drives notification copy and which context fields are meaningful.
type Type string

const (
	TypeQuestion Type = "question" // legal question answering
	TypeDraft    Type = "draft"    // document draft generation
	TypeAnalysis Type = "analysis" // document analysis
	TypeWorkflow Type = "workflow" // multi-step workflow
)

// Valid reports whether t is one of the known task types.
func (t Type) Valid() bool {
	switch t {
	case TypeQuestion, TypeDraft, TypeAnalysis, TypeWorkflow:
		return true
	}
	return false
}

// Status represents the current lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is a terminal status. Terminal tasks accept no
// further lifecycle transitions; the only remaining operation is removal.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Context carries the navigation-restoration fields attached at registration.
// All fields are optional; the tracker never interprets them beyond the
// first-completed-for-conversation lookup.
type Context struct {
	ConversationID        string   `json:"conversation_id,omitempty"`
	BackendConversationID string   `json:"backend_conversation_id,omitempty"`
	DocumentID            string   `json:"document_id,omitempty"`
	WorkflowID            string   `json:"workflow_id,omitempty"`
	RelatedDocumentIDs    []string `json:"related_document_ids,omitempty"`
	ResearchMode          string   `json:"research_mode,omitempty"`
}

// Task represents one tracked unit of asynchronous AI work. Its lifecycle
// outlives the view that started it; the tracker is the single source of
// truth for its state within a session.
type Task struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Status      Status          `json:"status"`
	Progress    int             `json:"progress"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Context     Context         `json:"context,omitempty"`
}

// RegisterRequest holds the fields needed to register a new task.
// ID is optional: out-of-process producers supply their own so later
// lifecycle messages can reference it; when empty the tracker assigns one.
type RegisterRequest struct {
	ID          string  `json:"id,omitempty"`
	Type        Type    `json:"type"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Context     Context `json:"context,omitempty"`
}

// Summary aggregates per-status counts for the workspace in-page indicator.
type Summary struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
