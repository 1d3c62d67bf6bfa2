// Package navigation defines the pending-navigation handoff record.
package navigation

import "github.com/lexhq/tasktrack/internal/domain/task"

// Pending describes where the workspace view should land after the user acts
// on a completed-task notification. At most one Pending exists at a time
// (last-click-wins, see the resolver in internal/service).
type Pending struct {
	ConversationID        string    `json:"conversation_id,omitempty"`
	BackendConversationID string    `json:"backend_conversation_id,omitempty"`
	WorkflowID            string    `json:"workflow_id,omitempty"`
	TaskType              task.Type `json:"task_type"`
	RelatedDocumentIDs    []string  `json:"related_document_ids,omitempty"`
}

// FromTask builds the handoff record for a finished task.
func FromTask(t *task.Task) Pending {
	return Pending{
		ConversationID:        t.Context.ConversationID,
		BackendConversationID: t.Context.BackendConversationID,
		WorkflowID:            t.Context.WorkflowID,
		TaskType:              t.Type,
		RelatedDocumentIDs:    t.Context.RelatedDocumentIDs,
	}
}
