package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	StreamTypeWorkflow   = "workflow"
	StreamTypeQueueEntry = "workflow_queue_entry"
)

const (
	TypeBootstrapInitiated = "workflow.bootstrap.initiated"
	TypeWorkflowCompleted  = "workflow.completed"
	TypeWorkflowFailed     = "workflow.failed"

	TypeQueuePending   = "workflow.queue.pending"
	TypeQueueClaimed   = "workflow.queue.claimed"
	TypeQueueRequeued  = "workflow.queue.requeued"
	TypeQueueCompleted = "workflow.queue.completed"
	TypeQueueFailed    = "workflow.queue.failed"
)

// BootstrapInitiated starts a workflow for a subject entity. Parameters are
// passed through to the external engine untouched.
type BootstrapInitiated struct {
	ID          uuid.UUID       `json:"id"`
	Kind        string          `json:"kind"`
	SubjectType string          `json:"subject_type"`
	SubjectID   uuid.UUID       `json:"subject_id"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type WorkflowFailed struct {
	Error string `json:"error,omitempty"`
}

// QueuePending enqueues one dispatch to the engine. The entry rides its own
// stream so its lifecycle transitions version independently of the workflow.
type QueuePending struct {
	ID         uuid.UUID       `json:"id"`
	WorkflowID uuid.UUID       `json:"workflow_id"`
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// QueueRequeued returns a claimed entry to the pending pool after a
// transient dispatch failure.
type QueueRequeued struct {
	Error       string    `json:"error,omitempty"`
	AvailableAt time.Time `json:"available_at"`
}

type QueueCompleted struct {
	Result json.RawMessage `json:"result,omitempty"`
}

type QueueFailed struct {
	Error string `json:"error,omitempty"`
}
