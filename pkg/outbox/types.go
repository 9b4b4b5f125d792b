package outbox

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Entry is one claimed queue item handed to the relay for dispatch.
type Entry struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	WorkflowID uuid.UUID
	Topic      string
	Payload    json.RawMessage
	Attempts   int

	// Trace context captured from the event that enqueued the entry.
	TraceParent string
	TraceState  string
}

// Meta is the stable dispatch metadata (idempotency + tracing + ops).
type Meta struct {
	TenantID   uuid.UUID
	WorkflowID uuid.UUID
	EntryID    uuid.UUID
	Topic      string
	Attempts   int

	// Optional W3C Trace Context, propagated to the workflow engine.
	TraceParent string
	TraceState  string
}

// DispatchedMessage is the unit delivered by Relay to a Dispatcher.
type DispatchedMessage struct {
	Meta    Meta
	Payload json.RawMessage
}
