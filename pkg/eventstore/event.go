package eventstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one immutable row of the append-only log. Once written, only the
// processing status fields (processed_at, processing_error) and the dismissal
// fields may change; the payload never does.
type Event struct {
	ID              uuid.UUID
	SequenceNumber  int64
	TenantID        uuid.UUID
	StreamID        uuid.UUID
	StreamType      string
	StreamVersion   int64
	EventType       string
	EventData       json.RawMessage
	EventMetadata   Metadata
	CreatedAt       time.Time
	ProcessedAt     *time.Time
	ProcessingError *string
	DismissedAt     *time.Time
	DismissedBy     *uuid.UUID
	DismissReason   *string
}

// Metadata travels with every event: who did it, why, and how to correlate
// it across systems.
type Metadata struct {
	ActorID       uuid.UUID `json:"actor_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	// W3C Trace Context pair, propagated as-is to the workflow engine.
	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

// AppendParams describes one event to append. ExpectedVersion zero means
// "next version, whatever that is" and enables the bounded retry loop;
// a positive value demands exactly that version and surfaces a conflict to
// the caller instead of retrying.
type AppendParams struct {
	TenantID        uuid.UUID `validate:"required"`
	StreamID        uuid.UUID `validate:"required"`
	StreamType      string    `validate:"required"`
	EventType       string    `validate:"required,event_taxonomy"`
	Data            any
	Metadata        Metadata
	ExpectedVersion int64 `validate:"gte=0"`
}

// AppendResult reports what was durably recorded. ProjectionPending is true
// when the event was stored but its projection handler failed: the write
// succeeded, the read model is stale until an administrator retries.
type AppendResult struct {
	EventID           uuid.UUID
	StreamVersion     int64
	SequenceNumber    int64
	CreatedAt         time.Time
	ProjectionPending bool
}

// Unmarshal decodes the event payload into out.
func (e *Event) Unmarshal(out any) error {
	return json.Unmarshal(e.EventData, out)
}

func (e *Event) Processed() bool {
	return e.ProcessedAt != nil
}

func (e *Event) Failed() bool {
	return e.ProcessingError != nil
}

func (e *Event) Dismissed() bool {
	return e.DismissedAt != nil
}
