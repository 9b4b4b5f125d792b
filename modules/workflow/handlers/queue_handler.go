package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/solumhq/casedesk/modules/workflow/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

// QueueHandler maintains workflow_queue_entries. Each transition is guarded
// by the status it may move from, so an out-of-order or replayed event is a
// silent no-op rather than a regression.
type QueueHandler struct{}

func NewQueueHandler() *QueueHandler {
	return &QueueHandler{}
}

func (h *QueueHandler) StreamType() string {
	return events.StreamTypeQueueEntry
}

func (h *QueueHandler) Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	switch evt.EventType {
	case events.TypeQueuePending:
		var payload events.QueuePending
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("workflow.queue.pending: decode: %w", err)
		}
		data := payload.Payload
		if len(data) == 0 {
			data = []byte(`{}`)
		}
		meta, err := json.Marshal(evt.EventMetadata)
		if err != nil {
			return fmt.Errorf("workflow.queue.pending: encode metadata: %w", err)
		}
		_, err = tx.Exec(ctx, `
INSERT INTO workflow_queue_entries (id, tenant_id, workflow_id, topic, payload, event_metadata, available_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $7)
ON CONFLICT (id) DO NOTHING`,
			payload.ID, evt.TenantID, payload.WorkflowID, payload.Topic, data, meta, evt.CreatedAt)
		return err

	case events.TypeQueueClaimed:
		_, err := tx.Exec(ctx, `
UPDATE workflow_queue_entries SET status = 'processing', updated_at = $2
 WHERE id = $1 AND status = 'pending'`,
			evt.StreamID, evt.CreatedAt)
		return err

	case events.TypeQueueRequeued:
		var payload events.QueueRequeued
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("workflow.queue.requeued: decode: %w", err)
		}
		_, err := tx.Exec(ctx, `
UPDATE workflow_queue_entries
   SET status = 'pending',
       locked_at = NULL,
       last_error = $2,
       available_at = $3,
       updated_at = $4
 WHERE id = $1 AND status = 'processing'`,
			evt.StreamID, payload.Error, payload.AvailableAt, evt.CreatedAt)
		return err

	case events.TypeQueueCompleted:
		_, err := tx.Exec(ctx, `
UPDATE workflow_queue_entries
   SET status = 'completed',
       locked_at = NULL,
       last_error = NULL,
       completed_at = $2,
       updated_at = $2
 WHERE id = $1 AND status = 'processing'`,
			evt.StreamID, evt.CreatedAt)
		return err

	case events.TypeQueueFailed:
		var payload events.QueueFailed
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("workflow.queue.failed: decode: %w", err)
		}
		_, err := tx.Exec(ctx, `
UPDATE workflow_queue_entries
   SET status = 'failed',
       locked_at = NULL,
       last_error = $2,
       updated_at = $3
 WHERE id = $1 AND status IN ('pending', 'processing')`,
			evt.StreamID, payload.Error, evt.CreatedAt)
		return err

	default:
		return fmt.Errorf("workflow queue handler: unknown event type %q", evt.EventType)
	}
}
