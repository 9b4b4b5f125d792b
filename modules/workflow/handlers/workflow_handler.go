package handlers

import (
	"context"
	"fmt"

	"github.com/solumhq/casedesk/modules/workflow/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

type WorkflowHandler struct{}

func NewWorkflowHandler() *WorkflowHandler {
	return &WorkflowHandler{}
}

func (h *WorkflowHandler) StreamType() string {
	return events.StreamTypeWorkflow
}

func (h *WorkflowHandler) Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	switch evt.EventType {
	case events.TypeBootstrapInitiated:
		var payload events.BootstrapInitiated
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("workflow.bootstrap.initiated: decode: %w", err)
		}
		_, err := tx.Exec(ctx, `
INSERT INTO workflows (id, tenant_id, kind, subject_type, subject_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (id) DO NOTHING`,
			payload.ID, evt.TenantID, payload.Kind, payload.SubjectType, payload.SubjectID, evt.CreatedAt)
		return err

	case events.TypeWorkflowCompleted:
		_, err := tx.Exec(ctx, `
UPDATE workflows SET status = 'completed', updated_at = $2
 WHERE id = $1 AND status = 'running'`,
			evt.StreamID, evt.CreatedAt)
		return err

	case events.TypeWorkflowFailed:
		_, err := tx.Exec(ctx, `
UPDATE workflows SET status = 'failed', updated_at = $2
 WHERE id = $1 AND status = 'running'`,
			evt.StreamID, evt.CreatedAt)
		return err

	default:
		return fmt.Errorf("workflow handler: unknown event type %q", evt.EventType)
	}
}
