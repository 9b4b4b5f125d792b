package handlers

import (
	"context"
	"fmt"

	"github.com/solumhq/casedesk/modules/access/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

type ImpersonationHandler struct{}

func NewImpersonationHandler() *ImpersonationHandler {
	return &ImpersonationHandler{}
}

func (h *ImpersonationHandler) StreamType() string {
	return events.StreamTypeImpersonation
}

func (h *ImpersonationHandler) Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	switch evt.EventType {
	case events.TypeImpersonationStarted:
		var payload events.ImpersonationStarted
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("access.impersonation.started: decode: %w", err)
		}
		_, err := tx.Exec(ctx, `
INSERT INTO impersonation_sessions (id, tenant_id, impersonator_id, subject_user_id, reason, expires_at, started_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`,
			payload.ID, evt.TenantID, payload.ImpersonatorID, payload.SubjectUserID,
			payload.Reason, payload.ExpiresAt, evt.CreatedAt)
		return err

	case events.TypeImpersonationEnded:
		_, err := tx.Exec(ctx, `
UPDATE impersonation_sessions SET ended_at = COALESCE(ended_at, $2)
 WHERE id = $1`,
			evt.StreamID, evt.CreatedAt)
		return err

	default:
		return fmt.Errorf("impersonation handler: unknown event type %q", evt.EventType)
	}
}
