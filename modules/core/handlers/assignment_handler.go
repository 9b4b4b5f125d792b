package handlers

import (
	"context"
	"fmt"

	"github.com/solumhq/casedesk/modules/core/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

// AssignmentHandler maintains user_role_assignments. Authorization checks
// (subset-only delegation, scope containment) happen before the event is
// appended; by the time an event reaches this handler it is a recorded fact
// and is applied unconditionally.
type AssignmentHandler struct{}

func NewAssignmentHandler() *AssignmentHandler {
	return &AssignmentHandler{}
}

func (h *AssignmentHandler) StreamType() string {
	return events.StreamTypeAssignment
}

func (h *AssignmentHandler) Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	switch evt.EventType {
	case events.TypeAssignmentCreated:
		var payload events.AssignmentCreated
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("role.assignment.created: decode: %w", err)
		}
		_, err := tx.Exec(ctx, `
INSERT INTO user_role_assignments (id, tenant_id, user_id, role_id, scope_path, valid_from, valid_until, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`,
			payload.ID, evt.TenantID, payload.UserID, payload.RoleID,
			payload.Scope.String(), payload.ValidFrom, payload.ValidUntil, evt.CreatedAt)
		return err

	case events.TypeAssignmentRevoked:
		// Keep the first revocation timestamp on replay.
		_, err := tx.Exec(ctx, `
UPDATE user_role_assignments SET revoked_at = COALESCE(revoked_at, $2)
 WHERE id = $1`,
			evt.StreamID, evt.CreatedAt)
		return err

	default:
		return fmt.Errorf("role assignment handler: unknown event type %q", evt.EventType)
	}
}
