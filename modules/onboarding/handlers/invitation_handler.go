package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/solumhq/casedesk/modules/onboarding/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

// InvitationHandler maintains the invitations projection with guarded
// status transitions: each update names the statuses it may move from, so
// replays and out-of-order duplicates degrade to no-ops.
type InvitationHandler struct{}

func NewInvitationHandler() *InvitationHandler {
	return &InvitationHandler{}
}

func (h *InvitationHandler) StreamType() string {
	return events.StreamTypeInvitation
}

func (h *InvitationHandler) Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	switch evt.EventType {
	case events.TypeInvitationCreated:
		var payload events.InvitationCreated
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("invitation.created: decode: %w", err)
		}
		var invitedBy *uuid.UUID
		if evt.EventMetadata.ActorID != uuid.Nil {
			invitedBy = &evt.EventMetadata.ActorID
		}
		_, err := tx.Exec(ctx, `
INSERT INTO invitations (id, tenant_id, email, role_id, scope_path, invited_by, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (id) DO NOTHING`,
			payload.ID, evt.TenantID, payload.Email, payload.RoleID, payload.Scope.String(),
			invitedBy, payload.ExpiresAt, evt.CreatedAt)
		return err

	case events.TypeInvitationSent:
		_, err := tx.Exec(ctx, `
UPDATE invitations SET status = 'sent', updated_at = $2
 WHERE id = $1 AND status = 'pending'`,
			evt.StreamID, evt.CreatedAt)
		return err

	case events.TypeInvitationAccepted:
		var payload events.InvitationAccepted
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("invitation.accepted: decode: %w", err)
		}
		_, err := tx.Exec(ctx, `
UPDATE invitations SET status = 'accepted', accepted_user_id = $2, updated_at = $3
 WHERE id = $1 AND status IN ('pending', 'sent')`,
			evt.StreamID, payload.UserID, evt.CreatedAt)
		return err

	case events.TypeInvitationRevoked:
		_, err := tx.Exec(ctx, `
UPDATE invitations SET status = 'revoked', updated_at = $2
 WHERE id = $1 AND status IN ('pending', 'sent')`,
			evt.StreamID, evt.CreatedAt)
		return err

	case events.TypeInvitationExpired:
		_, err := tx.Exec(ctx, `
UPDATE invitations SET status = 'expired', updated_at = $2
 WHERE id = $1 AND status IN ('pending', 'sent')`,
			evt.StreamID, evt.CreatedAt)
		return err

	default:
		return fmt.Errorf("invitation handler: unknown event type %q", evt.EventType)
	}
}
