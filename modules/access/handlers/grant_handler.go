package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/solumhq/casedesk/modules/access/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

type GrantHandler struct{}

func NewGrantHandler() *GrantHandler {
	return &GrantHandler{}
}

func (h *GrantHandler) StreamType() string {
	return events.StreamTypeAccessGrant
}

func (h *GrantHandler) Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	switch evt.EventType {
	case events.TypeGrantCreated:
		var payload events.GrantCreated
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("access.grant.created: decode: %w", err)
		}
		var grantedBy *uuid.UUID
		if evt.EventMetadata.ActorID != uuid.Nil {
			grantedBy = &evt.EventMetadata.ActorID
		}
		_, err := tx.Exec(ctx, `
INSERT INTO access_grants (id, tenant_id, user_id, scope_path, granted_by, valid_from, valid_until, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`,
			payload.ID, evt.TenantID, payload.UserID, payload.Scope.String(),
			grantedBy, payload.ValidFrom, payload.ValidUntil, evt.CreatedAt)
		return err

	case events.TypeGrantRevoked:
		_, err := tx.Exec(ctx, `
UPDATE access_grants SET revoked_at = COALESCE(revoked_at, $2)
 WHERE id = $1`,
			evt.StreamID, evt.CreatedAt)
		return err

	default:
		return fmt.Errorf("access grant handler: unknown event type %q", evt.EventType)
	}
}
