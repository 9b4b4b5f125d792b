package handlers

import (
	"context"
	"fmt"

	"github.com/solumhq/casedesk/modules/core/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

// RoleHandler maintains the roles projection and its role_permissions
// junction. Grants and revocations are idempotent so replays converge.
type RoleHandler struct{}

func NewRoleHandler() *RoleHandler {
	return &RoleHandler{}
}

func (h *RoleHandler) StreamType() string {
	return events.StreamTypeRole
}

func (h *RoleHandler) Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	switch evt.EventType {
	case events.TypeRoleCreated:
		var payload events.RoleCreated
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("role.created: decode: %w", err)
		}
		_, err := tx.Exec(ctx, `
INSERT INTO roles (id, tenant_id, name, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (id) DO NOTHING`,
			payload.ID, evt.TenantID, payload.Name, payload.Description, evt.CreatedAt)
		return err

	case events.TypeRoleUpdated:
		var payload events.RoleUpdated
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("role.updated: decode: %w", err)
		}
		_, err := tx.Exec(ctx, `
UPDATE roles
   SET name = COALESCE($2, name),
       description = COALESCE($3, description),
       updated_at = $4
 WHERE id = $1 AND deleted_at IS NULL`,
			evt.StreamID, payload.Name, payload.Description, evt.CreatedAt)
		return err

	case events.TypeRoleDeleted:
		_, err := tx.Exec(ctx, `
UPDATE roles SET deleted_at = COALESCE(deleted_at, $2), updated_at = $2
 WHERE id = $1`,
			evt.StreamID, evt.CreatedAt)
		return err

	case events.TypeRolePermissionGranted:
		var payload events.RolePermissionGranted
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("role.permission.granted: decode: %w", err)
		}
		_, err := tx.Exec(ctx, `
INSERT INTO role_permissions (role_id, permission_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`,
			evt.StreamID, payload.PermissionID)
		return err

	case events.TypeRolePermissionRevoked:
		var payload events.RolePermissionRevoked
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("role.permission.revoked: decode: %w", err)
		}
		_, err := tx.Exec(ctx, `
DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`,
			evt.StreamID, payload.PermissionID)
		return err

	default:
		return fmt.Errorf("role handler: unknown event type %q", evt.EventType)
	}
}
