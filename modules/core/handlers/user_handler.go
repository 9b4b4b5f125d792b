package handlers

import (
	"context"
	"fmt"

	"github.com/solumhq/casedesk/modules/core/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

type UserHandler struct{}

func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

func (h *UserHandler) StreamType() string {
	return events.StreamTypeUser
}

func (h *UserHandler) Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	switch evt.EventType {
	case events.TypeUserCreated:
		var payload events.UserCreated
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("user.created: decode: %w", err)
		}
		_, err := tx.Exec(ctx, `
INSERT INTO users (id, tenant_id, email, display_name, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (id) DO NOTHING`,
			payload.ID, evt.TenantID, payload.Email, payload.DisplayName, evt.CreatedAt)
		return err

	case events.TypeUserUpdated:
		var payload events.UserUpdated
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("user.updated: decode: %w", err)
		}
		_, err := tx.Exec(ctx, `
UPDATE users
   SET email = COALESCE($2, email),
       display_name = COALESCE($3, display_name),
       updated_at = $4
 WHERE id = $1 AND deleted_at IS NULL`,
			evt.StreamID, payload.Email, payload.DisplayName, evt.CreatedAt)
		return err

	case events.TypeUserActivated:
		return h.setStatus(ctx, tx, evt, "active")
	case events.TypeUserDeactivated:
		return h.setStatus(ctx, tx, evt, "inactive")

	case events.TypeUserDeleted:
		_, err := tx.Exec(ctx, `
UPDATE users SET deleted_at = COALESCE(deleted_at, $2), updated_at = $2
 WHERE id = $1`,
			evt.StreamID, evt.CreatedAt)
		return err

	default:
		return fmt.Errorf("user handler: unknown event type %q", evt.EventType)
	}
}

func (h *UserHandler) setStatus(ctx context.Context, tx repo.Tx, evt *eventstore.Event, status string) error {
	_, err := tx.Exec(ctx, `
UPDATE users SET status = $2, updated_at = $3
 WHERE id = $1 AND deleted_at IS NULL`,
		evt.StreamID, status, evt.CreatedAt)
	return err
}
