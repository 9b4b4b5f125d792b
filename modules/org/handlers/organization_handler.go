package handlers

import (
	"context"
	"fmt"

	"github.com/solumhq/casedesk/modules/org/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

// OrganizationHandler maintains the organizations projection. Creation is
// idempotent through ON CONFLICT DO NOTHING; updates coalesce with existing
// values so a replay never regresses fields a later event has written.
type OrganizationHandler struct{}

func NewOrganizationHandler() *OrganizationHandler {
	return &OrganizationHandler{}
}

func (h *OrganizationHandler) StreamType() string {
	return events.StreamTypeOrganization
}

func (h *OrganizationHandler) Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	switch evt.EventType {
	case events.TypeOrganizationCreated:
		return h.applyCreated(ctx, tx, evt)
	case events.TypeOrganizationUpdated:
		return h.applyUpdated(ctx, tx, evt)
	case events.TypeOrganizationActivated:
		return h.applyStatus(ctx, tx, evt, "active")
	case events.TypeOrganizationDeactivated:
		return h.applyStatus(ctx, tx, evt, "inactive")
	case events.TypeOrganizationDeleted:
		return h.applyDeleted(ctx, tx, evt)
	default:
		return fmt.Errorf("organization handler: unknown event type %q", evt.EventType)
	}
}

func (h *OrganizationHandler) applyCreated(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	var payload events.OrganizationCreated
	if err := evt.Unmarshal(&payload); err != nil {
		return fmt.Errorf("organization.created: decode: %w", err)
	}

	// Hierarchy invariant: a non-root path must hang off an existing parent
	// exactly one level shallower.
	if parent := payload.Path.Parent(); parent != "" {
		var parentDepth int
		err := tx.QueryRow(ctx, `
SELECT count(*) FROM organizations WHERE tenant_id = $1 AND path = $2 AND deleted_at IS NULL`,
			evt.TenantID, parent.String()).Scan(&parentDepth)
		if err != nil {
			return err
		}
		if parentDepth == 0 {
			return fmt.Errorf("organization.created: parent path %q does not exist", parent)
		}
	}

	_, err := tx.Exec(ctx, `
INSERT INTO organizations (id, tenant_id, parent_id, path, name, slug, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 'active', $7, $7)
ON CONFLICT (id) DO NOTHING`,
		payload.ID, evt.TenantID, payload.ParentID, payload.Path.String(), payload.Name, payload.Slug, evt.CreatedAt)
	return err
}

func (h *OrganizationHandler) applyUpdated(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	var payload events.OrganizationUpdated
	if err := evt.Unmarshal(&payload); err != nil {
		return fmt.Errorf("organization.updated: decode: %w", err)
	}
	_, err := tx.Exec(ctx, `
UPDATE organizations
   SET name = COALESCE($2, name),
       updated_at = $3
 WHERE id = $1 AND deleted_at IS NULL`,
		evt.StreamID, payload.Name, evt.CreatedAt)
	return err
}

func (h *OrganizationHandler) applyStatus(ctx context.Context, tx repo.Tx, evt *eventstore.Event, status string) error {
	_, err := tx.Exec(ctx, `
UPDATE organizations SET status = $2, updated_at = $3
 WHERE id = $1 AND deleted_at IS NULL`,
		evt.StreamID, status, evt.CreatedAt)
	return err
}

func (h *OrganizationHandler) applyDeleted(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	// Keep the first deletion timestamp on replay.
	_, err := tx.Exec(ctx, `
UPDATE organizations SET deleted_at = COALESCE(deleted_at, $2), updated_at = $2
 WHERE id = $1`,
		evt.StreamID, evt.CreatedAt)
	return err
}
