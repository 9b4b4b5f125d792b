package handlers

import (
	"context"
	"fmt"

	"github.com/solumhq/casedesk/modules/org/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

// UnitHandler maintains the organization_units projection.
type UnitHandler struct{}

func NewUnitHandler() *UnitHandler {
	return &UnitHandler{}
}

func (h *UnitHandler) StreamType() string {
	return events.StreamTypeUnit
}

func (h *UnitHandler) Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	switch evt.EventType {
	case events.TypeUnitCreated:
		return h.applyCreated(ctx, tx, evt)
	case events.TypeUnitUpdated:
		return h.applyUpdated(ctx, tx, evt)
	case events.TypeUnitDeleted:
		_, err := tx.Exec(ctx, `
UPDATE organization_units SET deleted_at = COALESCE(deleted_at, $2), updated_at = $2
 WHERE id = $1`,
			evt.StreamID, evt.CreatedAt)
		return err
	default:
		return fmt.Errorf("organization unit handler: unknown event type %q", evt.EventType)
	}
}

func (h *UnitHandler) applyCreated(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	var payload events.UnitCreated
	if err := evt.Unmarshal(&payload); err != nil {
		return fmt.Errorf("organization.unit.created: decode: %w", err)
	}

	var orgs int
	err := tx.QueryRow(ctx, `
SELECT count(*) FROM organizations WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`,
		evt.TenantID, payload.OrganizationID).Scan(&orgs)
	if err != nil {
		return err
	}
	if orgs == 0 {
		return fmt.Errorf("organization.unit.created: organization %s does not exist", payload.OrganizationID)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO organization_units (id, tenant_id, organization_id, name, kind, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (id) DO NOTHING`,
		payload.ID, evt.TenantID, payload.OrganizationID, payload.Name, payload.Kind, evt.CreatedAt)
	return err
}

func (h *UnitHandler) applyUpdated(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	var payload events.UnitUpdated
	if err := evt.Unmarshal(&payload); err != nil {
		return fmt.Errorf("organization.unit.updated: decode: %w", err)
	}
	_, err := tx.Exec(ctx, `
UPDATE organization_units
   SET name = COALESCE($2, name),
       kind = COALESCE($3, kind),
       updated_at = $4
 WHERE id = $1 AND deleted_at IS NULL`,
		evt.StreamID, payload.Name, payload.Kind, evt.CreatedAt)
	return err
}
