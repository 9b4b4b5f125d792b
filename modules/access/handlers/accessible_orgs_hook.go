package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solumhq/casedesk/modules/access/domain/events"
	coreevents "github.com/solumhq/casedesk/modules/core/domain/events"
	orgevents "github.com/solumhq/casedesk/modules/org/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

// AccessibleOrgsHook recomputes users.accessible_org_ids whenever anything
// the list is derived from changes: a role assignment, an access grant, or
// the organization tree itself. It runs in the projection transaction, so
// the denormalized list is never observably stale relative to the tables it
// is derived from.
type AccessibleOrgsHook struct{}

func NewAccessibleOrgsHook() *AccessibleOrgsHook {
	return &AccessibleOrgsHook{}
}

func (h *AccessibleOrgsHook) Sync(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	// Organization events cannot be pinned to one user: deleting an org
	// removes it from every holder's list, and creating a descendant adds
	// it to everyone whose scope already covers the parent.
	if evt.StreamType == orgevents.StreamTypeOrganization {
		return RecomputeTenant(ctx, tx, evt.TenantID)
	}

	userID, err := h.affectedUser(ctx, tx, evt)
	if err != nil {
		return err
	}
	if userID == uuid.Nil {
		return nil
	}
	return Recompute(ctx, tx, userID)
}

func (h *AccessibleOrgsHook) affectedUser(ctx context.Context, tx repo.Tx, evt *eventstore.Event) (uuid.UUID, error) {
	var table string
	switch evt.StreamType {
	case coreevents.StreamTypeAssignment:
		table = "user_role_assignments"
	case events.StreamTypeAccessGrant:
		table = "access_grants"
	default:
		return uuid.Nil, fmt.Errorf("accessible orgs hook: unexpected stream type %q", evt.StreamType)
	}

	var userID uuid.UUID
	err := tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT user_id FROM %s WHERE id = $1`, table), evt.StreamID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		// The primary handler may have skipped the row (e.g. a replayed
		// create against a conflicting id); nothing to recompute.
		return uuid.Nil, nil
	}
	return userID, err
}

// Recompute rebuilds one user's flattened accessible organization list from
// their live role assignments and access grants. The global marker maps to
// every organization in the tenant.
func Recompute(ctx context.Context, tx repo.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, recomputeSQL+` WHERE u.id = $1`, userID)
	return err
}

// RecomputeTenant rebuilds the list for every user of a tenant, used when
// the organization tree changes under existing scopes.
func RecomputeTenant(ctx context.Context, tx repo.Tx, tenantID uuid.UUID) error {
	_, err := tx.Exec(ctx, recomputeSQL+` WHERE u.tenant_id = $1`, tenantID)
	return err
}

const recomputeSQL = `
UPDATE users u
   SET accessible_org_ids = COALESCE((
       SELECT array_agg(DISTINCT o.id)
         FROM organizations o
        WHERE o.tenant_id = u.tenant_id
          AND o.deleted_at IS NULL
          AND EXISTS (
              SELECT 1 FROM (
                  SELECT a.scope_path
                    FROM user_role_assignments a
                   WHERE a.user_id = u.id
                     AND a.revoked_at IS NULL
                     AND a.valid_from <= now()
                     AND (a.valid_until IS NULL OR a.valid_until > now())
                  UNION ALL
                  SELECT g.scope_path
                    FROM access_grants g
                   WHERE g.user_id = u.id
                     AND g.revoked_at IS NULL
                     AND g.valid_from <= now()
                     AND (g.valid_until IS NULL OR g.valid_until > now())
              ) s
              WHERE s.scope_path = '*'
                 OR s.scope_path = o.path
                 OR o.path LIKE s.scope_path || '.%'
          )
   ), '{}')`
