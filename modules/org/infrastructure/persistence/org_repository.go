package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/scope"
	"github.com/solumhq/casedesk/pkg/serrors"
)

var ErrOrganizationNotFound = serrors.NewError("ORG_NOT_FOUND", "organization not found", "")

type Organization struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	ParentID  *uuid.UUID
	Path      scope.Path
	Name      string
	Slug      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (o *Organization) Active() bool {
	return o.Status == "active" && o.DeletedAt == nil
}

type OrgRepository struct{}

func NewOrgRepository() *OrgRepository {
	return &OrgRepository{}
}

const orgColumns = `id, tenant_id, parent_id, path, name, slug, status, created_at, updated_at, deleted_at`

func (r *OrgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id)
	return scanOrg(row)
}

func (r *OrgRepository) GetByPath(ctx context.Context, tenantID uuid.UUID, path scope.Path) (*Organization, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE tenant_id = $1 AND path = $2`,
		tenantID, path.String())
	return scanOrg(row)
}

// Subtree returns the organization at path plus all descendants, shallowest
// first. Materialized paths make this a prefix match, no recursion needed.
func (r *OrgRepository) Subtree(ctx context.Context, tenantID uuid.UUID, path scope.Path) ([]*Organization, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+orgColumns+` FROM organizations
WHERE tenant_id = $1 AND (path = $2 OR path LIKE $2 || '.%') AND deleted_at IS NULL
ORDER BY path`, tenantID, path.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*Organization, 0, 16)
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

// ScopeActive reports whether the organization at the given path exists, is
// active, and sits under no deactivated or deleted ancestor. This is the
// write-time guard against delegating into a dead subtree.
func (r *OrgRepository) ScopeActive(ctx context.Context, tenantID uuid.UUID, path scope.Path) (bool, error) {
	if path.IsGlobal() {
		return true, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}

	// Every ancestor path is a prefix of the target; all of them must be
	// active for the target to be delegable.
	var total, active int
	err = tx.QueryRow(ctx, `
SELECT count(*),
       count(*) FILTER (WHERE status = 'active' AND deleted_at IS NULL)
FROM organizations
WHERE tenant_id = $1 AND ($2 = path OR $2 LIKE path || '.%')`,
		tenantID, path.String()).Scan(&total, &active)
	if err != nil {
		return false, err
	}

	return total == path.Depth() && active == total, nil
}

func scanOrg(row pgx.Row) (*Organization, error) {
	var o Organization
	var path string
	err := row.Scan(&o.ID, &o.TenantID, &o.ParentID, &path, &o.Name, &o.Slug, &o.Status,
		&o.CreatedAt, &o.UpdatedAt, &o.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Path = scope.Path(path)
	return &o, nil
}
