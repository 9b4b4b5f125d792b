package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solumhq/casedesk/pkg/authz"
	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/serrors"
)

var (
	ErrRoleNotFound = serrors.NewError(
		"CORE_ROLE_NOT_FOUND",
		"role not found",
		"Roles.Errors.NotFound",
	)
	ErrPermissionNotFound = serrors.NewError(
		"CORE_PERMISSION_NOT_FOUND",
		"permission not found",
		"Permissions.Errors.NotFound",
	)
)

type Role struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

type RoleRepository struct{}

func NewRoleRepository() *RoleRepository {
	return &RoleRepository{}
}

func (r *RoleRepository) GetByID(ctx context.Context, id uuid.UUID) (*Role, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var role Role
	err = tx.QueryRow(ctx, `
SELECT id, tenant_id, name, description, created_at, updated_at, deleted_at
  FROM roles WHERE id = $1 AND deleted_at IS NULL`, id).
		Scan(&role.ID, &role.TenantID, &role.Name, &role.Description,
			&role.CreatedAt, &role.UpdatedAt, &role.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// PermissionIDs returns the permission ids currently attached to a role.
func (r *RoleRepository) PermissionIDs(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx,
		`SELECT permission_id FROM role_permissions WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetPermission resolves one catalog entry.
func (r *RoleRepository) GetPermission(ctx context.Context, id uuid.UUID) (*authz.Permission, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var p authz.Permission
	err = tx.QueryRow(ctx, `
SELECT id, resource, action, scope_level, requires_mfa FROM permissions WHERE id = $1`, id).
		Scan(&p.ID, &p.Resource, &p.Action, &p.ScopeLevel, &p.RequiresMFA)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPermissionNotFound.WithTemplateData(map[string]string{"permission_id": id.String()})
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
