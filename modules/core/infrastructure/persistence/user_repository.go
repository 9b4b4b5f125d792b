package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/serrors"
)

var ErrUserNotFound = serrors.NewError(
	"CORE_USER_NOT_FOUND",
	"user not found",
	"Users.Errors.NotFound",
)

type User struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	Email            string
	DisplayName      string
	Status           string
	AccessibleOrgIDs []uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

func (u *User) Active() bool {
	return u.Status == "active" && u.DeletedAt == nil
}

type UserRepository struct{}

func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

const userColumns = `id, tenant_id, email, display_name, status, accessible_org_ids, created_at, updated_at, deleted_at`

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND email = $2 AND deleted_at IS NULL`,
		tenantID, email)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.DisplayName, &u.Status,
		&u.AccessibleOrgIDs, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
