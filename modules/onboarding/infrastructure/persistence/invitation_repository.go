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

var ErrInvitationNotFound = serrors.NewError(
	"ONBOARDING_INVITATION_NOT_FOUND",
	"invitation not found",
	"Invitations.Errors.NotFound",
)

type Invitation struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Email          string
	RoleID         uuid.UUID
	Scope          scope.Path
	Status         string
	InvitedBy      *uuid.UUID
	AcceptedUserID *uuid.UUID
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (i *Invitation) Open() bool {
	return i.Status == "pending" || i.Status == "sent"
}

type InvitationRepository struct{}

func NewInvitationRepository() *InvitationRepository {
	return &InvitationRepository{}
}

const invitationColumns = `id, tenant_id, email, role_id, scope_path, status, invited_by, accepted_user_id, expires_at, created_at, updated_at`

func (r *InvitationRepository) GetByID(ctx context.Context, id uuid.UUID) (*Invitation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id)
	return scanInvitation(row)
}

// FindDue returns open invitations whose expiry has passed, for the
// expiration sweep.
func (r *InvitationRepository) FindDue(ctx context.Context, asOf time.Time, limit int) ([]*Invitation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+invitationColumns+` FROM invitations
 WHERE status IN ('pending', 'sent') AND expires_at <= $1
 ORDER BY expires_at
 LIMIT $2`, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvitation(row pgx.Row) (*Invitation, error) {
	var inv Invitation
	var path string
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.Email, &inv.RoleID, &path, &inv.Status,
		&inv.InvitedBy, &inv.AcceptedUserID, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.Scope = scope.Path(path)
	return &inv, nil
}
