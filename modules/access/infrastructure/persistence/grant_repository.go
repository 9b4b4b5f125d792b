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

var (
	ErrGrantNotFound = serrors.NewError(
		"ACCESS_GRANT_NOT_FOUND",
		"access grant not found",
		"AccessGrants.Errors.NotFound",
	)
	ErrSessionNotFound = serrors.NewError(
		"ACCESS_SESSION_NOT_FOUND",
		"impersonation session not found",
		"Impersonation.Errors.NotFound",
	)
)

type Grant struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	UserID     uuid.UUID
	Scope      scope.Path
	GrantedBy  *uuid.UUID
	ValidFrom  time.Time
	ValidUntil *time.Time
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

type Session struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ImpersonatorID uuid.UUID
	SubjectUserID  uuid.UUID
	Reason         string
	ExpiresAt      time.Time
	StartedAt      time.Time
	EndedAt        *time.Time
}

func (s *Session) Open(asOf time.Time) bool {
	return s.EndedAt == nil && asOf.Before(s.ExpiresAt)
}

type GrantRepository struct{}

func NewGrantRepository() *GrantRepository {
	return &GrantRepository{}
}

func (r *GrantRepository) GetByID(ctx context.Context, id uuid.UUID) (*Grant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var g Grant
	var path string
	err = tx.QueryRow(ctx, `
SELECT id, tenant_id, user_id, scope_path, granted_by, valid_from, valid_until, revoked_at, created_at
  FROM access_grants WHERE id = $1`, id).
		Scan(&g.ID, &g.TenantID, &g.UserID, &path, &g.GrantedBy,
			&g.ValidFrom, &g.ValidUntil, &g.RevokedAt, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, err
	}
	g.Scope = scope.Path(path)
	return &g, nil
}

// ActiveScopes returns the scopes of a user's live grants. It satisfies the
// authorization query service's ScopeSource so grant scopes count toward
// aggregated authority.
func (r *GrantRepository) ActiveScopes(ctx context.Context, userID uuid.UUID, asOf time.Time) ([]scope.Path, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT DISTINCT scope_path FROM access_grants
 WHERE user_id = $1
   AND revoked_at IS NULL
   AND valid_from <= $2
   AND (valid_until IS NULL OR valid_until > $2)`, userID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []scope.Path
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		scopes = append(scopes, scope.Path(raw))
	}
	return scopes, rows.Err()
}

func (r *GrantRepository) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var s Session
	err = tx.QueryRow(ctx, `
SELECT id, tenant_id, impersonator_id, subject_user_id, reason, expires_at, started_at, ended_at
  FROM impersonation_sessions WHERE id = $1`, id).
		Scan(&s.ID, &s.TenantID, &s.ImpersonatorID, &s.SubjectUserID,
			&s.Reason, &s.ExpiresAt, &s.StartedAt, &s.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
