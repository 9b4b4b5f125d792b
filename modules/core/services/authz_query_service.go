package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/solumhq/casedesk/pkg/authz"
	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/scope"
)

// ScopeSource contributes additional scopes to a user's aggregated
// authority. Access grants and impersonation sessions register themselves
// here so role assignments stay decoupled from them.
type ScopeSource interface {
	ActiveScopes(ctx context.Context, userID uuid.UUID, asOf time.Time) ([]scope.Path, error)
}

// AuthzQueryService is the read side of authorization: it folds a user's
// live role assignments (and any registered scope sources) into an
// ActorAuthority snapshot as of a point in time.
type AuthzQueryService struct {
	sources []ScopeSource
}

func NewAuthzQueryService() *AuthzQueryService {
	return &AuthzQueryService{}
}

// AddScopeSource registers a contributor. Call during module registration,
// before the service handles requests; the slice is not guarded.
func (s *AuthzQueryService) AddScopeSource(src ScopeSource) {
	s.sources = append(s.sources, src)
}

// AggregatedPermissions resolves everything the user holds through live
// assignments: the union of their roles' permissions plus the scopes those
// assignments are bound to.
func (s *AuthzQueryService) AggregatedPermissions(ctx context.Context, userID uuid.UUID, asOf time.Time) (*authz.ActorAuthority, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	authority := &authz.ActorAuthority{
		UserID:      userID,
		Permissions: authz.NewPermissionSet(),
	}

	rows, err := tx.Query(ctx, `
SELECT DISTINCT p.id, p.resource, p.action, p.scope_level, p.requires_mfa
  FROM user_role_assignments a
  JOIN role_permissions rp ON rp.role_id = a.role_id
  JOIN permissions p ON p.id = rp.permission_id
 WHERE a.user_id = $1
   AND a.revoked_at IS NULL
   AND a.valid_from <= $2
   AND (a.valid_until IS NULL OR a.valid_until > $2)`, userID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p authz.Permission
		if err := rows.Scan(&p.ID, &p.Resource, &p.Action, &p.ScopeLevel, &p.RequiresMFA); err != nil {
			return nil, err
		}
		authority.Permissions.Add(p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	scopeRows, err := tx.Query(ctx, `
SELECT DISTINCT scope_path
  FROM user_role_assignments
 WHERE user_id = $1
   AND revoked_at IS NULL
   AND valid_from <= $2
   AND (valid_until IS NULL OR valid_until > $2)`, userID, asOf)
	if err != nil {
		return nil, err
	}
	defer scopeRows.Close()
	for scopeRows.Next() {
		var raw string
		if err := scopeRows.Scan(&raw); err != nil {
			return nil, err
		}
		authority.Scopes = append(authority.Scopes, scope.Path(raw))
	}
	if err := scopeRows.Err(); err != nil {
		return nil, err
	}

	for _, src := range s.sources {
		extra, err := src.ActiveScopes(ctx, userID, asOf)
		if err != nil {
			return nil, err
		}
		authority.Scopes = append(authority.Scopes, extra...)
	}

	return authority, nil
}
