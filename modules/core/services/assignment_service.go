package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/modules/core/domain/events"
	"github.com/solumhq/casedesk/modules/core/infrastructure/persistence"
	"github.com/solumhq/casedesk/pkg/authz"
	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/scope"
	"github.com/solumhq/casedesk/pkg/serrors"
)

var ErrScopeNotActive = serrors.NewError(
	"AUTHZ_SCOPE_NOT_ACTIVE",
	"target scope does not resolve to a fully active organization chain",
	"Authorization.ScopeNotActive",
)

// ScopeChecker verifies a scope path resolves to a live organization chain.
// The org module's repository satisfies it.
type ScopeChecker interface {
	ScopeActive(ctx context.Context, tenantID uuid.UUID, path scope.Path) (bool, error)
}

type AssignParams struct {
	UserID     uuid.UUID
	RoleID     uuid.UUID
	Scope      scope.Path
	ValidFrom  time.Time
	ValidUntil *time.Time
}

// AssignmentService is the write side of role assignments. Assigning is a
// delegation of the role's whole permission set into a scope, so both
// delegation invariants and scope liveness are checked before the append.
type AssignmentService struct {
	store  *eventstore.Store
	users  *persistence.UserRepository
	roles  *persistence.RoleRepository
	authz  *AuthzQueryService
	scopes ScopeChecker
	log    *logrus.Logger
}

func NewAssignmentService(
	store *eventstore.Store,
	users *persistence.UserRepository,
	roles *persistence.RoleRepository,
	authzQuery *AuthzQueryService,
	scopes ScopeChecker,
	log *logrus.Logger,
) *AssignmentService {
	return &AssignmentService{store: store, users: users, roles: roles, authz: authzQuery, scopes: scopes, log: log}
}

func (s *AssignmentService) Assign(ctx context.Context, params AssignParams) (uuid.UUID, *eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if _, err := s.users.GetByID(ctx, params.UserID); err != nil {
		return uuid.Nil, nil, err
	}
	if _, err := s.roles.GetByID(ctx, params.RoleID); err != nil {
		return uuid.Nil, nil, err
	}

	permissionIDs, err := s.roles.PermissionIDs(ctx, params.RoleID)
	if err != nil {
		return uuid.Nil, nil, err
	}

	actor, err := composables.UseActor(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	authority, err := s.authz.AggregatedPermissions(ctx, actor.ID, time.Now())
	if err != nil {
		return uuid.Nil, nil, err
	}
	if err := authz.CheckDelegation(authz.Grant{PermissionIDs: permissionIDs, Scope: params.Scope}, authority); err != nil {
		return uuid.Nil, nil, err
	}

	// A scope pointing into a deactivated or deleted subtree is rejected
	// even when containment passes.
	active, err := s.scopes.ScopeActive(ctx, tenant.ID, params.Scope)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if !active {
		return uuid.Nil, nil, ErrScopeNotActive.WithTemplateData(map[string]string{"scope": params.Scope.String()})
	}

	validFrom := params.ValidFrom
	if validFrom.IsZero() {
		validFrom = time.Now()
	}

	id := uuid.New()
	res, err := appendEvent(ctx, s.store, s.log, tenant.ID, id, events.StreamTypeAssignment, events.TypeAssignmentCreated, events.AssignmentCreated{
		ID:         id,
		UserID:     params.UserID,
		RoleID:     params.RoleID,
		Scope:      params.Scope,
		ValidFrom:  validFrom,
		ValidUntil: params.ValidUntil,
	}, "")
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, res, nil
}

// Revoke ends an assignment. The actor's scopes must contain the
// assignment's scope: you cannot revoke authority granted above you.
func (s *AssignmentService) Revoke(ctx context.Context, assignmentID uuid.UUID, reason string) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var scopePath string
	err = tx.QueryRow(ctx,
		`SELECT scope_path FROM user_role_assignments WHERE id = $1 AND revoked_at IS NULL`,
		assignmentID).Scan(&scopePath)
	if err != nil {
		return nil, err
	}

	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, err
	}
	authority, err := s.authz.AggregatedPermissions(ctx, actor.ID, time.Now())
	if err != nil {
		return nil, err
	}
	target := scope.Path(scopePath)
	if !scope.Contains(target, authority.Scopes) {
		return nil, authz.ErrScopeViolation.WithTemplateData(map[string]string{
			"scope":    scopePath,
			"actor_id": actor.ID.String(),
		})
	}

	return appendEvent(ctx, s.store, s.log, tenant.ID, assignmentID, events.StreamTypeAssignment, events.TypeAssignmentRevoked, events.AssignmentRevoked{
		Reason: reason,
	}, reason)
}
