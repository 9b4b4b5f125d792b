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
)

type CreateRoleParams struct {
	Name        string
	Description string
}

type UpdateRoleParams struct {
	Name        *string
	Description *string
}

// RoleService is the write side of the role catalog. Attaching a permission
// to a role is a delegation: the acting user must themselves hold the
// permission, checked before the event is appended.
type RoleService struct {
	store *eventstore.Store
	roles *persistence.RoleRepository
	authz *AuthzQueryService
	log   *logrus.Logger
}

func NewRoleService(store *eventstore.Store, roles *persistence.RoleRepository, authzQuery *AuthzQueryService, log *logrus.Logger) *RoleService {
	return &RoleService{store: store, roles: roles, authz: authzQuery, log: log}
}

func (s *RoleService) Create(ctx context.Context, params CreateRoleParams) (uuid.UUID, *eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	id := uuid.New()
	res, err := appendEvent(ctx, s.store, s.log, tenant.ID, id, events.StreamTypeRole, events.TypeRoleCreated, events.RoleCreated{
		ID:          id,
		Name:        params.Name,
		Description: params.Description,
	}, "")
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, res, nil
}

func (s *RoleService) Update(ctx context.Context, id uuid.UUID, params UpdateRoleParams) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.roles.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return appendEvent(ctx, s.store, s.log, tenant.ID, id, events.StreamTypeRole, events.TypeRoleUpdated, events.RoleUpdated{
		Name:        params.Name,
		Description: params.Description,
	}, "")
}

func (s *RoleService) Delete(ctx context.Context, id uuid.UUID, reason string) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.roles.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return appendEvent(ctx, s.store, s.log, tenant.ID, id, events.StreamTypeRole, events.TypeRoleDeleted, nil, reason)
}

// GrantPermission attaches a permission to a role. Subset-only: the actor
// must hold the permission they are conferring.
func (s *RoleService) GrantPermission(ctx context.Context, roleID, permissionID uuid.UUID) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.roles.GetByID(ctx, roleID); err != nil {
		return nil, err
	}
	if _, err := s.roles.GetPermission(ctx, permissionID); err != nil {
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
	if err := authz.CheckDelegation(authz.Grant{PermissionIDs: []uuid.UUID{permissionID}}, authority); err != nil {
		return nil, err
	}

	return appendEvent(ctx, s.store, s.log, tenant.ID, roleID, events.StreamTypeRole, events.TypeRolePermissionGranted, events.RolePermissionGranted{
		PermissionID: permissionID,
	}, "")
}

func (s *RoleService) RevokePermission(ctx context.Context, roleID, permissionID uuid.UUID, reason string) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.roles.GetByID(ctx, roleID); err != nil {
		return nil, err
	}
	return appendEvent(ctx, s.store, s.log, tenant.ID, roleID, events.StreamTypeRole, events.TypeRolePermissionRevoked, events.RolePermissionRevoked{
		PermissionID: permissionID,
	}, reason)
}
