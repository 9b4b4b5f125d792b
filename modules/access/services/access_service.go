package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/modules/access/domain/events"
	"github.com/solumhq/casedesk/modules/access/infrastructure/persistence"
	corepersistence "github.com/solumhq/casedesk/modules/core/infrastructure/persistence"
	coreservices "github.com/solumhq/casedesk/modules/core/services"
	"github.com/solumhq/casedesk/pkg/authz"
	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/scope"
	"github.com/solumhq/casedesk/pkg/serrors"
)

var ErrGrantNotOpen = serrors.NewError(
	"ACCESS_GRANT_NOT_OPEN",
	"access grant is already revoked",
	"AccessGrants.Errors.NotOpen",
)

type GrantParams struct {
	UserID     uuid.UUID
	Scope      scope.Path
	ValidFrom  time.Time
	ValidUntil *time.Time
}

// AccessService is the write side of direct access grants. A grant confers
// visibility only, so delegation checks containment but not permission
// subset: the actor's scopes must cover the granted scope.
type AccessService struct {
	store  *eventstore.Store
	grants *persistence.GrantRepository
	users  *corepersistence.UserRepository
	authz  *coreservices.AuthzQueryService
	scopes coreservices.ScopeChecker
	log    *logrus.Logger
}

func NewAccessService(
	store *eventstore.Store,
	grants *persistence.GrantRepository,
	users *corepersistence.UserRepository,
	authzQuery *coreservices.AuthzQueryService,
	scopes coreservices.ScopeChecker,
	log *logrus.Logger,
) *AccessService {
	return &AccessService{store: store, grants: grants, users: users, authz: authzQuery, scopes: scopes, log: log}
}

func (s *AccessService) Grant(ctx context.Context, params GrantParams) (uuid.UUID, *eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if _, err := s.users.GetByID(ctx, params.UserID); err != nil {
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
	if !scope.Contains(params.Scope, authority.Scopes) {
		return uuid.Nil, nil, authz.ErrScopeViolation.WithTemplateData(map[string]string{
			"scope":    params.Scope.String(),
			"actor_id": actor.ID.String(),
		})
	}

	active, err := s.scopes.ScopeActive(ctx, tenant.ID, params.Scope)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if !active {
		return uuid.Nil, nil, coreservices.ErrScopeNotActive.WithTemplateData(map[string]string{"scope": params.Scope.String()})
	}

	validFrom := params.ValidFrom
	if validFrom.IsZero() {
		validFrom = time.Now()
	}

	id := uuid.New()
	res, err := s.append(ctx, tenant.ID, id, events.StreamTypeAccessGrant, events.TypeGrantCreated, events.GrantCreated{
		ID:         id,
		UserID:     params.UserID,
		Scope:      params.Scope,
		ValidFrom:  validFrom,
		ValidUntil: params.ValidUntil,
	}, "")
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, res, nil
}

func (s *AccessService) Revoke(ctx context.Context, grantID uuid.UUID, reason string) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	grant, err := s.grants.GetByID(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if grant.RevokedAt != nil {
		return nil, ErrGrantNotOpen
	}

	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, err
	}
	authority, err := s.authz.AggregatedPermissions(ctx, actor.ID, time.Now())
	if err != nil {
		return nil, err
	}
	if !scope.Contains(grant.Scope, authority.Scopes) {
		return nil, authz.ErrScopeViolation.WithTemplateData(map[string]string{
			"scope":    grant.Scope.String(),
			"actor_id": actor.ID.String(),
		})
	}

	return s.append(ctx, tenant.ID, grantID, events.StreamTypeAccessGrant, events.TypeGrantRevoked, events.GrantRevoked{
		Reason: reason,
	}, reason)
}

func (s *AccessService) append(ctx context.Context, tenantID, streamID uuid.UUID, streamType, eventType string, data any, reason string) (*eventstore.AppendResult, error) {
	meta := eventstore.Metadata{Reason: reason}
	if actor, err := composables.UseActor(ctx); err == nil {
		meta.ActorID = actor.ID
	}
	res, err := s.store.Append(ctx, eventstore.AppendParams{
		TenantID:   tenantID,
		StreamID:   streamID,
		StreamType: streamType,
		EventType:  eventType,
		Data:       data,
		Metadata:   meta,
	})
	if err != nil {
		return nil, err
	}
	if res.ProjectionPending {
		s.log.WithFields(logrus.Fields{
			"event_id":   res.EventID,
			"event_type": eventType,
			"stream_id":  streamID,
		}).Warn("event stored but projection failed")
	}
	return res, nil
}
