package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	coreevents "github.com/solumhq/casedesk/modules/core/domain/events"
	corepersistence "github.com/solumhq/casedesk/modules/core/infrastructure/persistence"
	coreservices "github.com/solumhq/casedesk/modules/core/services"
	"github.com/solumhq/casedesk/modules/onboarding/domain/events"
	"github.com/solumhq/casedesk/modules/onboarding/infrastructure/persistence"
	"github.com/solumhq/casedesk/pkg/authz"
	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/scope"
	"github.com/solumhq/casedesk/pkg/serrors"
)

var ErrInvitationClosed = serrors.NewError(
	"ONBOARDING_INVITATION_CLOSED",
	"invitation is no longer open",
	"Invitations.Errors.Closed",
)

type InviteParams struct {
	Email     string
	RoleID    uuid.UUID
	Scope     scope.Path
	ExpiresIn time.Duration
}

// InvitationService runs the onboarding flow. Creating an invitation is a
// deferred delegation: the invitee will receive the role within the scope,
// so the delegation invariants are enforced at invite time, against the
// inviter's authority.
type InvitationService struct {
	store       *eventstore.Store
	invitations *persistence.InvitationRepository
	roles       *corepersistence.RoleRepository
	authz       *coreservices.AuthzQueryService
	scopes      coreservices.ScopeChecker
	log         *logrus.Logger
}

func NewInvitationService(
	store *eventstore.Store,
	invitations *persistence.InvitationRepository,
	roles *corepersistence.RoleRepository,
	authzQuery *coreservices.AuthzQueryService,
	scopes coreservices.ScopeChecker,
	log *logrus.Logger,
) *InvitationService {
	return &InvitationService{
		store:       store,
		invitations: invitations,
		roles:       roles,
		authz:       authzQuery,
		scopes:      scopes,
		log:         log,
	}
}

func (s *InvitationService) Invite(ctx context.Context, params InviteParams) (uuid.UUID, *eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
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
	active, err := s.scopes.ScopeActive(ctx, tenant.ID, params.Scope)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if !active {
		return uuid.Nil, nil, coreservices.ErrScopeNotActive.WithTemplateData(map[string]string{"scope": params.Scope.String()})
	}

	expiresIn := params.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 7 * 24 * time.Hour
	}

	id := uuid.New()
	res, err := s.append(ctx, tenant.ID, id, events.TypeInvitationCreated, events.InvitationCreated{
		ID:        id,
		Email:     params.Email,
		RoleID:    params.RoleID,
		Scope:     params.Scope,
		ExpiresAt: time.Now().Add(expiresIn),
	}, "")
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, res, nil
}

func (s *InvitationService) MarkSent(ctx context.Context, id uuid.UUID) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := s.invitations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.Open() {
		return nil, ErrInvitationClosed.WithTemplateData(map[string]string{"status": inv.Status})
	}
	return s.append(ctx, tenant.ID, id, events.TypeInvitationSent, nil, "")
}

// Accept closes the invitation and grants the promised role assignment in
// one transaction. The delegation was authorized at invite time, so the
// assignment event is appended directly rather than re-checked against the
// accepting user.
func (s *InvitationService) Accept(ctx context.Context, id, userID uuid.UUID) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}

	var res *eventstore.AppendResult
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invitations.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if !inv.Open() {
			return ErrInvitationClosed.WithTemplateData(map[string]string{"status": inv.Status})
		}
		if time.Now().After(inv.ExpiresAt) {
			return ErrInvitationClosed.WithTemplateData(map[string]string{"status": "expired"})
		}

		res, err = s.append(txCtx, tenant.ID, id, events.TypeInvitationAccepted, events.InvitationAccepted{
			UserID: userID,
		}, "")
		if err != nil {
			return err
		}

		assignmentID := uuid.New()
		_, err = s.appendTo(txCtx, tenant.ID, assignmentID, coreevents.StreamTypeAssignment, coreevents.TypeAssignmentCreated, coreevents.AssignmentCreated{
			ID:        assignmentID,
			UserID:    userID,
			RoleID:    inv.RoleID,
			Scope:     inv.Scope,
			ValidFrom: time.Now(),
		}, "invitation accepted")
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *InvitationService) Revoke(ctx context.Context, id uuid.UUID, reason string) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := s.invitations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.Open() {
		return nil, ErrInvitationClosed.WithTemplateData(map[string]string{"status": inv.Status})
	}
	return s.append(ctx, tenant.ID, id, events.TypeInvitationRevoked, events.InvitationRevoked{Reason: reason}, reason)
}

// ExpireDue sweeps open invitations past their expiry and appends an expired
// event for each. Returns the number of invitations expired.
func (s *InvitationService) ExpireDue(ctx context.Context, limit int) (int, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return 0, err
	}
	due, err := s.invitations.FindDue(ctx, time.Now(), limit)
	if err != nil {
		return 0, err
	}
	var expired int
	for _, inv := range due {
		if _, err := s.append(ctx, tenant.ID, inv.ID, events.TypeInvitationExpired, nil, "expiry sweep"); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *InvitationService) append(ctx context.Context, tenantID, streamID uuid.UUID, eventType string, data any, reason string) (*eventstore.AppendResult, error) {
	return s.appendTo(ctx, tenantID, streamID, events.StreamTypeInvitation, eventType, data, reason)
}

func (s *InvitationService) appendTo(ctx context.Context, tenantID, streamID uuid.UUID, streamType, eventType string, data any, reason string) (*eventstore.AppendResult, error) {
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
