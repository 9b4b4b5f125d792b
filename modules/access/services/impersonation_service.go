package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/modules/access/domain/events"
	"github.com/solumhq/casedesk/modules/access/infrastructure/persistence"
	corepersistence "github.com/solumhq/casedesk/modules/core/infrastructure/persistence"
	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/serrors"
)

var (
	ErrSelfImpersonation = serrors.NewError(
		"ACCESS_SELF_IMPERSONATION",
		"a user cannot impersonate themselves",
		"Impersonation.Errors.Self",
	)
	ErrReasonRequired = serrors.NewError(
		"ACCESS_REASON_REQUIRED",
		"impersonation requires a reason",
		"Impersonation.Errors.ReasonRequired",
	)
	ErrSessionClosed = serrors.NewError(
		"ACCESS_SESSION_CLOSED",
		"impersonation session is already ended",
		"Impersonation.Errors.Closed",
	)
)

const defaultSessionTTL = time.Hour

// ImpersonationService records support-driven impersonation sessions. Every
// session is an audited event pair with a mandatory reason and a hard
// expiry.
type ImpersonationService struct {
	store  *eventstore.Store
	grants *persistence.GrantRepository
	users  *corepersistence.UserRepository
	log    *logrus.Logger
}

func NewImpersonationService(store *eventstore.Store, grants *persistence.GrantRepository, users *corepersistence.UserRepository, log *logrus.Logger) *ImpersonationService {
	return &ImpersonationService{store: store, grants: grants, users: users, log: log}
}

func (s *ImpersonationService) Start(ctx context.Context, subjectUserID uuid.UUID, reason string, ttl time.Duration) (uuid.UUID, *eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if actor.ID == subjectUserID {
		return uuid.Nil, nil, ErrSelfImpersonation
	}
	if reason == "" {
		return uuid.Nil, nil, ErrReasonRequired
	}
	if _, err := s.users.GetByID(ctx, subjectUserID); err != nil {
		return uuid.Nil, nil, err
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	id := uuid.New()
	res, err := s.store.Append(ctx, eventstore.AppendParams{
		TenantID:   tenant.ID,
		StreamID:   id,
		StreamType: events.StreamTypeImpersonation,
		EventType:  events.TypeImpersonationStarted,
		Data: events.ImpersonationStarted{
			ID:             id,
			ImpersonatorID: actor.ID,
			SubjectUserID:  subjectUserID,
			Reason:         reason,
			ExpiresAt:      time.Now().Add(ttl),
		},
		Metadata: eventstore.Metadata{ActorID: actor.ID, Reason: reason},
	})
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, res, nil
}

func (s *ImpersonationService) End(ctx context.Context, sessionID uuid.UUID, reason string) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	session, err := s.grants.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.EndedAt != nil {
		return nil, ErrSessionClosed
	}

	meta := eventstore.Metadata{Reason: reason}
	if actor, err := composables.UseActor(ctx); err == nil {
		meta.ActorID = actor.ID
	}
	return s.store.Append(ctx, eventstore.AppendParams{
		TenantID:   tenant.ID,
		StreamID:   sessionID,
		StreamType: events.StreamTypeImpersonation,
		EventType:  events.TypeImpersonationEnded,
		Data:       events.ImpersonationEnded{Reason: reason},
		Metadata:   meta,
	})
}
