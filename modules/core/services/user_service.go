package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/modules/core/domain/events"
	"github.com/solumhq/casedesk/modules/core/infrastructure/persistence"
	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/eventstore"
)

type CreateUserParams struct {
	Email       string
	DisplayName string
}

type UpdateUserParams struct {
	Email       *string
	DisplayName *string
}

type UserService struct {
	store *eventstore.Store
	users *persistence.UserRepository
	log   *logrus.Logger
}

func NewUserService(store *eventstore.Store, users *persistence.UserRepository, log *logrus.Logger) *UserService {
	return &UserService{store: store, users: users, log: log}
}

func (s *UserService) Create(ctx context.Context, params CreateUserParams) (uuid.UUID, *eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	id := uuid.New()
	res, err := appendEvent(ctx, s.store, s.log, tenant.ID, id, events.StreamTypeUser, events.TypeUserCreated, events.UserCreated{
		ID:          id,
		Email:       params.Email,
		DisplayName: params.DisplayName,
	}, "")
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, res, nil
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, params UpdateUserParams) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return appendEvent(ctx, s.store, s.log, tenant.ID, id, events.StreamTypeUser, events.TypeUserUpdated, events.UserUpdated{
		Email:       params.Email,
		DisplayName: params.DisplayName,
	}, "")
}

func (s *UserService) Activate(ctx context.Context, id uuid.UUID, reason string) (*eventstore.AppendResult, error) {
	return s.statusEvent(ctx, id, events.TypeUserActivated, nil, reason)
}

func (s *UserService) Deactivate(ctx context.Context, id uuid.UUID, reason string) (*eventstore.AppendResult, error) {
	return s.statusEvent(ctx, id, events.TypeUserDeactivated, events.UserDeactivated{Reason: reason}, reason)
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID, reason string) (*eventstore.AppendResult, error) {
	return s.statusEvent(ctx, id, events.TypeUserDeleted, nil, reason)
}

func (s *UserService) statusEvent(ctx context.Context, id uuid.UUID, eventType string, data any, reason string) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return appendEvent(ctx, s.store, s.log, tenant.ID, id, events.StreamTypeUser, eventType, data, reason)
}

// appendEvent is the shared append path for this module's services: it fills
// actor metadata from the context and logs when the projection lagged.
func appendEvent(ctx context.Context, store *eventstore.Store, log *logrus.Logger, tenantID, streamID uuid.UUID, streamType, eventType string, data any, reason string) (*eventstore.AppendResult, error) {
	meta := eventstore.Metadata{Reason: reason}
	if actor, err := composables.UseActor(ctx); err == nil {
		meta.ActorID = actor.ID
	}

	res, err := store.Append(ctx, eventstore.AppendParams{
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
		log.WithFields(logrus.Fields{
			"event_id":   res.EventID,
			"event_type": eventType,
			"stream_id":  streamID,
		}).Warn("event stored but projection failed")
	}
	return res, nil
}
