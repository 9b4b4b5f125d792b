package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/modules/workflow/domain/events"
	"github.com/solumhq/casedesk/modules/workflow/infrastructure/persistence"
	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/eventbus"
	"github.com/solumhq/casedesk/pkg/eventstore"
)

type BootstrapParams struct {
	Kind        string
	SubjectType string
	SubjectID   uuid.UUID
	Topic       string
	Parameters  json.RawMessage
}

// BootstrapInitiatedMessage is published on the in-process bus after the
// bootstrap transaction commits, for listeners that want to react without
// polling. It carries the full event envelope; consumers must still treat
// it as at-most-once and recover pending work from the queue table.
type BootstrapInitiatedMessage struct {
	EventID    uuid.UUID
	EventType  string
	StreamID   uuid.UUID
	StreamType string
	Data       events.BootstrapInitiated
	Metadata   eventstore.Metadata
	CreatedAt  time.Time

	EntryID uuid.UUID
	Topic   string
}

// WorkflowService starts workflows and records their terminal outcomes.
// Starting one appends the bootstrap event and its dispatch queue entry in
// a single transaction, so a workflow can never exist without its pending
// dispatch nor the other way around.
type WorkflowService struct {
	store *eventstore.Store
	queue *persistence.QueueRepository
	bus   eventbus.EventBus
	log   *logrus.Logger
}

func NewWorkflowService(store *eventstore.Store, queue *persistence.QueueRepository, bus eventbus.EventBus, log *logrus.Logger) *WorkflowService {
	return &WorkflowService{store: store, queue: queue, bus: bus, log: log}
}

func (s *WorkflowService) InitiateBootstrap(ctx context.Context, params BootstrapParams) (workflowID, entryID uuid.UUID, err error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	meta := eventstore.Metadata{}
	if actor, actorErr := composables.UseActor(ctx); actorErr == nil {
		meta.ActorID = actor.ID
	}

	workflowID = uuid.New()
	entryID = uuid.New()

	data := events.BootstrapInitiated{
		ID:          workflowID,
		Kind:        params.Kind,
		SubjectType: params.SubjectType,
		SubjectID:   params.SubjectID,
		Parameters:  params.Parameters,
	}

	var initiated *eventstore.AppendResult
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		res, err := s.store.Append(txCtx, eventstore.AppendParams{
			TenantID:   tenant.ID,
			StreamID:   workflowID,
			StreamType: events.StreamTypeWorkflow,
			EventType:  events.TypeBootstrapInitiated,
			Data:       data,
			Metadata:   meta,
		})
		if err != nil {
			return err
		}
		initiated = res

		_, err = s.store.Append(txCtx, eventstore.AppendParams{
			TenantID:   tenant.ID,
			StreamID:   entryID,
			StreamType: events.StreamTypeQueueEntry,
			EventType:  events.TypeQueuePending,
			Data: events.QueuePending{
				ID:         entryID,
				WorkflowID: workflowID,
				Topic:      params.Topic,
				Payload:    params.Parameters,
			},
			Metadata: meta,
		})
		return err
	})
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	// Fire-and-forget: delivery guarantees belong to the relay, the bus is
	// a latency optimization for in-process listeners.
	s.bus.Publish(BootstrapInitiatedMessage{
		EventID:    initiated.EventID,
		EventType:  events.TypeBootstrapInitiated,
		StreamID:   workflowID,
		StreamType: events.StreamTypeWorkflow,
		Data:       data,
		Metadata:   meta,
		CreatedAt:  initiated.CreatedAt,
		EntryID:    entryID,
		Topic:      params.Topic,
	})

	return workflowID, entryID, nil
}

// MarkCompleted records the engine's terminal success callback.
func (s *WorkflowService) MarkCompleted(ctx context.Context, workflowID uuid.UUID) error {
	w, err := s.queue.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	_, err = s.store.Append(ctx, eventstore.AppendParams{
		TenantID:   w.TenantID,
		StreamID:   workflowID,
		StreamType: events.StreamTypeWorkflow,
		EventType:  events.TypeWorkflowCompleted,
	})
	return err
}

// MarkFailed records the engine's terminal failure callback.
func (s *WorkflowService) MarkFailed(ctx context.Context, workflowID uuid.UUID, cause string) error {
	w, err := s.queue.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	_, err = s.store.Append(ctx, eventstore.AppendParams{
		TenantID:   w.TenantID,
		StreamID:   workflowID,
		StreamType: events.StreamTypeWorkflow,
		EventType:  events.TypeWorkflowFailed,
		Data:       events.WorkflowFailed{Error: cause},
	})
	return err
}
