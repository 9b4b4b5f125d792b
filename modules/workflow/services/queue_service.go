package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/modules/workflow/domain/events"
	"github.com/solumhq/casedesk/modules/workflow/infrastructure/persistence"
	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/outbox"
)

// QueueService implements the relay's Queue over the event-sourced entry
// lifecycle: every transition the relay requests becomes a domain event,
// and the guarded projection updates make duplicates harmless.
type QueueService struct {
	store *eventstore.Store
	queue *persistence.QueueRepository
	log   *logrus.Logger
}

func NewQueueService(store *eventstore.Store, queue *persistence.QueueRepository, log *logrus.Logger) *QueueService {
	return &QueueService{store: store, queue: queue, log: log}
}

var _ outbox.Queue = (*QueueService)(nil)

// Claim locks a batch and appends a claimed event per entry in the same
// transaction, so either the lock and the transition both land or neither
// does.
func (s *QueueService) Claim(ctx context.Context, batch int, now, lockCutoff time.Time) ([]outbox.Entry, error) {
	var entries []outbox.Entry
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		locked, err := s.queue.LockBatch(txCtx, batch, now, lockCutoff)
		if err != nil {
			return err
		}
		for _, entry := range locked {
			if err := s.transition(txCtx, entry, events.TypeQueueClaimed, nil); err != nil {
				return err
			}
		}
		entries = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *QueueService) Complete(ctx context.Context, entry outbox.Entry, result json.RawMessage) error {
	return s.transition(ctx, entry, events.TypeQueueCompleted, events.QueueCompleted{Result: result})
}

func (s *QueueService) Requeue(ctx context.Context, entry outbox.Entry, lastError string, nextAvailable time.Time) error {
	return s.transition(ctx, entry, events.TypeQueueRequeued, events.QueueRequeued{
		Error:       lastError,
		AvailableAt: nextAvailable,
	})
}

func (s *QueueService) Fail(ctx context.Context, entry outbox.Entry, lastError string) error {
	s.log.WithFields(logrus.Fields{
		"entry_id":    entry.ID,
		"workflow_id": entry.WorkflowID,
		"topic":       entry.Topic,
		"attempts":    entry.Attempts,
	}).Error("workflow queue entry exhausted its attempts")
	return s.transition(ctx, entry, events.TypeQueueFailed, events.QueueFailed{Error: lastError})
}

func (s *QueueService) Depth(ctx context.Context) (pending, processing int64, err error) {
	return s.queue.Depth(ctx)
}

func (s *QueueService) transition(ctx context.Context, entry outbox.Entry, eventType string, data any) error {
	_, err := s.store.Append(ctx, eventstore.AppendParams{
		TenantID:   entry.TenantID,
		StreamID:   entry.ID,
		StreamType: events.StreamTypeQueueEntry,
		EventType:  eventType,
		Data:       data,
	})
	return err
}
