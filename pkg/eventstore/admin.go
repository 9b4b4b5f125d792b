package eventstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/pkg/composables"
)

// StreamTypeAdmin is the administrative stream; triage operations on the log
// are themselves recorded as events there.
const StreamTypeAdmin = "admin"

const (
	EventTypeEventRetried     = "admin.event.retried"
	EventTypeEventDismissed   = "admin.event.dismissed"
	EventTypeEventUndismissed = "admin.event.undismissed"
)

// AdminService is the triage surface over failed/unprocessed events: retry
// forces a re-dispatch, dismiss acknowledges a failure without reprocessing.
type AdminService struct {
	store *Store
	log   *logrus.Logger
}

func NewAdminService(store *Store, log *logrus.Logger) *AdminService {
	return &AdminService{store: store, log: log}
}

type auditPayload struct {
	TargetEventID uuid.UUID `json:"target_event_id"`
	Reason        string    `json:"reason,omitempty"`
}

// Retry clears the processing status of the event and re-runs the router in
// one transaction. If the underlying condition is fixed the event comes out
// processed; otherwise the fresh failure is recorded in its place.
func (s *AdminService) Retry(ctx context.Context, eventID uuid.UUID, actor uuid.UUID) (*Event, error) {
	var out *Event
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}

		evt, err := s.store.GetByID(txCtx, eventID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(txCtx, `
UPDATE domain_events SET processed_at = NULL, processing_error = NULL
WHERE id = $1`, evt.ID); err != nil {
			return fmt.Errorf("eventstore retry: clear status: %w", err)
		}
		evt.ProcessedAt = nil
		evt.ProcessingError = nil

		if err := s.store.processor.Process(txCtx, tx, evt); err != nil {
			return err
		}

		if err := s.appendAudit(txCtx, evt, actor, EventTypeEventRetried, ""); err != nil {
			return err
		}

		out = evt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"event_id": eventID,
		"actor_id": actor,
		"resolved": out.Processed(),
	}).Info("eventstore: event retried")
	return out, nil
}

// Dismiss marks a failed event as acknowledged without reprocessing it.
func (s *AdminService) Dismiss(ctx context.Context, eventID uuid.UUID, actor uuid.UUID, reason string) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}

		evt, err := s.store.GetByID(txCtx, eventID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(txCtx, `
UPDATE domain_events SET dismissed_at = now(), dismissed_by = $2, dismiss_reason = $3
WHERE id = $1`, evt.ID, actor, reason); err != nil {
			return fmt.Errorf("eventstore dismiss: %w", err)
		}

		return s.appendAudit(txCtx, evt, actor, EventTypeEventDismissed, reason)
	})
}

// Undismiss puts a dismissed event back into the triage queue.
func (s *AdminService) Undismiss(ctx context.Context, eventID uuid.UUID, actor uuid.UUID) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}

		evt, err := s.store.GetByID(txCtx, eventID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(txCtx, `
UPDATE domain_events SET dismissed_at = NULL, dismissed_by = NULL, dismiss_reason = NULL
WHERE id = $1`, evt.ID); err != nil {
			return fmt.Errorf("eventstore undismiss: %w", err)
		}

		return s.appendAudit(txCtx, evt, actor, EventTypeEventUndismissed, "")
	})
}

func (s *AdminService) appendAudit(ctx context.Context, target *Event, actor uuid.UUID, eventType, reason string) error {
	_, err := s.store.Append(ctx, AppendParams{
		TenantID:   target.TenantID,
		StreamID:   target.ID,
		StreamType: StreamTypeAdmin,
		EventType:  eventType,
		Data:       auditPayload{TargetEventID: target.ID, Reason: reason},
		Metadata:   Metadata{ActorID: actor, Reason: reason},
	})
	return err
}
