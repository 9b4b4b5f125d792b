package projector

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

// Router dispatches stored events to their projection handlers inside the
// appending transaction. A handler failure is captured on the event row and
// never re-raised: the write that produced the event is not lost to a
// projection bug, it becomes inspectable and retryable instead.
type Router struct {
	registry *Registry
	log      *logrus.Logger
	m        *metrics
}

func NewRouter(registry *Registry, log *logrus.Logger) *Router {
	return &Router{
		registry: registry,
		log:      log,
		m:        getMetrics(),
	}
}

// Process implements eventstore.Processor. Events already processed are
// skipped, which makes re-dispatch on update (manual retry) safe.
func (r *Router) Process(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	if evt.Processed() {
		return nil
	}

	handler, ok := r.registry.Resolve(evt.StreamType, evt.EventType)
	if !ok {
		cause := fmt.Sprintf("no handler registered for stream type %q", evt.StreamType)
		r.m.dispatchTotal.WithLabelValues(evt.StreamType, "unrouted").Inc()
		return eventstore.MarkFailed(ctx, tx, evt, cause)
	}

	// Handler work runs behind a savepoint: a failed statement would
	// otherwise abort the surrounding transaction and take the event row
	// down with it.
	if _, err := tx.Exec(ctx, `SAVEPOINT projector_apply`); err != nil {
		return fmt.Errorf("projector: savepoint: %w", err)
	}

	start := time.Now()
	err := safeApply(handler, ctx, tx, evt)
	if err == nil {
		for _, hook := range r.registry.Hooks(evt.StreamType) {
			if err = safeSync(hook, ctx, tx, evt); err != nil {
				break
			}
		}
	}
	latency := time.Since(start)

	if err != nil {
		if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT projector_apply`); rbErr != nil {
			return fmt.Errorf("projector: rollback to savepoint: %w", rbErr)
		}
		r.m.dispatchTotal.WithLabelValues(evt.StreamType, "failure").Inc()
		r.m.dispatchLatency.WithLabelValues(evt.StreamType, "failure").Observe(latency.Seconds())
		r.log.WithError(err).WithFields(logrus.Fields{
			"event_id":    evt.ID,
			"event_type":  evt.EventType,
			"stream_id":   evt.StreamID,
			"stream_type": evt.StreamType,
		}).Warn("projector: handler failed, event preserved for retry")
		return eventstore.MarkFailed(ctx, tx, evt, err.Error())
	}

	if _, err := tx.Exec(ctx, `RELEASE SAVEPOINT projector_apply`); err != nil {
		return fmt.Errorf("projector: release savepoint: %w", err)
	}

	r.m.dispatchTotal.WithLabelValues(evt.StreamType, "success").Inc()
	r.m.dispatchLatency.WithLabelValues(evt.StreamType, "success").Observe(latency.Seconds())
	return eventstore.MarkProcessed(ctx, tx, evt)
}

func safeApply(h Handler, ctx context.Context, tx repo.Tx, evt *eventstore.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %q panicked: %v", evt.StreamType, r)
		}
	}()
	return h.Apply(ctx, tx, evt)
}

func safeSync(h SyncHook, ctx context.Context, tx repo.Tx, evt *eventstore.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync hook for %q panicked: %v", evt.StreamType, r)
		}
	}()
	return h.Sync(ctx, tx, evt)
}
