package outbox

import (
	"context"
	"errors"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const leaderLockName = "outbox:workflow_queue"

// Relay drains the workflow dispatch queue: it claims pending entries,
// delivers them to the Dispatcher, and resolves each one through the Queue.
// With SingleActive set, a Postgres advisory lock keeps one relay draining
// per cluster while standbys poll for leadership.
type Relay struct {
	pool       *pgxpool.Pool
	queue      Queue
	dispatcher Dispatcher
	opts       RelayOptions

	lockKey int64
	m       *metrics
}

func NewRelay(pool *pgxpool.Pool, queue Queue, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	if queue == nil {
		return nil, invalidConfig("queue is required")
	}
	if dispatcher == nil {
		return nil, invalidConfig("dispatcher is required")
	}
	if pool == nil && opts.SingleActive {
		return nil, invalidConfig("pool is required for single-active mode")
	}

	opts.setDefaults()
	if opts.Logger == nil {
		opts.Logger = logrusNop()
	}

	return &Relay{
		pool:       pool,
		queue:      queue,
		dispatcher: dispatcher,
		opts:       opts,
		m:          getMetrics(),
		lockKey:    advisoryLockKey(leaderLockName),
	}, nil
}

func (r *Relay) Run(ctx context.Context) error {
	if ctx == nil {
		return invalidConfig("ctx is required")
	}

	if r.opts.SingleActive {
		return r.runSingleActive(ctx)
	}

	r.m.relayLeader.Set(1)
	return r.runLoop(ctx)
}

// RunOnce drains a single batch and returns. The relay command uses it for
// one-shot invocations.
func (r *Relay) RunOnce(ctx context.Context) error {
	return r.processOnce(ctx)
}

func (r *Relay) runSingleActive(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := r.pool.Acquire(ctx)
		if err != nil {
			r.opts.Logger.WithError(err).Warn("outbox: failed to acquire connection for single-active relay")
			if err := sleep(ctx, r.opts.PollInterval); err != nil {
				return err
			}
			continue
		}

		leader, err := r.tryAcquireLeader(ctx, conn)
		if err != nil {
			conn.Release()
			r.opts.Logger.WithError(err).Warn("outbox: failed to attempt advisory lock")
			if err := sleep(ctx, r.opts.PollInterval); err != nil {
				return err
			}
			continue
		}

		if !leader {
			r.m.relayLeader.Set(0)
			conn.Release()
			if err := sleep(ctx, r.opts.PollInterval); err != nil {
				return err
			}
			continue
		}

		r.m.relayLeader.Set(1)
		r.opts.Logger.Info("outbox: relay became leader")

		err = r.runLoop(ctx)
		_ = r.releaseLeader(context.Background(), conn)
		conn.Release()
		return err
	}
}

func (r *Relay) runLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	nextDepthAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(nextDepthAt) {
			if err := r.observeQueueDepth(ctx); err != nil {
				r.opts.Logger.WithError(err).Debug("outbox: observe queue depth failed")
			}
			nextDepthAt = time.Now().Add(r.opts.ObserveQueueDepthEvery)
		}

		if err := r.processOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.opts.Logger.WithError(err).Warn("outbox: process tick failed")
		}
	}
}

func (r *Relay) processOnce(ctx context.Context) error {
	now := time.Now()
	cutoff := now.Add(-r.opts.LockTTL)

	entries, err := r.queue.Claim(ctx, r.opts.BatchSize, now, cutoff)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		dispatchCtx := ctx
		var cancel func()
		if r.opts.DispatchTimeout > 0 {
			dispatchCtx, cancel = context.WithTimeout(ctx, r.opts.DispatchTimeout)
		}

		start := time.Now()
		err := r.dispatcher.Dispatch(dispatchCtx, DispatchedMessage{
			Meta: Meta{
				TenantID:    entry.TenantID,
				WorkflowID:  entry.WorkflowID,
				EntryID:     entry.ID,
				Topic:       entry.Topic,
				Attempts:    entry.Attempts,
				TraceParent: entry.TraceParent,
				TraceState:  entry.TraceState,
			},
			Payload: entry.Payload,
		})
		if cancel != nil {
			cancel()
		}

		latency := time.Since(start)
		if err == nil {
			r.recordDispatch(entry.Topic, "success", latency)
			if ackErr := r.queue.Complete(ctx, entry, nil); ackErr != nil {
				r.opts.Logger.WithError(ackErr).WithFields(entryFields(entry)).Warn("outbox: complete failed")
			}
			continue
		}

		r.recordDispatch(entry.Topic, "failure", latency)
		lastErr := truncateError(err, r.opts.LastErrorMaxLen)

		if entry.Attempts >= r.opts.MaxAttempts {
			r.m.deadTotal.WithLabelValues(entry.Topic).Inc()
			if failErr := r.queue.Fail(ctx, entry, lastErr); failErr != nil {
				r.opts.Logger.WithError(failErr).WithFields(entryFields(entry)).Warn("outbox: fail update failed")
			}
			continue
		}

		next := time.Now().Add(backoff(entry.Attempts, r.opts.MaxBackoff) + jitter(r.opts.Rand, r.opts.JitterMax))
		if requeueErr := r.queue.Requeue(ctx, entry, lastErr, next); requeueErr != nil {
			r.opts.Logger.WithError(requeueErr).WithFields(entryFields(entry)).Warn("outbox: requeue failed")
		}
	}

	return nil
}

func (r *Relay) observeQueueDepth(ctx context.Context) error {
	pending, processing, err := r.queue.Depth(ctx)
	if err != nil {
		return err
	}
	r.m.pending.Set(float64(pending))
	r.m.processing.Set(float64(processing))
	return nil
}

func (r *Relay) recordDispatch(topic, result string, latency time.Duration) {
	r.m.dispatchTotal.WithLabelValues(topic, result).Inc()
	r.m.dispatchLatency.WithLabelValues(topic, result).Observe(latency.Seconds())
}

func (r *Relay) tryAcquireLeader(ctx context.Context, conn *pgxpool.Conn) (bool, error) {
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, r.lockKey).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *Relay) releaseLeader(ctx context.Context, conn *pgxpool.Conn) error {
	var ok bool
	return conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1::bigint)`, r.lockKey).Scan(&ok)
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func entryFields(e Entry) map[string]any {
	return map[string]any{
		"entry_id":    e.ID.String(),
		"workflow_id": e.WorkflowID.String(),
		"tenant_id":   e.TenantID.String(),
		"topic":       e.Topic,
		"attempts":    e.Attempts,
	}
}
