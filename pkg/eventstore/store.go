package eventstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/constants"
	"github.com/solumhq/casedesk/pkg/repo"
)

// Processor dispatches a freshly stored event to its projection handler
// within the same transaction. It must never return an error for a handler
// failure; those are recorded on the event row. An error return means the
// processing status itself could not be persisted and aborts the append.
type Processor interface {
	Process(ctx context.Context, tx repo.Tx, evt *Event) error
}

// Store is the only write surface into the event log. Appends are validated,
// versioned per stream, and projected synchronously before commit.
type Store struct {
	processor  Processor
	validate   *validator.Validate
	log        *logrus.Logger
	m          *metrics
	maxRetries int
}

type Option func(*Store)

// WithMaxRetries bounds the optimistic retry loop on version collisions.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func New(processor Processor, log *logrus.Logger, opts ...Option) *Store {
	s := &Store{
		processor:  processor,
		validate:   newValidate(),
		log:        log,
		m:          getMetrics(),
		maxRetries: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append stores one event and runs its projection in the same transaction.
//
// When ExpectedVersion is zero the next stream version is computed as
// max(existing)+1; a collision with a concurrent appender is retried with a
// freshly computed version, up to the configured bound. A positive
// ExpectedVersion is written as-is and a collision surfaces immediately as
// ErrVersionConflict.
//
// When the context already carries a transaction the append joins it and no
// retry is attempted: the enclosing unit of work owns conflict handling.
func (s *Store) Append(ctx context.Context, params AppendParams) (*AppendResult, error) {
	if err := s.validate.Struct(params); err != nil {
		if params.EventType != "" && !ValidEventType(params.EventType) {
			return nil, ErrInvalidEventType.WithTemplateData(map[string]string{"event_type": params.EventType})
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidAppend, err)
	}

	data, err := marshalPayload(params.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: event data: %v", ErrInvalidAppend, err)
	}
	meta, err := json.Marshal(params.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: event metadata: %v", ErrInvalidAppend, err)
	}

	attempts := s.maxRetries
	if params.ExpectedVersion > 0 || hasTx(ctx) {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		res, err := s.tryAppend(ctx, params, data, meta)
		if err == nil {
			s.m.appendTotal.WithLabelValues(params.StreamType, "success").Inc()
			if res.ProjectionPending {
				s.m.pendingTotal.WithLabelValues(params.StreamType).Inc()
			}
			return res, nil
		}

		if !isVersionCollision(err) {
			s.m.appendTotal.WithLabelValues(params.StreamType, "failure").Inc()
			return nil, err
		}

		s.m.conflictTotal.WithLabelValues(params.StreamType).Inc()
		if attempt >= attempts {
			s.m.appendTotal.WithLabelValues(params.StreamType, "conflict").Inc()
			return nil, ErrVersionConflict.WithTemplateData(map[string]string{
				"stream_id":   params.StreamID.String(),
				"stream_type": params.StreamType,
			})
		}

		s.log.WithFields(logrus.Fields{
			"stream_id":   params.StreamID,
			"stream_type": params.StreamType,
			"attempt":     attempt,
		}).Debug("eventstore: version collision, recomputing")
	}
}

func (s *Store) tryAppend(ctx context.Context, params AppendParams, data, meta []byte) (*AppendResult, error) {
	var res *AppendResult
	err := composables.InTxJoin(ctx, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}

		version := params.ExpectedVersion
		if version == 0 {
			var current int64
			err := tx.QueryRow(txCtx,
				`SELECT COALESCE(MAX(stream_version), 0) FROM domain_events WHERE stream_id = $1 AND stream_type = $2`,
				params.StreamID, params.StreamType,
			).Scan(&current)
			if err != nil {
				return fmt.Errorf("eventstore append: compute version: %w", err)
			}
			version = current + 1
		}

		evt := &Event{
			TenantID:      params.TenantID,
			StreamID:      params.StreamID,
			StreamType:    params.StreamType,
			StreamVersion: version,
			EventType:     params.EventType,
			EventData:     data,
			EventMetadata: params.Metadata,
		}

		err = tx.QueryRow(txCtx, `
INSERT INTO domain_events (tenant_id, stream_id, stream_type, stream_version, event_type, event_data, event_metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, sequence_number, created_at`,
			params.TenantID, params.StreamID, params.StreamType, version, params.EventType, data, meta,
		).Scan(&evt.ID, &evt.SequenceNumber, &evt.CreatedAt)
		if err != nil {
			return err
		}

		if err := s.processor.Process(txCtx, tx, evt); err != nil {
			return fmt.Errorf("eventstore append: record processing status: %w", err)
		}

		res = &AppendResult{
			EventID:           evt.ID,
			StreamVersion:     version,
			SequenceNumber:    evt.SequenceNumber,
			CreatedAt:         evt.CreatedAt,
			ProjectionPending: evt.ProcessingError != nil,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CurrentVersion returns the highest stream version, zero for an unknown
// stream.
func (s *Store) CurrentVersion(ctx context.Context, streamID uuid.UUID, streamType string) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var current int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(stream_version), 0) FROM domain_events WHERE stream_id = $1 AND stream_type = $2`,
		streamID, streamType,
	).Scan(&current)
	if err != nil {
		return 0, err
	}
	return current, nil
}

func marshalPayload(data any) ([]byte, error) {
	if data == nil {
		return []byte("{}"), nil
	}
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(data)
}

func hasTx(ctx context.Context) bool {
	tx, ok := ctx.Value(constants.TxKey).(pgx.Tx)
	return ok && tx != nil
}
