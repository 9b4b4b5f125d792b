package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/repo"
)

// Filter narrows the admin/observability queries over the log.
type Filter struct {
	TenantID         uuid.UUID
	EventType        string
	From             time.Time
	To               time.Time
	IncludeDismissed bool
	Limit            int
}

const eventColumns = `id, sequence_number, tenant_id, stream_id, stream_type, stream_version,
	event_type, event_data, event_metadata, created_at, processed_at, processing_error,
	dismissed_at, dismissed_by, dismiss_reason`

// GetByID loads one event row.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM domain_events WHERE id = $1`, eventColumns), id)
	evt, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEventNotFound.WithTemplateData(map[string]string{"event_id": id.String()})
	}
	return evt, err
}

// LoadStream returns the processed events of one stream in version order,
// which is the replay input for rebuilding that stream's projection.
func (s *Store) LoadStream(ctx context.Context, streamID uuid.UUID, streamType string) ([]*Event, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, fmt.Sprintf(`
SELECT %s FROM domain_events
WHERE stream_id = $1 AND stream_type = $2 AND processed_at IS NOT NULL
ORDER BY stream_version`, eventColumns), streamID, streamType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// FindUnprocessed returns events the router has not successfully applied,
// including failed ones.
func (s *Store) FindUnprocessed(ctx context.Context, f Filter) ([]*Event, error) {
	return s.find(ctx, f, `processed_at IS NULL`)
}

// FindFailed returns events whose projection handler recorded an error.
func (s *Store) FindFailed(ctx context.Context, f Filter) ([]*Event, error) {
	return s.find(ctx, f, `processing_error IS NOT NULL`)
}

func (s *Store) find(ctx context.Context, f Filter, statusCond string) ([]*Event, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT %s FROM domain_events WHERE %s`, eventColumns, statusCond)
	args := make([]any, 0, 5)

	if f.TenantID != uuid.Nil {
		args = append(args, f.TenantID)
		q += fmt.Sprintf(` AND tenant_id = $%d`, len(args))
	}
	if f.EventType != "" {
		args = append(args, f.EventType)
		q += fmt.Sprintf(` AND event_type = $%d`, len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		q += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		q += fmt.Sprintf(` AND created_at < $%d`, len(args))
	}
	if !f.IncludeDismissed {
		q += ` AND dismissed_at IS NULL`
	}
	q += ` ORDER BY sequence_number`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := tx.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]*Event, error) {
	out := make([]*Event, 0, 16)
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanEvent(row pgx.Row) (*Event, error) {
	var evt Event
	var meta []byte
	err := row.Scan(
		&evt.ID, &evt.SequenceNumber, &evt.TenantID, &evt.StreamID, &evt.StreamType, &evt.StreamVersion,
		&evt.EventType, &evt.EventData, &meta, &evt.CreatedAt, &evt.ProcessedAt, &evt.ProcessingError,
		&evt.DismissedAt, &evt.DismissedBy, &evt.DismissReason,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &evt.EventMetadata); err != nil {
			return nil, fmt.Errorf("eventstore: decode metadata for %s: %w", evt.ID, err)
		}
	}
	return &evt, nil
}

// MarkProcessed and MarkFailed are the only in-place mutations the log
// permits besides dismissal. They are called by the projection router within
// the appending transaction.
func MarkProcessed(ctx context.Context, tx repo.Tx, evt *Event) error {
	var processedAt time.Time
	err := tx.QueryRow(ctx, `
UPDATE domain_events SET processed_at = now(), processing_error = NULL
WHERE id = $1
RETURNING processed_at`, evt.ID).Scan(&processedAt)
	if err != nil {
		return err
	}
	evt.ProcessedAt = &processedAt
	evt.ProcessingError = nil
	return nil
}

func MarkFailed(ctx context.Context, tx repo.Tx, evt *Event, cause string) error {
	_, err := tx.Exec(ctx, `
UPDATE domain_events SET processing_error = $2
WHERE id = $1`, evt.ID, cause)
	if err != nil {
		return err
	}
	evt.ProcessingError = &cause
	return nil
}
