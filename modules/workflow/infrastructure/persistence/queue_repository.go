package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"

	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/outbox"
	"github.com/solumhq/casedesk/pkg/serrors"
)

var (
	ErrWorkflowNotFound = serrors.NewError(
		"WORKFLOW_NOT_FOUND",
		"workflow not found",
		"Workflows.Errors.NotFound",
	)
	ErrQueueEntryNotFound = serrors.NewError(
		"WORKFLOW_QUEUE_ENTRY_NOT_FOUND",
		"workflow queue entry not found",
		"Workflows.Errors.EntryNotFound",
	)
)

type Workflow struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Kind        string
	SubjectType string
	SubjectID   uuid.UUID
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type QueueEntry struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	WorkflowID  uuid.UUID
	Topic       string
	Payload     json.RawMessage
	Status      string
	Attempts    int
	LockedAt    *time.Time
	AvailableAt time.Time
	LastError   *string
	CompletedAt *time.Time
}

type QueueRepository struct{}

func NewQueueRepository() *QueueRepository {
	return &QueueRepository{}
}

func (r *QueueRepository) GetWorkflow(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var w Workflow
	err = tx.QueryRow(ctx, `
SELECT id, tenant_id, kind, subject_type, subject_id, status, created_at, updated_at
  FROM workflows WHERE id = $1`, id).
		Scan(&w.ID, &w.TenantID, &w.Kind, &w.SubjectType, &w.SubjectID, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *QueueRepository) GetEntry(ctx context.Context, id uuid.UUID) (*QueueEntry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var e QueueEntry
	err = tx.QueryRow(ctx, `
SELECT id, tenant_id, workflow_id, topic, payload, status, attempts, locked_at, available_at, last_error, completed_at
  FROM workflow_queue_entries WHERE id = $1`, id).
		Scan(&e.ID, &e.TenantID, &e.WorkflowID, &e.Topic, &e.Payload, &e.Status,
			&e.Attempts, &e.LockedAt, &e.AvailableAt, &e.LastError, &e.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQueueEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// LockBatch selects dispatchable entries with FOR UPDATE SKIP LOCKED and
// stamps their operational claim columns. The caller appends the matching
// status transition events in the same transaction.
func (r *QueueRepository) LockBatch(ctx context.Context, batch int, now, lockCutoff time.Time) ([]outbox.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT id, tenant_id, workflow_id, topic, payload, event_metadata, attempts
  FROM workflow_queue_entries
 WHERE (status = 'pending' AND available_at <= $1)
    OR (status = 'processing' AND locked_at IS NOT NULL AND locked_at < $2)
 ORDER BY available_at
 LIMIT $3
 FOR UPDATE SKIP LOCKED`, now, lockCutoff, batch)
	if err != nil {
		return nil, errors.Wrap(err, "failed to lock queue batch")
	}
	defer rows.Close()

	var entries []outbox.Entry
	var ids []uuid.UUID
	for rows.Next() {
		var e outbox.Entry
		var rawMeta []byte
		if err := rows.Scan(&e.ID, &e.TenantID, &e.WorkflowID, &e.Topic, &e.Payload, &rawMeta, &e.Attempts); err != nil {
			return nil, err
		}
		if len(rawMeta) > 0 {
			var meta eventstore.Metadata
			if err := json.Unmarshal(rawMeta, &meta); err != nil {
				return nil, errors.Wrapf(err, "failed to decode metadata for entry %s", e.ID)
			}
			e.TraceParent = meta.TraceParent
			e.TraceState = meta.TraceState
		}
		e.Attempts++
		entries = append(entries, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	_, err = tx.Exec(ctx, `
UPDATE workflow_queue_entries SET locked_at = $1, attempts = attempts + 1
 WHERE id = ANY($2)`, now, pgtype.FlatArray[uuid.UUID](ids))
	if err != nil {
		return nil, errors.Wrap(err, "failed to stamp claimed entries")
	}
	return entries, nil
}

// Depth reports pending and in-flight counts.
func (r *QueueRepository) Depth(ctx context.Context) (pending, processing int64, err error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, 0, err
	}
	err = tx.QueryRow(ctx, `
SELECT count(*) FILTER (WHERE status = 'pending'),
       count(*) FILTER (WHERE status = 'processing')
  FROM workflow_queue_entries`).Scan(&pending, &processing)
	return pending, processing, err
}
