package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solumhq/casedesk/modules/workflow/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
)

type recordingTx struct {
	execs []string
	args  [][]any
}

func (f *recordingTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *recordingTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("recordingTx: Query not supported")
}

func (f *recordingTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("recordingTx: QueryRow not supported")
}

func queueEvent(t *testing.T, streamID uuid.UUID, eventType string, payload any) *eventstore.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &eventstore.Event{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		StreamID:      streamID,
		StreamType:    events.StreamTypeQueueEntry,
		StreamVersion: 1,
		EventType:     eventType,
		EventData:     data,
		CreatedAt:     time.Now(),
	}
}

func TestQueueHandler_LifecycleGuards(t *testing.T) {
	h := NewQueueHandler()
	tx := &recordingTx{}
	entryID := uuid.New()

	pending := queueEvent(t, entryID, events.TypeQueuePending, events.QueuePending{
		ID:         entryID,
		WorkflowID: uuid.New(),
		Topic:      "case.bootstrap",
		Payload:    json.RawMessage(`{"case_id":"c-1"}`),
	})
	require.NoError(t, h.Apply(context.Background(), tx, pending))

	claimed := queueEvent(t, entryID, events.TypeQueueClaimed, nil)
	require.NoError(t, h.Apply(context.Background(), tx, claimed))

	requeued := queueEvent(t, entryID, events.TypeQueueRequeued, events.QueueRequeued{
		Error:       "engine unavailable",
		AvailableAt: time.Now().Add(4 * time.Second),
	})
	require.NoError(t, h.Apply(context.Background(), tx, requeued))

	completed := queueEvent(t, entryID, events.TypeQueueCompleted, events.QueueCompleted{
		Result: json.RawMessage(`{"ok":true}`),
	})
	require.NoError(t, h.Apply(context.Background(), tx, completed))

	failed := queueEvent(t, entryID, events.TypeQueueFailed, events.QueueFailed{Error: "gave up"})
	require.NoError(t, h.Apply(context.Background(), tx, failed))

	require.Len(t, tx.execs, 5)
	assert.Contains(t, tx.execs[0], "ON CONFLICT (id) DO NOTHING")
	assert.Contains(t, tx.execs[0], "event_metadata")
	assert.Contains(t, tx.execs[1], "status = 'pending'")
	assert.Contains(t, tx.execs[2], "status = 'processing'")
	assert.Contains(t, tx.execs[3], "status = 'processing'")
	assert.Contains(t, tx.execs[4], "status IN ('pending', 'processing')")
}

func TestQueueHandler_PendingPersistsEventMetadata(t *testing.T) {
	h := NewQueueHandler()
	tx := &recordingTx{}
	entryID := uuid.New()

	pending := queueEvent(t, entryID, events.TypeQueuePending, events.QueuePending{
		ID:         entryID,
		WorkflowID: uuid.New(),
		Topic:      "case.bootstrap",
	})
	pending.EventMetadata = eventstore.Metadata{
		ActorID:     uuid.New(),
		TraceParent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
		TraceState:  "congo=t61rcWkgMzE",
	}
	require.NoError(t, h.Apply(context.Background(), tx, pending))

	require.Len(t, tx.args, 1)
	raw, ok := tx.args[0][5].([]byte)
	require.True(t, ok, "metadata must be inserted as encoded JSON")

	var stored eventstore.Metadata
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, pending.EventMetadata.ActorID, stored.ActorID)
	assert.Equal(t, pending.EventMetadata.TraceParent, stored.TraceParent)
	assert.Equal(t, pending.EventMetadata.TraceState, stored.TraceState)
}

func TestWorkflowHandler_TerminalTransitionsGuardedByRunning(t *testing.T) {
	h := NewWorkflowHandler()
	tx := &recordingTx{}
	workflowID := uuid.New()

	initiated := queueEvent(t, workflowID, events.TypeBootstrapInitiated, events.BootstrapInitiated{
		ID:          workflowID,
		Kind:        "member_onboarding",
		SubjectType: "invitation",
		SubjectID:   uuid.New(),
	})
	initiated.StreamType = events.StreamTypeWorkflow
	require.NoError(t, h.Apply(context.Background(), tx, initiated))

	completed := queueEvent(t, workflowID, events.TypeWorkflowCompleted, nil)
	completed.StreamType = events.StreamTypeWorkflow
	require.NoError(t, h.Apply(context.Background(), tx, completed))

	require.Len(t, tx.execs, 2)
	assert.Contains(t, tx.execs[0], "ON CONFLICT (id) DO NOTHING")
	assert.Contains(t, tx.execs[1], "status = 'running'")
}

func TestQueueHandler_UnknownEventTypeErrors(t *testing.T) {
	evt := queueEvent(t, uuid.New(), "workflow.queue.misplaced", nil)
	err := NewQueueHandler().Apply(context.Background(), &recordingTx{}, evt)
	require.Error(t, err)
}
