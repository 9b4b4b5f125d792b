package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeQueue struct {
	entries   []Entry
	completed []uuid.UUID
	requeued  []uuid.UUID
	failed    []uuid.UUID
	lastError string
	nextAt    time.Time
}

func (q *fakeQueue) Claim(ctx context.Context, batch int, now, lockCutoff time.Time) ([]Entry, error) {
	out := q.entries
	q.entries = nil
	return out, nil
}

func (q *fakeQueue) Complete(ctx context.Context, entry Entry, result json.RawMessage) error {
	q.completed = append(q.completed, entry.ID)
	return nil
}

func (q *fakeQueue) Requeue(ctx context.Context, entry Entry, lastError string, nextAvailable time.Time) error {
	q.requeued = append(q.requeued, entry.ID)
	q.lastError = lastError
	q.nextAt = nextAvailable
	return nil
}

func (q *fakeQueue) Fail(ctx context.Context, entry Entry, lastError string) error {
	q.failed = append(q.failed, entry.ID)
	q.lastError = lastError
	return nil
}

func (q *fakeQueue) Depth(ctx context.Context) (int64, int64, error) {
	return int64(len(q.entries)), 0, nil
}

type fakeDispatcher struct {
	err  error
	seen []DispatchedMessage
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, msg DispatchedMessage) error {
	d.seen = append(d.seen, msg)
	return d.err
}

func testEntry(attempts int) Entry {
	return Entry{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		WorkflowID: uuid.New(),
		Topic:      "workflow.bootstrap",
		Payload:    json.RawMessage(`{"step":"init"}`),
		Attempts:   attempts,
	}
}

func TestRelay_SuccessfulDispatchCompletes(t *testing.T) {
	t.Parallel()

	entry := testEntry(1)
	queue := &fakeQueue{entries: []Entry{entry}}
	dispatcher := &fakeDispatcher{}

	relay, err := NewRelay(nil, queue, dispatcher, RelayOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(dispatcher.seen) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(dispatcher.seen))
	}
	if dispatcher.seen[0].Meta.EntryID != entry.ID {
		t.Fatalf("dispatched wrong entry")
	}
	if len(queue.completed) != 1 || queue.completed[0] != entry.ID {
		t.Fatalf("expected entry completed, got %v", queue.completed)
	}
}

func TestRelay_TraceContextReachesDispatcher(t *testing.T) {
	t.Parallel()

	entry := testEntry(1)
	entry.TraceParent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	entry.TraceState = "congo=t61rcWkgMzE"
	queue := &fakeQueue{entries: []Entry{entry}}
	dispatcher := &fakeDispatcher{}

	relay, err := NewRelay(nil, queue, dispatcher, RelayOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(dispatcher.seen) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(dispatcher.seen))
	}
	meta := dispatcher.seen[0].Meta
	if meta.TraceParent != entry.TraceParent {
		t.Fatalf("traceparent lost: %q", meta.TraceParent)
	}
	if meta.TraceState != entry.TraceState {
		t.Fatalf("tracestate lost: %q", meta.TraceState)
	}
}

func TestRelay_TransientFailureRequeuesWithBackoff(t *testing.T) {
	t.Parallel()

	entry := testEntry(2)
	queue := &fakeQueue{entries: []Entry{entry}}
	dispatcher := &fakeDispatcher{err: errors.New("engine unavailable")}

	relay, err := NewRelay(nil, queue, dispatcher, RelayOptions{MaxAttempts: 5})
	if err != nil {
		t.Fatal(err)
	}
	before := time.Now()
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(queue.requeued) != 1 {
		t.Fatalf("expected requeue, got %v", queue.requeued)
	}
	if queue.lastError == "" {
		t.Fatal("expected last error recorded")
	}
	// attempts=2 maps to a 2s backoff floor before jitter.
	if queue.nextAt.Before(before.Add(2 * time.Second)) {
		t.Fatalf("expected backoff of at least 2s, next at %s", queue.nextAt)
	}
}

func TestRelay_ExhaustedAttemptsFailTerminally(t *testing.T) {
	t.Parallel()

	entry := testEntry(3)
	queue := &fakeQueue{entries: []Entry{entry}}
	dispatcher := &fakeDispatcher{err: errors.New("bad payload")}

	relay, err := NewRelay(nil, queue, dispatcher, RelayOptions{MaxAttempts: 3})
	if err != nil {
		t.Fatal(err)
	}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(queue.failed) != 1 || queue.failed[0] != entry.ID {
		t.Fatalf("expected terminal failure, got failed=%v requeued=%v", queue.failed, queue.requeued)
	}
}

func TestNewRelay_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewRelay(nil, nil, &fakeDispatcher{}, RelayOptions{}); err == nil {
		t.Fatal("expected error for nil queue")
	}
	if _, err := NewRelay(nil, &fakeQueue{}, nil, RelayOptions{}); err == nil {
		t.Fatal("expected error for nil dispatcher")
	}
	if _, err := NewRelay(nil, &fakeQueue{}, &fakeDispatcher{}, RelayOptions{SingleActive: true}); err == nil {
		t.Fatal("expected error for single-active without pool")
	}
}
