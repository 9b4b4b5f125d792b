package outbox

import (
	"context"
	"encoding/json"
	"time"
)

// Dispatcher delivers one message to the external workflow engine (or a
// local substitute).
type Dispatcher interface {
	Dispatch(ctx context.Context, msg DispatchedMessage) error
}

// Queue is the relay's view of the dispatch queue. Claiming and resolving
// entries are durable state transitions owned by the queue implementation;
// the relay only decides when each happens.
type Queue interface {
	// Claim locks up to batch dispatchable entries and transitions them to
	// processing. Entries whose lock is older than lockCutoff count as
	// abandoned and may be re-claimed.
	Claim(ctx context.Context, batch int, now, lockCutoff time.Time) ([]Entry, error)

	// Complete resolves an entry after a successful dispatch.
	Complete(ctx context.Context, entry Entry, result json.RawMessage) error

	// Requeue returns an entry to the dispatchable pool after a transient
	// failure, not before nextAvailable.
	Requeue(ctx context.Context, entry Entry, lastError string, nextAvailable time.Time) error

	// Fail terminally resolves an entry whose attempts are exhausted.
	Fail(ctx context.Context, entry Entry, lastError string) error

	// Depth reports pending and in-flight counts for observability.
	Depth(ctx context.Context) (pending, processing int64, err error)
}
