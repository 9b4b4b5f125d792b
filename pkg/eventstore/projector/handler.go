package projector

import (
	"context"

	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

// Handler translates events of one stream family into its projection tables.
// Apply must be idempotent: applying the same event twice leaves the
// projection in the same state as applying it once.
type Handler interface {
	StreamType() string
	Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error
}

// SyncHook runs after the primary handler succeeds and maintains
// denormalized convenience state (e.g. a user's flattened accessible
// organization list). Hooks are registered separately so primary handlers
// stay single-responsibility.
type SyncHook interface {
	Sync(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error
}

// SyncHookFunc adapts a function to SyncHook.
type SyncHookFunc func(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error

func (f SyncHookFunc) Sync(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	return f(ctx, tx, evt)
}

// Nop returns a handler that accepts every event of a stream type without
// projecting anything. The administrative audit stream uses it.
func Nop(streamType string) Handler {
	return nopHandler(streamType)
}

type nopHandler string

func (h nopHandler) StreamType() string {
	return string(h)
}

func (h nopHandler) Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	return nil
}
