// Package eventbus adapts the in-process event bus as a relay dispatcher,
// for development and tests where no external workflow engine is running.
package eventbus

import (
	"context"

	"github.com/solumhq/casedesk/pkg/eventbus"
	"github.com/solumhq/casedesk/pkg/outbox"
)

type Dispatcher struct {
	bus eventbus.EventBusWithError
}

func New(bus eventbus.EventBusWithError) *Dispatcher {
	return &Dispatcher{bus: bus}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg outbox.DispatchedMessage) error {
	_ = ctx
	// PublishE surfaces handler errors and panics so the relay can retry.
	return d.bus.PublishE(&msg.Meta, msg.Meta.Topic, msg.Payload)
}
