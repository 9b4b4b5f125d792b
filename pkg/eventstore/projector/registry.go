package projector

import (
	"fmt"
	"strings"
)

const (
	linkedSuffix   = ".linked"
	unlinkedSuffix = ".unlinked"
)

// Registry maps stream types to handlers. Registration happens once at
// startup and panics on conflicts, so a missing or duplicated family is a
// boot failure rather than a silently unprocessed event at runtime.
type Registry struct {
	handlers map[string]Handler
	hooks    map[string][]SyncHook
	link     Handler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		hooks:    make(map[string][]SyncHook),
	}
}

func (r *Registry) Register(h Handler) *Registry {
	st := h.StreamType()
	if st == "" {
		panic("projector: handler with empty stream type")
	}
	if _, exists := r.handlers[st]; exists {
		panic(fmt.Sprintf("projector: duplicate handler for stream type %q", st))
	}
	r.handlers[st] = h
	return r
}

// RegisterLinkHandler installs the shared junction-table handler. Event
// types ending in ".linked"/".unlinked" are routed to it across all stream
// families.
func (r *Registry) RegisterLinkHandler(h Handler) *Registry {
	if r.link != nil {
		panic("projector: link handler registered twice")
	}
	r.link = h
	return r
}

// RegisterSyncHook attaches a hook to a stream type. Hooks run after the
// primary handler, within the same transaction.
func (r *Registry) RegisterSyncHook(streamType string, hook SyncHook) *Registry {
	r.hooks[streamType] = append(r.hooks[streamType], hook)
	return r
}

// Resolve returns the handler for (streamType, eventType). Link events win
// over the family handler.
func (r *Registry) Resolve(streamType, eventType string) (Handler, bool) {
	if r.link != nil && isLinkEvent(eventType) {
		return r.link, true
	}
	h, ok := r.handlers[streamType]
	return h, ok
}

func (r *Registry) Hooks(streamType string) []SyncHook {
	return r.hooks[streamType]
}

// StreamTypes lists registered families, for diagnostics.
func (r *Registry) StreamTypes() []string {
	out := make([]string, 0, len(r.handlers))
	for st := range r.handlers {
		out = append(out, st)
	}
	return out
}

func isLinkEvent(eventType string) bool {
	return strings.HasSuffix(eventType, linkedSuffix) || strings.HasSuffix(eventType, unlinkedSuffix)
}
