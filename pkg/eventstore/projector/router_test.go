package projector

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

// fakeTx records statements and satisfies the narrow surface the router and
// the event-row status updates need.
type fakeTx struct {
	execs []string
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeTx: Query not supported")
}

func (f *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.execs = append(f.execs, sql)
	return fakeRow{}
}

type fakeRow struct{}

func (fakeRow) Scan(dest ...any) error {
	for _, d := range dest {
		if t, ok := d.(*time.Time); ok {
			*t = time.Now()
		}
	}
	return nil
}

func (f *fakeTx) executed(fragment string) bool {
	for _, q := range f.execs {
		if strings.Contains(q, fragment) {
			return true
		}
	}
	return false
}

type stubHandler struct {
	streamType string
	applyErr   error
	panicMsg   string
	applied    []*eventstore.Event
}

func (h *stubHandler) StreamType() string { return h.streamType }

func (h *stubHandler) Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	h.applied = append(h.applied, evt)
	return h.applyErr
}

func newTestRouter(handlers ...Handler) (*Router, *Registry) {
	registry := NewRegistry()
	for _, h := range handlers {
		registry.Register(h)
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewRouter(registry, log), registry
}

func newEvent(streamType, eventType string) *eventstore.Event {
	return &eventstore.Event{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		StreamID:      uuid.New(),
		StreamType:    streamType,
		StreamVersion: 1,
		EventType:     eventType,
		EventData:     []byte(`{}`),
		CreatedAt:     time.Now(),
	}
}

func TestRouter_DispatchesByStreamType(t *testing.T) {
	orgHandler := &stubHandler{streamType: "organization"}
	userHandler := &stubHandler{streamType: "user"}
	router, _ := newTestRouter(orgHandler, userHandler)

	tx := &fakeTx{}
	evt := newEvent("organization", "organization.created")
	require.NoError(t, router.Process(context.Background(), tx, evt))

	assert.Len(t, orgHandler.applied, 1)
	assert.Empty(t, userHandler.applied)
	require.NotNil(t, evt.ProcessedAt)
	assert.Nil(t, evt.ProcessingError)
}

func TestRouter_LinkEventsGoToLinkHandler(t *testing.T) {
	orgHandler := &stubHandler{streamType: "organization"}
	linkHandler := &stubHandler{streamType: "link"}
	router, registry := newTestRouter(orgHandler)
	registry.RegisterLinkHandler(linkHandler)

	tx := &fakeTx{}
	for _, eventType := range []string{"organization.contact.linked", "organization.contact.unlinked"} {
		evt := newEvent("organization", eventType)
		require.NoError(t, router.Process(context.Background(), tx, evt))
	}

	assert.Empty(t, orgHandler.applied)
	assert.Len(t, linkHandler.applied, 2)
}

func TestRouter_SkipsAlreadyProcessed(t *testing.T) {
	handler := &stubHandler{streamType: "organization"}
	router, _ := newTestRouter(handler)

	processedAt := time.Now()
	evt := newEvent("organization", "organization.created")
	evt.ProcessedAt = &processedAt

	tx := &fakeTx{}
	require.NoError(t, router.Process(context.Background(), tx, evt))
	assert.Empty(t, handler.applied)
	assert.Empty(t, tx.execs)
}

func TestRouter_HandlerErrorIsCapturedNotRaised(t *testing.T) {
	handler := &stubHandler{streamType: "organization", applyErr: errors.New("projection bug")}
	router, _ := newTestRouter(handler)

	tx := &fakeTx{}
	evt := newEvent("organization", "organization.created")
	require.NoError(t, router.Process(context.Background(), tx, evt))

	require.NotNil(t, evt.ProcessingError)
	assert.Contains(t, *evt.ProcessingError, "projection bug")
	assert.Nil(t, evt.ProcessedAt)
	assert.True(t, tx.executed("ROLLBACK TO SAVEPOINT"))
}

func TestRouter_HandlerPanicIsCaptured(t *testing.T) {
	handler := &stubHandler{streamType: "organization", panicMsg: "nil map write"}
	router, _ := newTestRouter(handler)

	tx := &fakeTx{}
	evt := newEvent("organization", "organization.created")
	require.NoError(t, router.Process(context.Background(), tx, evt))

	require.NotNil(t, evt.ProcessingError)
	assert.Contains(t, *evt.ProcessingError, "panicked")
}

func TestRouter_UnknownStreamTypeRecordsFailure(t *testing.T) {
	router, _ := newTestRouter()

	tx := &fakeTx{}
	evt := newEvent("mystery", "mystery.created")
	require.NoError(t, router.Process(context.Background(), tx, evt))

	require.NotNil(t, evt.ProcessingError)
	assert.Contains(t, *evt.ProcessingError, "no handler registered")
}

func TestRouter_SyncHookRunsAfterHandler(t *testing.T) {
	handler := &stubHandler{streamType: "access_grant"}
	router, registry := newTestRouter(handler)

	var hookRan bool
	registry.RegisterSyncHook("access_grant", SyncHookFunc(func(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
		hookRan = true
		return nil
	}))

	tx := &fakeTx{}
	evt := newEvent("access_grant", "access.grant.created")
	require.NoError(t, router.Process(context.Background(), tx, evt))

	assert.True(t, hookRan)
	assert.NotNil(t, evt.ProcessedAt)
}

func TestRouter_SyncHookFailureMarksEventFailed(t *testing.T) {
	handler := &stubHandler{streamType: "access_grant"}
	router, registry := newTestRouter(handler)

	registry.RegisterSyncHook("access_grant", SyncHookFunc(func(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
		return errors.New("sync failed")
	}))

	tx := &fakeTx{}
	evt := newEvent("access_grant", "access.grant.created")
	require.NoError(t, router.Process(context.Background(), tx, evt))

	require.NotNil(t, evt.ProcessingError)
	assert.Contains(t, *evt.ProcessingError, "sync failed")
}

func TestRegistry_DuplicateRegistrationPanics(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubHandler{streamType: "organization"})
	assert.Panics(t, func() {
		registry.Register(&stubHandler{streamType: "organization"})
	})
}

func TestRegistry_NopHandlerAcceptsEverything(t *testing.T) {
	router, _ := newTestRouter(Nop(eventstore.StreamTypeAdmin))

	tx := &fakeTx{}
	evt := newEvent(eventstore.StreamTypeAdmin, "admin.event.retried")
	require.NoError(t, router.Process(context.Background(), tx, evt))
	assert.NotNil(t, evt.ProcessedAt)
}
