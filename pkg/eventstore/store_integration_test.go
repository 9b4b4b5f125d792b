//go:build integration

package eventstore_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/eventstore/projector"
	"github.com/solumhq/casedesk/pkg/repo"
)

// ledgerHandler projects "ledger" streams into a throwaway table. Toggling
// poison simulates a handler bug that later gets fixed.
type ledgerHandler struct {
	table  string
	poison bool
}

func (h *ledgerHandler) StreamType() string {
	return "ledger"
}

func (h *ledgerHandler) Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	if h.poison {
		return errors.New("handler broken")
	}
	_, err := tx.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (event_id, stream_id, stream_version) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		h.table), evt.ID, evt.StreamID, evt.StreamVersion)
	return err
}

func setupStore(t *testing.T, handler projector.Handler) (context.Context, *pgxpool.Pool, *eventstore.Store) {
	t.Helper()

	dsn := os.Getenv("EVENTSTORE_TEST_DSN")
	if dsn == "" {
		t.Skip("EVENTSTORE_TEST_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	ddl, err := fs.ReadFile(eventstore.Schema(), "schema/eventstore-schema.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(ddl)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	registry := projector.NewRegistry().
		Register(projector.Nop(eventstore.StreamTypeAdmin)).
		Register(handler)
	store := eventstore.New(projector.NewRouter(registry, log), log)
	return composables.WithPool(ctx, pool), pool, store
}

func newLedgerTable(t *testing.T, ctx context.Context, pool *pgxpool.Pool) string {
	t.Helper()
	table := "ledger_it_" + uuid.NewString()[:8]
	_, err := pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE %s (
  event_id       UUID PRIMARY KEY,
  stream_id      UUID NOT NULL,
  stream_version BIGINT NOT NULL
)`, table))
	if err != nil {
		t.Fatalf("create projection table: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+table)
	})
	return table
}

func TestStore_Integration_AppendProjectsSynchronously(t *testing.T) {
	h := &ledgerHandler{}
	ctx, pool, store := setupStore(t, h)
	h.table = newLedgerTable(t, ctx, pool)

	tenantID := uuid.New()
	streamID := uuid.New()

	for want := int64(1); want <= 3; want++ {
		res, err := store.Append(ctx, eventstore.AppendParams{
			TenantID:   tenantID,
			StreamID:   streamID,
			StreamType: "ledger",
			EventType:  "ledger.entry.posted",
			Data:       map[string]any{"n": want},
		})
		if err != nil {
			t.Fatalf("append %d: %v", want, err)
		}
		if res.StreamVersion != want {
			t.Fatalf("version = %d, want %d", res.StreamVersion, want)
		}
		if res.ProjectionPending {
			t.Fatalf("append %d: projection unexpectedly pending", want)
		}
	}

	var projected int
	if err := pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT count(*) FROM %s WHERE stream_id = $1`, h.table), streamID).Scan(&projected); err != nil {
		t.Fatalf("count projection: %v", err)
	}
	if projected != 3 {
		t.Fatalf("projected rows = %d, want 3", projected)
	}
}

func TestStore_Integration_ReplayLeavesProjectionUnchanged(t *testing.T) {
	h := &ledgerHandler{}
	ctx, pool, store := setupStore(t, h)
	h.table = newLedgerTable(t, ctx, pool)

	tenantID := uuid.New()
	streamID := uuid.New()

	for i := 0; i < 3; i++ {
		if _, err := store.Append(ctx, eventstore.AppendParams{
			TenantID:   tenantID,
			StreamID:   streamID,
			StreamType: "ledger",
			EventType:  "ledger.entry.posted",
			Data:       map[string]any{"n": i + 1},
		}); err != nil {
			t.Fatalf("append %d: %v", i+1, err)
		}
	}

	current, err := store.CurrentVersion(ctx, streamID, "ledger")
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if current != 3 {
		t.Fatalf("current version = %d, want 3", current)
	}

	stream, err := store.LoadStream(ctx, streamID, "ledger")
	if err != nil {
		t.Fatalf("load stream: %v", err)
	}
	if len(stream) != 3 {
		t.Fatalf("loaded %d events, want 3", len(stream))
	}
	for i, evt := range stream {
		if evt.StreamVersion != int64(i+1) {
			t.Fatalf("event %d has version %d, want ascending from 1", i, evt.StreamVersion)
		}
	}

	// Re-applying the whole stream must not change the projection: the
	// handler writes are keyed on event id, so replay is a no-op.
	for _, evt := range stream {
		if err := h.Apply(ctx, pool, evt); err != nil {
			t.Fatalf("replay version %d: %v", evt.StreamVersion, err)
		}
	}

	var projected int
	if err := pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT count(*) FROM %s WHERE stream_id = $1`, h.table), streamID).Scan(&projected); err != nil {
		t.Fatalf("count projection: %v", err)
	}
	if projected != 3 {
		t.Fatalf("projected rows after replay = %d, want 3", projected)
	}
}

func TestStore_Integration_ExplicitVersionConflict(t *testing.T) {
	h := &ledgerHandler{}
	ctx, pool, store := setupStore(t, h)
	h.table = newLedgerTable(t, ctx, pool)

	tenantID := uuid.New()
	streamID := uuid.New()
	params := eventstore.AppendParams{
		TenantID:        tenantID,
		StreamID:        streamID,
		StreamType:      "ledger",
		EventType:       "ledger.entry.posted",
		ExpectedVersion: 1,
	}

	if _, err := store.Append(ctx, params); err != nil {
		t.Fatalf("first append: %v", err)
	}
	_, err := store.Append(ctx, params)
	if !errors.Is(err, eventstore.ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
}

func TestStore_Integration_ConcurrentAppendsRetry(t *testing.T) {
	h := &ledgerHandler{}
	ctx, pool, store := setupStore(t, h)
	h.table = newLedgerTable(t, ctx, pool)

	tenantID := uuid.New()
	streamID := uuid.New()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Append(ctx, eventstore.AppendParams{
				TenantID:   tenantID,
				StreamID:   streamID,
				StreamType: "ledger",
				EventType:  "ledger.entry.posted",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent append: %v", err)
		}
	}

	var distinct, highest int64
	err := pool.QueryRow(ctx, `
SELECT count(DISTINCT stream_version), max(stream_version)
  FROM domain_events WHERE stream_id = $1`, streamID).Scan(&distinct, &highest)
	if err != nil {
		t.Fatalf("inspect stream: %v", err)
	}
	if distinct != writers || highest != writers {
		t.Fatalf("versions: distinct=%d max=%d, want both %d", distinct, highest, writers)
	}
}

func TestStore_Integration_HandlerFailureDoesNotLoseEvent(t *testing.T) {
	h := &ledgerHandler{poison: true}
	ctx, pool, store := setupStore(t, h)
	h.table = newLedgerTable(t, ctx, pool)

	tenantID := uuid.New()
	streamID := uuid.New()

	res, err := store.Append(ctx, eventstore.AppendParams{
		TenantID:   tenantID,
		StreamID:   streamID,
		StreamType: "ledger",
		EventType:  "ledger.entry.posted",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if !res.ProjectionPending {
		t.Fatal("expected projection pending after handler failure")
	}

	var projected int
	if err := pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT count(*) FROM %s`, h.table)).Scan(&projected); err != nil {
		t.Fatalf("count projection: %v", err)
	}
	if projected != 0 {
		t.Fatalf("projected rows = %d, want 0", projected)
	}

	failed, err := store.FindFailed(ctx, eventstore.Filter{TenantID: tenantID})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != res.EventID {
		t.Fatalf("failed events = %v, want the stored one", failed)
	}

	// Fix the handler and retry through the admin surface.
	h.poison = false
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	admin := eventstore.NewAdminService(store, log)
	evt, err := admin.Retry(ctx, res.EventID, uuid.New())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if evt.ProcessedAt == nil || evt.ProcessingError != nil {
		t.Fatalf("event not marked processed after retry: %+v", evt)
	}

	if err := pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT count(*) FROM %s`, h.table)).Scan(&projected); err != nil {
		t.Fatalf("count projection: %v", err)
	}
	if projected != 1 {
		t.Fatalf("projected rows after retry = %d, want 1", projected)
	}
}
