package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solumhq/casedesk/modules/access/domain/events"
	coreevents "github.com/solumhq/casedesk/modules/core/domain/events"
	orgevents "github.com/solumhq/casedesk/modules/org/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
)

type hookTx struct {
	execs      []string
	userID     uuid.UUID
	rowMissing bool
}

func (f *hookTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *hookTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("hookTx: Query not supported")
}

func (f *hookTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return hookRow{userID: f.userID, missing: f.rowMissing}
}

type hookRow struct {
	userID  uuid.UUID
	missing bool
}

func (r hookRow) Scan(dest ...any) error {
	if r.missing {
		return pgx.ErrNoRows
	}
	for _, d := range dest {
		if id, ok := d.(*uuid.UUID); ok {
			*id = r.userID
		}
	}
	return nil
}

func hookEvent(streamType, eventType string) *eventstore.Event {
	return &eventstore.Event{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		StreamID:   uuid.New(),
		StreamType: streamType,
		EventType:  eventType,
		CreatedAt:  time.Now(),
	}
}

func TestAccessibleOrgsHook_RecomputesForGrantAndAssignmentStreams(t *testing.T) {
	hook := NewAccessibleOrgsHook()

	for _, streamType := range []string{events.StreamTypeAccessGrant, coreevents.StreamTypeAssignment} {
		tx := &hookTx{userID: uuid.New()}
		evt := hookEvent(streamType, "access.grant.created")
		require.NoError(t, hook.Sync(context.Background(), tx, evt))

		require.Len(t, tx.execs, 1, streamType)
		assert.Contains(t, tx.execs[0], "accessible_org_ids")
	}
}

func TestAccessibleOrgsHook_MissingRowIsANoOp(t *testing.T) {
	hook := NewAccessibleOrgsHook()
	tx := &hookTx{rowMissing: true}

	evt := hookEvent(events.StreamTypeAccessGrant, "access.grant.created")
	require.NoError(t, hook.Sync(context.Background(), tx, evt))
	assert.Empty(t, tx.execs)
}

func TestAccessibleOrgsHook_OrganizationEventsRecomputeWholeTenant(t *testing.T) {
	hook := NewAccessibleOrgsHook()

	for _, eventType := range []string{orgevents.TypeOrganizationDeleted, orgevents.TypeOrganizationCreated} {
		tx := &hookTx{}
		evt := hookEvent(orgevents.StreamTypeOrganization, eventType)
		require.NoError(t, hook.Sync(context.Background(), tx, evt))

		// No per-user lookup: the whole tenant is rebuilt in one statement.
		require.Len(t, tx.execs, 1, eventType)
		assert.Contains(t, tx.execs[0], "accessible_org_ids")
		assert.Contains(t, tx.execs[0], "WHERE u.tenant_id = $1")
	}
}

func TestAccessibleOrgsHook_RejectsForeignStreams(t *testing.T) {
	hook := NewAccessibleOrgsHook()
	evt := hookEvent("contact", "contact.created")
	require.Error(t, hook.Sync(context.Background(), &hookTx{}, evt))
}
