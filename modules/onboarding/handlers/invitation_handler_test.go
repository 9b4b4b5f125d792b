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

	"github.com/solumhq/casedesk/modules/onboarding/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/scope"
)

type recordingTx struct {
	execs []string
}

func (f *recordingTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *recordingTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("recordingTx: Query not supported")
}

func (f *recordingTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("recordingTx: QueryRow not supported")
}

func invitationEvent(t *testing.T, eventType string, payload any) *eventstore.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &eventstore.Event{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		StreamID:      uuid.New(),
		StreamType:    events.StreamTypeInvitation,
		StreamVersion: 1,
		EventType:     eventType,
		EventData:     data,
		CreatedAt:     time.Now(),
	}
}

func TestInvitationHandler_TransitionsAreStatusGuarded(t *testing.T) {
	h := NewInvitationHandler()
	tx := &recordingTx{}

	created := invitationEvent(t, events.TypeInvitationCreated, events.InvitationCreated{
		ID:        uuid.New(),
		Email:     "new.hire@example.com",
		RoleID:    uuid.New(),
		Scope:     scope.MustParse("acme.west"),
		ExpiresAt: time.Now().Add(72 * time.Hour),
	})
	require.NoError(t, h.Apply(context.Background(), tx, created))

	sent := invitationEvent(t, events.TypeInvitationSent, nil)
	require.NoError(t, h.Apply(context.Background(), tx, sent))

	accepted := invitationEvent(t, events.TypeInvitationAccepted, events.InvitationAccepted{UserID: uuid.New()})
	require.NoError(t, h.Apply(context.Background(), tx, accepted))

	require.Len(t, tx.execs, 3)
	assert.Contains(t, tx.execs[0], "ON CONFLICT (id) DO NOTHING")
	assert.Contains(t, tx.execs[1], "WHERE id = $1 AND status = 'pending'")
	assert.Contains(t, tx.execs[2], "status IN ('pending', 'sent')")
}

func TestInvitationHandler_UnknownEventTypeErrors(t *testing.T) {
	evt := invitationEvent(t, "invitation.framed", nil)
	err := NewInvitationHandler().Apply(context.Background(), &recordingTx{}, evt)
	require.Error(t, err)
}
