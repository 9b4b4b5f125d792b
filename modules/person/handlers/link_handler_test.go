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

	"github.com/solumhq/casedesk/modules/person/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
)

type recordingTx struct {
	execs []string
	args  [][]any
}

func (f *recordingTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *recordingTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("recordingTx: Query not supported")
}

func (f *recordingTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("recordingTx: QueryRow not supported")
}

func linkEvent(t *testing.T, streamType, eventType string, payload any) *eventstore.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &eventstore.Event{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		StreamID:      uuid.New(),
		StreamType:    streamType,
		StreamVersion: 1,
		EventType:     eventType,
		EventData:     data,
		CreatedAt:     time.Now(),
	}
}

func TestLinkHandler_LinkedInsertsJunctionRow(t *testing.T) {
	h := NewLinkHandler()
	tx := &recordingTx{}

	target := uuid.New()
	evt := linkEvent(t, "contact", "contact.organization.linked", events.EntityLinked{
		TargetType: "organization",
		TargetID:   target,
		Kind:       "claimant",
	})
	require.NoError(t, h.Apply(context.Background(), tx, evt))

	require.Len(t, tx.execs, 1)
	assert.Contains(t, tx.execs[0], "INSERT INTO entity_links")
	assert.Contains(t, tx.execs[0], "ON CONFLICT DO NOTHING")
	// Source side comes from the event's own stream.
	assert.Equal(t, evt.StreamType, tx.args[0][1])
	assert.Equal(t, evt.StreamID, tx.args[0][2])
}

func TestLinkHandler_UnlinkedHardDeletes(t *testing.T) {
	h := NewLinkHandler()
	tx := &recordingTx{}

	evt := linkEvent(t, "organization", "organization.contact.unlinked", events.EntityUnlinked{
		TargetType: "contact",
		TargetID:   uuid.New(),
	})
	require.NoError(t, h.Apply(context.Background(), tx, evt))

	require.Len(t, tx.execs, 1)
	assert.Contains(t, tx.execs[0], "DELETE FROM entity_links")
}

func TestLinkHandler_RejectsNonLinkEvents(t *testing.T) {
	h := NewLinkHandler()
	evt := linkEvent(t, "contact", "contact.created", nil)
	err := h.Apply(context.Background(), &recordingTx{}, evt)
	require.Error(t, err)
}

func TestContactHandler_ChildRowsAreKeyedByPayloadIDs(t *testing.T) {
	h := NewContactHandler()
	tx := &recordingTx{}

	phone := linkEvent(t, events.StreamTypeContact, events.TypePhoneAdded, events.PhoneAdded{
		PhoneID: uuid.New(),
		Number:  "+1-202-555-0143",
		Primary: true,
	})
	require.NoError(t, h.Apply(context.Background(), tx, phone))

	removed := linkEvent(t, events.StreamTypeContact, events.TypePhoneRemoved, events.PhoneRemoved{
		PhoneID: uuid.New(),
	})
	require.NoError(t, h.Apply(context.Background(), tx, removed))

	require.Len(t, tx.execs, 2)
	assert.Contains(t, tx.execs[0], "INSERT INTO contact_phones")
	assert.Contains(t, tx.execs[1], "DELETE FROM contact_phones")
}
