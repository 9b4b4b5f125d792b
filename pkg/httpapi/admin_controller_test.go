package httpapi

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solumhq/casedesk/pkg/eventstore"
)

func TestParseFilter(t *testing.T) {
	tenantID := uuid.New()
	r := httptest.NewRequest("GET",
		"/admin/events/failed?tenant_id="+tenantID.String()+
			"&event_type=case.created&from=2026-08-01T00:00:00Z&include_dismissed=true&limit=25", nil)

	f, err := parseFilter(r)
	require.NoError(t, err)
	assert.Equal(t, tenantID, f.TenantID)
	assert.Equal(t, "case.created", f.EventType)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), f.From)
	assert.True(t, f.IncludeDismissed)
	assert.Equal(t, 25, f.Limit)
}

func TestParseFilter_Defaults(t *testing.T) {
	f, err := parseFilter(httptest.NewRequest("GET", "/admin/events/unprocessed", nil))
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, f.TenantID)
	assert.False(t, f.IncludeDismissed)
	assert.Equal(t, 100, f.Limit)
}

func TestParseFilter_Rejections(t *testing.T) {
	for _, query := range []string{
		"tenant_id=not-a-uuid",
		"from=yesterday",
		"include_dismissed=maybe",
		"limit=0",
		"limit=5000",
	} {
		_, err := parseFilter(httptest.NewRequest("GET", "/admin/events/failed?"+query, nil))
		assert.Error(t, err, query)
	}
}

func TestIdAndActor_RequiresEventID(t *testing.T) {
	c := NewAdminController(nil, nil, logrus.New())

	r := httptest.NewRequest("POST", "/admin/events/"+uuid.NewString()+"/retry", nil)
	w := httptest.NewRecorder()
	_, _, ok := c.idAndActor(w, r)
	assert.False(t, ok)
	assert.Equal(t, 400, w.Code)

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "ADMIN_BAD_EVENT_ID", envelope.Code)
}

func TestWriteFailure_MapsCodedErrors(t *testing.T) {
	log := logrus.New()
	c := NewAdminController(nil, nil, log)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/admin/events/x/retry", nil)
	c.writeFailure(w, r, eventstore.ErrEventNotFound.WithTemplateData(map[string]string{"event_id": "e-1"}))
	assert.Equal(t, 404, w.Code)

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, eventstore.ErrEventNotFound.Code, envelope.Code)
	assert.Equal(t, "e-1", envelope.Meta["event_id"])

	w = httptest.NewRecorder()
	c.writeFailure(w, r, assert.AnError)
	assert.Equal(t, 500, w.Code)
}
