package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/serrors"
)

// AdminController exposes the event-log triage endpoints: listing events the
// projection router has not applied and retrying, dismissing or undismissing
// individual failures. It is meant to sit on an operator-only listener, not
// the public API.
type AdminController struct {
	store *eventstore.Store
	admin *eventstore.AdminService
	log   *logrus.Logger
}

func NewAdminController(store *eventstore.Store, admin *eventstore.AdminService, log *logrus.Logger) *AdminController {
	return &AdminController{store: store, admin: admin, log: log}
}

func (c *AdminController) Register(r *mux.Router) {
	s := r.PathPrefix("/admin/events").Subrouter()
	s.HandleFunc("/unprocessed", c.listUnprocessed).Methods(http.MethodGet)
	s.HandleFunc("/failed", c.listFailed).Methods(http.MethodGet)
	s.HandleFunc("/{id}/retry", c.retry).Methods(http.MethodPost)
	s.HandleFunc("/{id}/dismiss", c.dismiss).Methods(http.MethodPost)
	s.HandleFunc("/{id}/undismiss", c.undismiss).Methods(http.MethodPost)
}

// eventView is the wire shape for one log row. Payload and metadata are
// passed through as raw JSON rather than re-encoded.
type eventView struct {
	ID              uuid.UUID       `json:"id"`
	SequenceNumber  int64           `json:"sequence_number"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	StreamID        uuid.UUID       `json:"stream_id"`
	StreamType      string          `json:"stream_type"`
	StreamVersion   int64           `json:"stream_version"`
	EventType       string          `json:"event_type"`
	EventData       json.RawMessage `json:"event_data"`
	CreatedAt       time.Time       `json:"created_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	ProcessingError *string         `json:"processing_error,omitempty"`
	DismissedAt     *time.Time      `json:"dismissed_at,omitempty"`
	DismissReason   *string         `json:"dismiss_reason,omitempty"`
}

func toEventViews(events []*eventstore.Event) []eventView {
	out := make([]eventView, 0, len(events))
	for _, evt := range events {
		out = append(out, eventView{
			ID:              evt.ID,
			SequenceNumber:  evt.SequenceNumber,
			TenantID:        evt.TenantID,
			StreamID:        evt.StreamID,
			StreamType:      evt.StreamType,
			StreamVersion:   evt.StreamVersion,
			EventType:       evt.EventType,
			EventData:       evt.EventData,
			CreatedAt:       evt.CreatedAt,
			ProcessedAt:     evt.ProcessedAt,
			ProcessingError: evt.ProcessingError,
			DismissedAt:     evt.DismissedAt,
			DismissReason:   evt.DismissReason,
		})
	}
	return out
}

func (c *AdminController) listUnprocessed(w http.ResponseWriter, r *http.Request) {
	c.list(w, r, c.store.FindUnprocessed)
}

func (c *AdminController) listFailed(w http.ResponseWriter, r *http.Request) {
	c.list(w, r, c.store.FindFailed)
}

func (c *AdminController) list(w http.ResponseWriter, r *http.Request, find func(ctx context.Context, f eventstore.Filter) ([]*eventstore.Event, error)) {
	f, err := parseFilter(r)
	if err != nil {
		_ = WriteError(w, http.StatusBadRequest, "ADMIN_BAD_FILTER", err.Error(), nil)
		return
	}
	events, err := find(r.Context(), f)
	if err != nil {
		c.writeFailure(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"events": toEventViews(events)})
}

func (c *AdminController) retry(w http.ResponseWriter, r *http.Request) {
	eventID, actor, ok := c.idAndActor(w, r)
	if !ok {
		return
	}
	evt, err := c.admin.Retry(r.Context(), eventID, actor)
	if err != nil {
		c.writeFailure(w, r, err)
		return
	}
	views := toEventViews([]*eventstore.Event{evt})
	_ = WriteJSON(w, http.StatusOK, views[0])
}

func (c *AdminController) dismiss(w http.ResponseWriter, r *http.Request) {
	eventID, actor, ok := c.idAndActor(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		_ = WriteError(w, http.StatusBadRequest, "ADMIN_BAD_BODY", "request body must be JSON with a reason field", nil)
		return
	}
	if err := c.admin.Dismiss(r.Context(), eventID, actor, body.Reason); err != nil {
		c.writeFailure(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusNoContent, nil)
}

func (c *AdminController) undismiss(w http.ResponseWriter, r *http.Request) {
	eventID, actor, ok := c.idAndActor(w, r)
	if !ok {
		return
	}
	if err := c.admin.Undismiss(r.Context(), eventID, actor); err != nil {
		c.writeFailure(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusNoContent, nil)
}

// idAndActor pulls the event id from the path and the acting operator from
// the X-Actor-ID header. Both are required for the mutating endpoints so the
// audit trail names a real actor.
func (c *AdminController) idAndActor(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	eventID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		_ = WriteError(w, http.StatusBadRequest, "ADMIN_BAD_EVENT_ID", "event id must be a UUID", nil)
		return uuid.Nil, uuid.Nil, false
	}
	actor, err := uuid.Parse(r.Header.Get("X-Actor-ID"))
	if err != nil {
		_ = WriteError(w, http.StatusBadRequest, "ADMIN_MISSING_ACTOR", "X-Actor-ID header must carry the operator's UUID", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return eventID, actor, true
}

func (c *AdminController) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var base *serrors.BaseError
	if errors.As(err, &base) {
		status := http.StatusConflict
		if errors.Is(err, eventstore.ErrEventNotFound) {
			status = http.StatusNotFound
		}
		_ = WriteError(w, status, base.Code, base.Message, base.TemplateData)
		return
	}
	c.log.WithError(err).WithField("path", r.URL.Path).Error("admin endpoint failed")
	_ = WriteError(w, http.StatusInternalServerError, "ADMIN_INTERNAL", "internal error", nil)
}

func parseFilter(r *http.Request) (eventstore.Filter, error) {
	var f eventstore.Filter
	q := r.URL.Query()

	if v := q.Get("tenant_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, errors.New("tenant_id must be a UUID")
		}
		f.TenantID = id
	}
	f.EventType = q.Get("event_type")
	for param, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		if v := q.Get(param); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, errors.New(param + " must be RFC 3339")
			}
			*dst = ts
		}
	}
	if v := q.Get("include_dismissed"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("include_dismissed must be a boolean")
		}
		f.IncludeDismissed = include
	}
	f.Limit = 100
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 1000 {
			return f, errors.New("limit must be between 1 and 1000")
		}
		f.Limit = limit
	}
	return f, nil
}
