package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/solumhq/casedesk/pkg/outbox"
)

func TestDispatch_SetsDeliveryHeaders(t *testing.T) {
	t.Parallel()

	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	msg := outbox.DispatchedMessage{
		Payload: json.RawMessage(`{"step":"init"}`),
		Meta: outbox.Meta{
			TenantID:    uuid.New(),
			WorkflowID:  uuid.New(),
			EntryID:     uuid.New(),
			Topic:       "case.bootstrap",
			TraceParent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
			TraceState:  "congo=t61rcWkgMzE",
		},
	}

	d := New(srv.URL, WithBearerToken("secret"))
	if err := d.Dispatch(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	if got.URL.Path != "/v1/topics/case.bootstrap" {
		t.Fatalf("unexpected path %s", got.URL.Path)
	}
	checks := map[string]string{
		"Idempotency-Key": msg.Meta.EntryID.String(),
		"X-Tenant-ID":     msg.Meta.TenantID.String(),
		"X-Workflow-ID":   msg.Meta.WorkflowID.String(),
		"Traceparent":     msg.Meta.TraceParent,
		"Tracestate":      msg.Meta.TraceState,
		"Authorization":   "Bearer secret",
	}
	for header, want := range checks {
		if v := got.Header.Get(header); v != want {
			t.Fatalf("header %s = %q, want %q", header, v, want)
		}
	}
}

func TestDispatch_Non2xxIsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine saturated", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := New(srv.URL)
	err := d.Dispatch(context.Background(), outbox.DispatchedMessage{Meta: outbox.Meta{Topic: "case.bootstrap"}})
	if err == nil {
		t.Fatal("expected dispatch failure for 503")
	}
}

func TestDispatch_OmitsTraceHeadersWhenAbsent(t *testing.T) {
	t.Parallel()

	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(srv.URL)
	if err := d.Dispatch(context.Background(), outbox.DispatchedMessage{Meta: outbox.Meta{Topic: "case.bootstrap"}}); err != nil {
		t.Fatal(err)
	}
	if _, ok := got["Traceparent"]; ok {
		t.Fatal("traceparent header set without trace context")
	}
	if _, ok := got["Tracestate"]; ok {
		t.Fatal("tracestate header set without trace context")
	}
}
