// Package engine delivers queue entries to the external workflow engine
// over HTTP. A non-2xx response is a dispatch failure; the relay owns
// retries and backoff.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/solumhq/casedesk/pkg/outbox"
)

type Dispatcher struct {
	baseURL string
	token   string
	client  *http.Client
}

type Option func(*Dispatcher)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = c
	}
}

func WithBearerToken(token string) Option {
	return func(d *Dispatcher) {
		d.token = token
	}
}

func New(baseURL string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg outbox.DispatchedMessage) error {
	url := fmt.Sprintf("%s/v1/topics/%s", d.baseURL, msg.Meta.Topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(msg.Payload))
	if err != nil {
		return fmt.Errorf("engine dispatch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", msg.Meta.EntryID.String())
	req.Header.Set("X-Tenant-ID", msg.Meta.TenantID.String())
	req.Header.Set("X-Workflow-ID", msg.Meta.WorkflowID.String())
	if msg.Meta.TraceParent != "" {
		req.Header.Set("traceparent", msg.Meta.TraceParent)
	}
	if msg.Meta.TraceState != "" {
		req.Header.Set("tracestate", msg.Meta.TraceState)
	}
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("engine dispatch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("engine dispatch: %s returned %d: %s", url, resp.StatusCode, body)
	}
	return nil
}
