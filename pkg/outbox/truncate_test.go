package outbox

import (
	"errors"
	"testing"
)

func TestTruncateErrorClipsEngineResponses(t *testing.T) {
	t.Parallel()

	if got := truncateError(nil, 32); got != "" {
		t.Fatalf("expected empty for nil error, got %q", got)
	}

	err := errors.New("engine dispatch: /v1/topics/case.bootstrap returned 503: engine saturated")
	got := truncateError(err, 32)
	if got != "engine dispatch: /v1/topics/case" {
		t.Fatalf("unexpected clipped error %q", got)
	}
}

func TestTruncateStringKeepsValidUTF8(t *testing.T) {
	t.Parallel()

	// Clipping inside the multi-byte rune drops the whole rune.
	s := "fältet saknas"
	got := truncateString(s, 2)
	if got != "f" {
		t.Fatalf("expected %q, got %q", "f", got)
	}
	if got := truncateString(s, 0); got != "" {
		t.Fatalf("expected empty at zero budget, got %q", got)
	}
	if got := truncateString("ok", 16); got != "ok" {
		t.Fatalf("short strings pass through, got %q", got)
	}
}
