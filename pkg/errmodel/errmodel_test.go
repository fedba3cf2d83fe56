package errmodel

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewAndFrom(t *testing.T) {
	e := InvalidArguments("run_id", "run_id is required")
	if e.Kind != KindInvalidArguments {
		t.Fatalf("unexpected: %#v", e)
	}
	if e.Context["field"] != "run_id" {
		t.Fatalf("context missing field: %#v", e.Context)
	}
	if got := From(e); got != e {
		t.Fatalf("From should return same error instance")
	}
}

func TestFrom_WrappedAndDefaults(t *testing.T) {
	inner := UnknownTool("nope")
	wrapped := fmt.Errorf("dispatch: %w", inner)
	if got := From(wrapped); got.Kind != KindUnknownTool {
		t.Fatalf("wrapped kind=%s want %s", got.Kind, KindUnknownTool)
	}
	if got := From(errors.New("boom")); got.Kind != KindBackendExecutionError {
		t.Fatalf("default kind=%s want %s", got.Kind, KindBackendExecutionError)
	}
	if got := From(context.DeadlineExceeded); got.Kind != KindTimeout {
		t.Fatalf("deadline kind=%s want %s", got.Kind, KindTimeout)
	}
	if got := From(fmt.Errorf("exec: %w", context.DeadlineExceeded)); got.Kind != KindTimeout {
		t.Fatalf("wrapped deadline kind=%s want %s", got.Kind, KindTimeout)
	}
}

func TestTruncation(t *testing.T) {
	long := strings.Repeat("x", 2000)
	e := New(KindBackendExecutionError, long, map[string]any{"stderr": long})
	if len(e.Message) != maxLen {
		t.Fatalf("message len=%d want %d", len(e.Message), maxLen)
	}
	if !strings.HasSuffix(e.Message, "...") {
		t.Fatalf("message not marked truncated")
	}
	if s := e.Context["stderr"].(string); len(s) != maxLen {
		t.Fatalf("context len=%d want %d", len(s), maxLen)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[string]int{
		KindUnknownTool:           404,
		KindInvalidArguments:      400,
		KindAuthenticationFailed:  401,
		KindBackendUnavailable:    502,
		KindBackendExecutionError: 502,
		KindTimeout:               504,
	}
	for kind, want := range cases {
		if got := New(kind, "m", nil).HTTPStatus(); got != want {
			t.Fatalf("%s status=%d want %d", kind, got, want)
		}
	}
}

func TestWriteHTTP_StatusAndEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	WriteHTTP(rr, req, AuthFailed("missing bearer token"))
	if rr.Code != 401 {
		t.Fatalf("status=%d want 401", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"kind":"authentication_failed"`) {
		t.Fatalf("body missing kind: %s", body)
	}
	if !strings.Contains(body, "missing bearer token") {
		t.Fatalf("body missing message: %s", body)
	}
}

func TestIsKind(t *testing.T) {
	if !IsKind(Timeout("obdiag check run", 30*time.Second), KindTimeout) {
		t.Fatalf("expected timeout kind")
	}
	if IsKind(nil, KindTimeout) {
		t.Fatalf("nil should not match any kind")
	}
	if !IsKind(errors.New("plain"), KindBackendExecutionError) {
		t.Fatalf("plain errors normalize to backend_execution_error")
	}
}
