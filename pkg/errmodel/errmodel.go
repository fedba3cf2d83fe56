// Package errmodel defines the compact structured error that every tool
// call result and HTTP error response carries. Errors are classified by a
// small fixed set of kinds so clients can branch on the kind without
// parsing messages.
package errmodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Error kinds. The set is closed: every failure surfaced to a client maps
// onto exactly one of these.
const (
	KindUnknownTool           = "unknown_tool"
	KindInvalidArguments      = "invalid_arguments"
	KindAuthenticationFailed  = "authentication_failed"
	KindBackendUnavailable    = "backend_unavailable"
	KindBackendExecutionError = "backend_execution_error"
	KindTimeout               = "timeout"
)

// maxLen bounds message and context strings so error payloads stay small
// on the wire.
const maxLen = 512

// Error is a structured, JSON-serializable error.
type Error struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	Causes  []Error        `json:"causes,omitempty"`
}

// New constructs an Error, truncating the message and context strings.
func New(kind, message string, ctx map[string]any, causes ...Error) *Error {
	e := &Error{
		Kind:    kind,
		Message: truncate(message),
		Context: truncateContext(ctx),
	}
	if len(causes) > 0 {
		e.Causes = causes
	}
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// From normalizes any error into an *Error. Tagged errors pass through,
// context deadline expiry becomes a timeout, everything else is treated as
// a backend execution failure.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(KindTimeout, err.Error(), nil)
	}
	return New(KindBackendExecutionError, err.Error(), nil)
}

// UnknownTool reports a tool name absent from the registry.
func UnknownTool(name string) *Error {
	return New(KindUnknownTool, fmt.Sprintf("unknown tool %q", name), map[string]any{"tool": name})
}

// InvalidArguments reports a schema violation on the named field.
func InvalidArguments(field, message string) *Error {
	return New(KindInvalidArguments, message, map[string]any{"field": field})
}

// AuthFailed reports a missing or unrecognized bearer token.
func AuthFailed(message string) *Error {
	return New(KindAuthenticationFailed, message, nil)
}

// Unavailable reports that the backend could not be reached at all.
func Unavailable(backend string, cause error) *Error {
	ctx := map[string]any{"backend": backend}
	if cause != nil {
		return New(KindBackendUnavailable, cause.Error(), ctx)
	}
	return New(KindBackendUnavailable, backend+" unavailable", ctx)
}

// Execution reports a call the backend accepted and then failed.
func Execution(message string, ctx map[string]any) *Error {
	return New(KindBackendExecutionError, message, ctx)
}

// Timeout reports an operation that exceeded its wall-clock bound.
func Timeout(op string, limit time.Duration) *Error {
	return New(KindTimeout, fmt.Sprintf("%s exceeded %s", op, limit), map[string]any{"op": op})
}

// HTTPStatus maps the kind to an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindUnknownTool:
		return http.StatusNotFound
	case KindInvalidArguments:
		return http.StatusBadRequest
	case KindAuthenticationFailed:
		return http.StatusUnauthorized
	case KindBackendUnavailable, KindBackendExecutionError:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteHTTP writes err as a JSON envelope {"error": ..., "trace_id": ...}
// with the status implied by its kind.
func WriteHTTP(w http.ResponseWriter, r *http.Request, err error) {
	ce := From(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ce.HTTPStatus())
	payload := map[string]any{"error": ce}
	if span := trace.SpanFromContext(r.Context()); span.SpanContext().IsValid() {
		payload["trace_id"] = span.SpanContext().TraceID().String()
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// IsKind reports whether err normalizes to the given kind.
func IsKind(err error, kind string) bool {
	if err == nil {
		return false
	}
	return From(err).Kind == kind
}

func truncate(s string) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func truncateContext(ctx map[string]any) map[string]any {
	if len(ctx) == 0 {
		return nil
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if s, ok := v.(string); ok && len(s) > maxLen {
			out[k] = truncate(s)
			continue
		}
		out[k] = v
	}
	return out
}
