package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestObserveToolCallRegistersSeries(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPrometheusMetrics(registry)

	m.ObserveToolCall("execute_sql", "success", 25*time.Millisecond)
	m.ObserveToolCall("execute_sql", "backend_execution_error", 5*time.Millisecond)
	m.ObserveToolCall("get_current_time", "success", time.Millisecond)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	got := map[string]bool{}
	for _, fam := range families {
		got[fam.GetName()] = true
	}
	for _, want := range []string{"mcp_tool_calls_total", "mcp_tool_call_duration_seconds"} {
		if !got[want] {
			t.Fatalf("metric %q not registered, have %v", want, got)
		}
	}
}

func TestNilRegistererFallsBackToDefault(t *testing.T) {
	// Uses the process-wide default registerer, so observe with label
	// values unique to this test to avoid clashing with other tests.
	m := NewPrometheusMetrics(nil)
	m.ObserveToolCall("fallback_probe", "success", time.Millisecond)
}
