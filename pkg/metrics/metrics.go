// Package metrics exposes Prometheus instrumentation for the tool
// dispatch path.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

type PrometheusMetrics struct {
	toolCalls    *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

// NewPrometheusMetrics registers the dispatch metrics with registerer,
// falling back to the default registerer when nil.
func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcp_tool_calls_total",
				Help: "Total number of dispatched tool calls",
			},
			[]string{"tool", "status"},
		),
		callDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcp_tool_call_duration_seconds",
				Help:    "Duration of tool calls in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tool"},
		),
	}
}

// ObserveToolCall records one dispatched call. The status is "success" or
// the error kind.
func (p *PrometheusMetrics) ObserveToolCall(toolName, status string, elapsed time.Duration) {
	p.toolCalls.WithLabelValues(toolName, status).Inc()
	p.callDuration.WithLabelValues(toolName).Observe(elapsed.Seconds())
}

var _ tool.Observer = (*PrometheusMetrics)(nil)
