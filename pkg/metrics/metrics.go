// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TurnsTotal tracks orchestrated turns by conversation kind and outcome.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turns_total",
			Help: "Total orchestrated turns",
		},
		[]string{"kind", "outcome"},
	)

	// TurnDuration tracks end-to-end turn duration.
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turn_duration_seconds",
			Help:    "End-to-end orchestrated turn duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"kind"},
	)

	// ModelCallDuration tracks model call duration per protocol phase.
	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_call_duration_seconds",
			Help:    "Model service call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "phase", "status"},
	)

	// ToolDispatchTotal tracks tool dispatches by outcome.
	ToolDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tool_dispatch_total",
			Help: "Total tool dispatches",
		},
		[]string{"tool", "outcome"},
	)

	// UnknownToolRequests tracks model call requests naming tools
	// outside the whitelist. Security relevant.
	UnknownToolRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unknown_tool_requests_total",
			Help: "Model call requests for unregistered tools",
		},
	)

	// ConversationsTotal tracks conversations created.
	ConversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
		[]string{"kind"},
	)

	// MessagesTotal tracks messages persisted.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages persisted",
		},
		[]string{"role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordModelCall records one model service call.
func RecordModelCall(provider, phase, status string, duration float64) {
	ModelCallDuration.WithLabelValues(provider, phase, status).Observe(duration)
}

// RecordToolDispatch records one tool dispatch outcome.
func RecordToolDispatch(toolName, outcome string) {
	ToolDispatchTotal.WithLabelValues(toolName, outcome).Inc()
}

// RecordTurn records one finalized turn.
func RecordTurn(kind, outcome string, duration float64) {
	TurnsTotal.WithLabelValues(kind, outcome).Inc()
	TurnDuration.WithLabelValues(kind).Observe(duration)
}
