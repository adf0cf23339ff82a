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
			Name:    "specky_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specky_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// CompletionDuration tracks completion round trips to the model provider.
	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "specky_completion_duration_seconds",
			Help:    "Completion request duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specky_llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// TurnsTotal tracks turns appended to conversations.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specky_turns_total",
			Help: "Total conversation turns appended",
		},
		[]string{"speaker"},
	)

	// CannedRepliesTotal tracks replies produced by the guided dialogue.
	CannedRepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specky_canned_replies_total",
			Help: "Replies answered locally by the guided dialogue",
		},
		[]string{"state"},
	)

	// DuplicateRequestsTotal counts submissions dropped because the session was busy.
	DuplicateRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "specky_duplicate_requests_total",
			Help: "Submissions ignored while a completion was in flight",
		},
	)

	// PendingSessions tracks sessions waiting for a completion.
	PendingSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "specky_pending_sessions",
			Help: "Number of sessions with a completion in flight",
		},
	)

	// ContextCharsDiscarded counts characters pruned to fit the context window.
	ContextCharsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "specky_context_chars_discarded_total",
			Help: "Characters discarded from outbound requests to fit the token budget",
		},
	)

	// EventsPublished tracks session events sent to NATS.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specky_events_published_total",
			Help: "Session events published to NATS",
		},
		[]string{"type", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordCompletion records metrics for a completion round trip.
func RecordCompletion(provider, model, status string, duration float64, tokensIn, tokensOut int) {
	CompletionDuration.WithLabelValues(provider, status).Observe(duration)
	if model == "" {
		return
	}
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordTurn counts one appended turn.
func RecordTurn(assistant bool) {
	speaker := "user"
	if assistant {
		speaker = "assistant"
	}
	TurnsTotal.WithLabelValues(speaker).Inc()
}
