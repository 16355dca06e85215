// Package metrics holds the Prometheus collectors for the onboarding
// service. Collectors are registered on the default registry at init.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "onboard"

// HTTP
var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		},
		[]string{"route", "method", "code"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method", "code"},
	)

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "HTTP requests currently being served.",
	})
)

// External calls (CRM, email providers, object storage)
var (
	externalCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "calls_total",
			Help:      "Outbound calls by target, operation and outcome.",
		},
		[]string{"target", "operation", "outcome"},
	)

	externalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "call_duration_seconds",
			Help:      "Outbound call latency including retries.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"target", "operation"},
	)
)

// Domain
var (
	InvitationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invitations",
			Name:      "transitions_total",
			Help:      "Invitation status transitions by resulting status.",
		},
		[]string{"status"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Inbound webhook deliveries by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	TasksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "dropped_total",
			Help:      "Best-effort tasks dropped because the queue was full or closed.",
		},
		[]string{"task"},
	)

	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "completed_total",
			Help:      "Best-effort tasks run to completion by outcome.",
		},
		[]string{"task", "outcome"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter, by route.",
		},
		[]string{"route"},
	)
)

// Outcome buckets an error into a low cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalid):
		return "invalid"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// ObserveExternal records one logical outbound call started at start.
func ObserveExternal(target, operation string, start time.Time, err error) {
	externalCalls.WithLabelValues(target, operation, Outcome(err)).Inc()
	externalDuration.WithLabelValues(target, operation).Observe(time.Since(start).Seconds())
}

// Instrument wraps next with request counting and latency for route. The
// route is the pattern, not the raw path, to keep cardinality bounded.
func Instrument(route string, next http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}

	return promhttp.InstrumentHandlerInFlight(httpInFlight,
		promhttp.InstrumentHandlerDuration(httpDuration.MustCurryWith(labels),
			promhttp.InstrumentHandlerCounter(httpRequests.MustCurryWith(labels), next),
		),
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
