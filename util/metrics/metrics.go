// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		},
		[]string{"route", "method", "code"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	SignInsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_sign_ins_total",
			Help: "Sign-in attempts by outcome.",
		},
		[]string{"outcome"},
	)

	RecordOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_record_operations_total",
			Help: "Record gateway calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	RateLimitHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_rate_limit_hits_total",
			Help: "Requests rejected by the login rate limiter.",
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "portal_active_sessions",
			Help: "Sessions currently tracked by the auth gateway.",
		},
	)

	// Registry is the registry served by the metrics endpoint. A dedicated
	// registry keeps test binaries free of global registration clashes.
	Registry = prometheus.NewRegistry()
)

func init() {
	Registry.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SignInsTotal,
		RecordOpsTotal,
		RateLimitHits,
		ActiveSessions,
	)
}

// Outcome labels a call result.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
