// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for recommend request metrics.
const (
	outcomeOK            = "ok"
	outcomeLowConfidence = "low_confidence"
	outcomeBadRequest    = "bad_request"
	outcomeRateLimited   = "rate_limited"
	outcomeTimeout       = "timeout"
	outcomeError         = "error"
)

// labelHandler partitions HTTP metrics by the logical endpoint name rather
// than the raw URL path.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// recommendRequestsTotal counts completed /api/recommend requests,
	// partitioned by outcome.
	recommendRequestsTotal *prometheus.CounterVec

	// recommendDurationSeconds records the wall-clock duration of each
	// /api/recommend request, retrieval and generation included.
	recommendDurationSeconds *prometheus.HistogramVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// httpInFlight tracks the number of requests currently being served,
	// partitioned by handler name.
	httpInFlight *prometheus.GaugeVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		recommendRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gearsage",
			Subsystem: "recommend",
			Name:      "requests_total",
			Help:      "Total number of /api/recommend requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		recommendDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gearsage",
			Subsystem: "recommend",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/recommend requests, retrieval and generation included.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gearsage",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gearsage",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		httpInFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gearsage",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being served, partitioned by handler.",
		}, []string{labelHandler}),
	}
}
