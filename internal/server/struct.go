package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gearsage/gearsage-go/internal/recommend"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. Must be
	// long enough for a full retrieve+generate round trip.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Registry receives the server's Prometheus metrics. If nil, the default
	// registry is used. Tests inject a fresh one to stay hermetic.
	Registry *prometheus.Registry
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 5 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 10 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
}

// recommender is the interface handleRecommend calls to answer a query.
// *recommend.Recommender satisfies it; tests inject a fake.
type recommender interface {
	Recommend(ctx context.Context, query string, k int) (*recommend.Response, error)
}

// Server is the HTTP server that exposes the recommendation pipeline.
type Server struct {
	// rec answers recommendation queries.
	rec recommender
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// metrics holds the Prometheus instruments owned by this instance.
	metrics *serverMetrics
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// recommendRequest is the JSON body for POST /api/recommend.
type recommendRequest struct {
	// Query is the user's natural language product question.
	Query string `json:"query"`
	// TopK is the number of products to ground the answer in. Optional;
	// the server default applies when zero.
	TopK int `json:"top_k,omitempty"`
}

// errorResponse is the JSON body returned on handler failure.
type errorResponse struct {
	// Error is the human-readable failure description.
	Error string `json:"error"`
}
