// Package server implements the HTTP server that exposes the recommendation
// pipeline via a small REST API. The server is started by the
// `gearsage serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gearsage/gearsage-go/internal/logging"
	"github.com/gearsage/gearsage-go/internal/recommend"
)

// New constructs a Server from the provided recommender and config.
func New(rec recommender, cfg *Config) (*Server, error) {
	if rec == nil {
		return nil, fmt.Errorf("server: recommender must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Must cover retrieval plus a retried generation round trip.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	metricsHandler := promhttp.Handler()
	if cfg.Registry != nil {
		registerer = cfg.Registry
		metricsHandler = promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})
	}

	s := &Server{
		rec:     rec,
		cfg:     cfg,
		log:     cfg.Logger,
		metrics: newServerMetrics(registerer),
		pingers: cfg.Pingers,
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		cfg.Logger.Warn("server: GEARSAGE_API_KEY not set — API authentication is disabled")
	}

	protect := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/recommend", protect("recommend", s.handleRecommend))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", metricsHandler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(cfg.Logger, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler exposes the fully wired HTTP handler. Tests drive it with httptest
// without binding a port.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleRecommend handles POST /api/recommend. The response is the full
// recommend.Response JSON, including provenance ids and the low-confidence
// flag, so API callers get the same contract as the CLI.
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.recommendRequestsTotal.WithLabelValues(outcomeBadRequest).Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Query == "" {
		s.metrics.recommendRequestsTotal.WithLabelValues(outcomeBadRequest).Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}

	resp, err := s.rec.Recommend(r.Context(), req.Query, req.TopK)
	if err != nil {
		outcome, status := classifyFailure(err)
		s.metrics.recommendRequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.recommendDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		logging.FromContext(r.Context()).Error("recommend failed",
			slog.String("outcome", outcome),
			slog.Any("error", err),
		)
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	outcome := outcomeOK
	if resp.LowConfidence {
		outcome = outcomeLowConfidence
	}
	s.metrics.recommendRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.recommendDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, resp)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// classifyFailure maps a pipeline error to a metrics outcome label and HTTP
// status. Rate limiting surfaces as 429 so clients back off; timeouts as 504;
// everything else as 502 — the backend, not this server, failed.
func classifyFailure(err error) (outcome string, status int) {
	var ge *recommend.GenerationError
	if errors.As(err, &ge) {
		switch ge.Kind {
		case recommend.GenerationRateLimited:
			return outcomeRateLimited, http.StatusTooManyRequests
		case recommend.GenerationTimeout:
			return outcomeTimeout, http.StatusGatewayTimeout
		default:
			return outcomeError, http.StatusBadGateway
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return outcomeTimeout, http.StatusGatewayTimeout
	}
	return outcomeError, http.StatusBadGateway
}

// writeJSON serializes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
