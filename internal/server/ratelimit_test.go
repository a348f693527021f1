package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gearsage/gearsage-go/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func Test_RateLimit_BurstThenReject(t *testing.T) {
	t.Parallel()
	rl, stop := newRateLimiter(1, 3, logging.New())
	defer stop()
	h := rl.middleware(okHandler())

	for i := range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/recommend", nil)
		req.RemoteAddr = "10.0.0.1:55000"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d within burst: status = %d, want 200", i, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/recommend", nil)
	req.RemoteAddr = "10.0.0.1:55000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("over burst: status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
}

// Each client IP gets an independent bucket.
func Test_RateLimit_PerIP(t *testing.T) {
	t.Parallel()
	rl, stop := newRateLimiter(1, 1, logging.New())
	defer stop()
	h := rl.middleware(okHandler())

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/recommend", nil)
		req.RemoteAddr = ip + ":55000"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if got := send("10.0.0.1"); got != http.StatusOK {
		t.Fatalf("first ip first request: %d", got)
	}
	if got := send("10.0.0.1"); got != http.StatusTooManyRequests {
		t.Fatalf("first ip second request: %d, want 429", got)
	}
	if got := send("10.0.0.2"); got != http.StatusOK {
		t.Fatalf("second ip must not share the first ip's bucket: %d", got)
	}
}

func Test_RateLimit_Eviction(t *testing.T) {
	t.Parallel()
	rl, stop := newRateLimiter(1, 1, logging.New())
	defer stop()

	rl.getLimiter("10.0.0.1")
	rl.getLimiter("10.0.0.2")

	rl.mu.Lock()
	rl.limiters["10.0.0.1"].lastSeen = time.Now().Add(-10 * time.Minute)
	rl.mu.Unlock()

	rl.evict()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.limiters["10.0.0.1"]; ok {
		t.Error("stale entry not evicted")
	}
	if _, ok := rl.limiters["10.0.0.2"]; !ok {
		t.Error("fresh entry wrongly evicted")
	}
}

func Test_ClientIP(t *testing.T) {
	t.Parallel()
	tests := []struct {
		addr string
		want string
	}{
		{"10.0.0.1:55000", "10.0.0.1"},
		{"[::1]:55000", "[::1]"},
		{"noport", "noport"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.addr
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
