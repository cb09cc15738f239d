package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// okHandler is a trivial handler used to verify that allowed requests reach
// the downstream handler.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func limitedRequest(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	t.Parallel()

	h := newRateLimiter(100, 5, slog.Default()).middleware(okHandler)
	for i := range 5 {
		if w := limitedRequest(h, "127.0.0.1:12345"); w.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

// TestRateLimit_RejectsOverBurst exhausts a burst of 2 at a negligible refill
// rate; the third request must be rejected with a JSON body and a whole-second
// Retry-After.
func TestRateLimit_RejectsOverBurst(t *testing.T) {
	t.Parallel()

	h := newRateLimiter(0.001, 2, slog.Default()).middleware(okHandler)
	limitedRequest(h, "10.0.0.1:9999")
	limitedRequest(h, "10.0.0.1:9999")

	w := limitedRequest(h, "10.0.0.1:9999")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || secs < 1 {
		t.Errorf("Retry-After = %q, want a positive integer", w.Header().Get("Retry-After"))
	}
	if env := decodeEnvelope(t, w); env.Status != "error" {
		t.Errorf("status = %q, want error", env.Status)
	}
}

// TestRateLimit_RejectedRequestsDoNotConsume verifies a rejected request
// leaves the bucket untouched, so rejections do not push recovery further out.
func TestRateLimit_RejectedRequestsDoNotConsume(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(1000, 1, slog.Default())
	h := rl.middleware(okHandler)

	limitedRequest(h, "10.0.0.3:1")
	for range 3 {
		limitedRequest(h, "10.0.0.3:1")
	}
	time.Sleep(5 * time.Millisecond)
	if w := limitedRequest(h, "10.0.0.3:1"); w.Code != http.StatusOK {
		t.Errorf("expected recovery after refill, got %d", w.Code)
	}
}

func TestRateLimit_PerClientIsolation(t *testing.T) {
	t.Parallel()

	h := newRateLimiter(0.001, 1, slog.Default()).middleware(okHandler)
	for range 5 {
		limitedRequest(h, "192.168.1.1:1111")
	}
	if w := limitedRequest(h, "192.168.1.2:2222"); w.Code != http.StatusOK {
		t.Errorf("second client: expected 200, got %d", w.Code)
	}
	// Same IP on another port shares the bucket.
	if w := limitedRequest(h, "192.168.1.1:3333"); w.Code != http.StatusTooManyRequests {
		t.Errorf("same IP new port: expected 429, got %d", w.Code)
	}
}

func TestRateLimit_BucketReused(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(1, 1, slog.Default())
	if rl.bucket("a") != rl.bucket("a") {
		t.Error("expected the same bucket for the same client")
	}
	if rl.bucket("a") == rl.bucket("b") {
		t.Error("expected distinct buckets for distinct clients")
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		delay time.Duration
		want  int
	}{
		{0, 0},
		{10 * time.Millisecond, 1},
		{1500 * time.Millisecond, 2},
		{2 * time.Second, 2},
		{3 * time.Hour, 3600},
	}
	for _, tc := range cases {
		if got := retryAfterSeconds(tc.delay); got != tc.want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", tc.delay, got, tc.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		remoteAddr string
		wantIP     string
	}{
		{"127.0.0.1:54321", "127.0.0.1"},
		{"10.0.0.1:80", "10.0.0.1"},
		{"[::1]:8080", "::1"},
		{"noport", "noport"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remoteAddr
		if got := clientIP(req); got != tc.wantIP {
			t.Errorf("remoteAddr=%q: expected %q, got %q", tc.remoteAddr, tc.wantIP, got)
		}
	}
}
