package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/54b3r/ragagent-go/internal/version"
)

// fakePinger is a test double for the Pinger interface.
type fakePinger struct {
	name  string
	err   error
	delay time.Duration
}

func (f *fakePinger) Name() string { return f.name }

func (f *fakePinger) Ping(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer(nil)
	w := httptest.NewRecorder()
	s.handleHealth(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d, body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}

	var body healthResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status: expected %q, got %q", "ok", body.Status)
	}
	if body.Version != version.Version {
		t.Errorf("version: expected %q, got %q", version.Version, body.Version)
	}
	if body.Backend != "vertex" {
		t.Errorf("backend: expected vertex, got %q", body.Backend)
	}
	if body.Uptime == "" {
		t.Error("expected a non-empty uptime")
	}
}

// TestHandleHealth_IgnoresPingers verifies liveness stays 200 while every
// dependency is down.
func TestHandleHealth_IgnoresPingers(t *testing.T) {
	t.Parallel()

	s := newTestServer(nil)
	s.pingers = []Pinger{&fakePinger{name: "vertex", err: errors.New("down")}}
	w := httptest.NewRecorder()
	s.handleHealth(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		pingers   []Pinger
		wantCode  int
		wantReady bool
		wantOK    []bool
	}{
		{
			name:      "no pingers",
			wantCode:  http.StatusOK,
			wantReady: true,
		},
		{
			name: "all healthy",
			pingers: []Pinger{
				&fakePinger{name: "vertex"},
				&fakePinger{name: "history"},
			},
			wantCode:  http.StatusOK,
			wantReady: true,
			wantOK:    []bool{true, true},
		},
		{
			name: "one failing",
			pingers: []Pinger{
				&fakePinger{name: "vertex"},
				&fakePinger{name: "qdrant", err: errors.New("connection refused")},
			},
			wantCode: http.StatusServiceUnavailable,
			wantOK:   []bool{true, false},
		},
		{
			name: "all failing",
			pingers: []Pinger{
				&fakePinger{name: "vertex", err: errors.New("timeout")},
				&fakePinger{name: "qdrant", err: errors.New("connection refused")},
			},
			wantCode: http.StatusServiceUnavailable,
			wantOK:   []bool{false, false},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(nil)
			s.pingers = tc.pingers
			w := httptest.NewRecorder()
			s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d, body: %s", tc.wantCode, w.Code, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type: expected application/json, got %q", ct)
			}

			var resp readyResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Ready != tc.wantReady {
				t.Errorf("ready = %v, want %v", resp.Ready, tc.wantReady)
			}
			if len(resp.Checks) != len(tc.wantOK) {
				t.Fatalf("expected %d checks, got %d", len(tc.wantOK), len(resp.Checks))
			}
			for i, c := range resp.Checks {
				if c.Name != tc.pingers[i].Name() {
					t.Errorf("check %d: name %q, want %q", i, c.Name, tc.pingers[i].Name())
				}
				if c.OK != tc.wantOK[i] {
					t.Errorf("check %q: ok = %v, want %v", c.Name, c.OK, tc.wantOK[i])
				}
				if c.OK == (c.Error != "") {
					t.Errorf("check %q: ok=%v but error=%q", c.Name, c.OK, c.Error)
				}
			}
		})
	}
}

// TestRunProbes_Concurrent verifies probes overlap: three 100ms probes must
// finish well under their 300ms sequential total.
func TestRunProbes_Concurrent(t *testing.T) {
	t.Parallel()

	pingers := []Pinger{
		&fakePinger{name: "a", delay: 100 * time.Millisecond},
		&fakePinger{name: "b", delay: 100 * time.Millisecond},
		&fakePinger{name: "c", delay: 100 * time.Millisecond},
	}

	start := time.Now()
	checks := runProbes(context.Background(), pingers)
	if elapsed := time.Since(start); elapsed >= 250*time.Millisecond {
		t.Errorf("probes took %v, expected them to run in parallel", elapsed)
	}
	for i, want := range []string{"a", "b", "c"} {
		if checks[i].Name != want || !checks[i].OK {
			t.Errorf("check %d = %+v, want %s ok", i, checks[i], want)
		}
		if checks[i].DurationMS < 90 {
			t.Errorf("check %s duration %dms, want about 100ms", want, checks[i].DurationMS)
		}
	}
}

// TestRunProbes_CancelledContext verifies a cancelled request context fails
// the probes instead of hanging.
func TestRunProbes_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checks := runProbes(ctx, []Pinger{&fakePinger{name: "slow", delay: time.Hour}})
	if checks[0].OK {
		t.Fatal("expected the probe to fail on a cancelled context")
	}
}

func TestServicePinger(t *testing.T) {
	t.Parallel()

	ok := NewServicePinger("vertex", &fakePinger{})
	if ok.Name() != "vertex" {
		t.Errorf("Name() = %q", ok.Name())
	}
	if err := ok.Ping(context.Background()); err != nil {
		t.Errorf("Ping() = %v, want nil", err)
	}

	cause := errors.New("refused")
	bad := NewServicePinger("qdrant", &fakePinger{err: cause})
	if err := bad.Ping(context.Background()); !errors.Is(err, cause) {
		t.Errorf("Ping() = %v, want wrapped %v", err, cause)
	}
}
