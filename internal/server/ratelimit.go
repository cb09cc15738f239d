package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/54b3r/ragagent-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained requests per second allowed per client
	// when no explicit limit is configured.
	defaultRateLimit = 10

	// defaultRateBurst is the per-client burst when none is configured.
	defaultRateBurst = 20

	// limiterIdleTTL is how long an idle client's bucket is kept. A client
	// returning after that starts with a full bucket.
	limiterIdleTTL = 5 * time.Minute
)

// rateLimiter enforces a per-client token bucket on the protected routes.
// Buckets live in a TTL cache keyed by client IP; the cache's janitor drops
// idle buckets, so memory stays bounded by the number of recent clients.
type rateLimiter struct {
	buckets *cache.Cache
	rps     rate.Limit
	burst   int
	log     *slog.Logger
}

// newRateLimiter builds a limiter allowing rps sustained requests per second
// and burst instantaneous requests per client.
func newRateLimiter(rps float64, burst int, log *slog.Logger) *rateLimiter {
	return &rateLimiter{
		buckets: cache.New(limiterIdleTTL, time.Minute),
		rps:     rate.Limit(rps),
		burst:   burst,
		log:     log,
	}
}

// bucket returns the token bucket for key, creating it on first use. Every
// call pushes the bucket's expiry back by limiterIdleTTL.
func (rl *rateLimiter) bucket(key string) *rate.Limiter {
	if v, ok := rl.buckets.Get(key); ok {
		l := v.(*rate.Limiter)
		rl.buckets.SetDefault(key, l)
		return l
	}
	l := rate.NewLimiter(rl.rps, rl.burst)
	if err := rl.buckets.Add(key, l, cache.DefaultExpiration); err != nil {
		// Lost a race with a concurrent first request from the same client.
		if v, ok := rl.buckets.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// middleware rejects requests over the client's budget with 429 and a
// Retry-After hint in whole seconds.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		res := rl.bucket(ip).Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.Duration("retry_after", delay),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(delay)))
			writeJSON(w, http.StatusTooManyRequests, envelope{Status: "error", Message: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfterSeconds rounds delay up to whole seconds, capped at one hour.
// A reservation that can never be satisfied reports rate.InfDuration.
func retryAfterSeconds(delay time.Duration) int {
	if delay <= 0 {
		return 0
	}
	secs := math.Ceil(delay.Seconds())
	if secs > 3600 {
		return 3600
	}
	return int(secs)
}

// clientIP returns the request's remote IP without the port. Forwarding
// headers are ignored: the server binds to localhost by default and is not
// meant to sit behind an untrusted proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
