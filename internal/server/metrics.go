package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// namespace prefixes every metric exported by the server.
	namespace = "ragagent"

	// labelHandler partitions HTTP metrics by mux pattern, not raw path.
	labelHandler = "handler"
)

// serverMetrics holds the Prometheus instruments owned by one Server. They
// are registered on Config.MetricsRegistry, so tests use a private registry.
type serverMetrics struct {
	// chatRequestsTotal counts finished /api/chat requests by outcome:
	// "ok", "timeout" or "error".
	chatRequestsTotal *prometheus.CounterVec

	chatDurationSeconds *prometheus.HistogramVec

	// chatActiveStreams is the number of /api/chat requests in flight.
	chatActiveStreams prometheus.Gauge

	// toolCallsTotal counts tool runs made by the corpus endpoints, by tool
	// and by the status the tool reported (success, warning, error, failed).
	toolCallsTotal *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics creates the server metrics and registers them on reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		chatRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Finished /api/chat requests by outcome.",
		}, []string{"outcome"}),

		// Agent turns include several model and tool round trips, hence the
		// wide buckets.
		chatDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Duration of /api/chat requests by outcome.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		chatActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "active_streams",
			Help:      "Number of /api/chat requests in flight.",
		}),

		toolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Tool runs made by the corpus endpoints, by tool and reported status.",
		}, []string{"tool", "status"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, handler pattern and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests by method and handler pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// observeTool records one tool run. It is a no-op on a nil receiver.
func (m *serverMetrics) observeTool(tool, status string) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(tool, status).Inc()
}

// instrument records request counts and latency for every request routed by
// next. The handler label is the matched mux pattern so path parameters do
// not explode cardinality.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)

		handler := r.Pattern
		if handler == "" {
			handler = "unmatched"
		}
		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(time.Since(start).Seconds())
	})
}
