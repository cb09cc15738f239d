package corpus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// cacheMetrics holds the Prometheus metrics owned by a Cache.
type cacheMetrics struct {
	// refreshes counts refresh attempts, partitioned by outcome: "ok" or "error".
	refreshes *prometheus.CounterVec

	// lookups counts cache lookups, partitioned by result: "hit" or "miss".
	lookups *prometheus.CounterVec

	// invalidations counts explicit invalidations.
	invalidations prometheus.Counter

	// records is the number of corpora indexed after the last refresh.
	records prometheus.Gauge
}

// newCacheMetrics creates the cache metrics against reg. A nil reg yields
// unregistered collectors, which keeps tests and short-lived CLI runs out of
// the default registry.
func newCacheMetrics(reg prometheus.Registerer) *cacheMetrics {
	factory := promauto.With(reg)

	return &cacheMetrics{
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragagent",
			Subsystem: "corpus_cache",
			Name:      "refreshes_total",
			Help:      "Total number of corpus cache refreshes, partitioned by outcome.",
		}, []string{"outcome"}),

		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragagent",
			Subsystem: "corpus_cache",
			Name:      "lookups_total",
			Help:      "Total number of corpus cache lookups, partitioned by hit or miss.",
		}, []string{"result"}),

		invalidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragagent",
			Subsystem: "corpus_cache",
			Name:      "invalidations_total",
			Help:      "Total number of explicit corpus cache invalidations.",
		}),

		records: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ragagent",
			Subsystem: "corpus_cache",
			Name:      "records",
			Help:      "Number of corpora indexed by the last successful refresh.",
		}),
	}
}
