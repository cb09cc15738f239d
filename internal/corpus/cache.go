// Package corpus resolves the names a user or model may use for a corpus
// (canonical resource names, display names, or brand-new human-typed names)
// into canonical resource names, backed by a process-wide cache of the
// remote corpus list and a per-session memo of existence checks.
//
// Consistency: the cache reflects the remote corpus list as of its last
// successful refresh. Callers that create or delete corpora must call
// [Cache.Invalidate] (or [Resolver.Invalidate]) before reporting the result.
// A corpus created or deleted by any other path, such as the console or
// another process, stays invisible or stale until the next refresh. That
// window is accepted; the cache is never durable and never shared across
// processes.
package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragagent-go/internal/rag"
)

// Record is one known corpus.
type Record struct {
	// ResourceName is the canonical, globally unique identifier.
	ResourceName string

	// DisplayName is the human-assigned label. It may equal ResourceName.
	DisplayName string

	// CreateTime and UpdateTime are informational.
	CreateTime string
	UpdateTime string
}

// Lister is the subset of rag.Service the cache needs.
type Lister interface {
	ListCorpora(ctx context.Context) ([]rag.Corpus, error)
}

// CacheConfig configures a Cache.
type CacheConfig struct {
	// Timeout bounds a single refresh call. Defaults to 30s.
	Timeout time.Duration

	// Logger receives refresh outcomes. Defaults to slog.Default.
	Logger *slog.Logger

	// Registerer receives the cache metrics. If nil, metrics are created
	// but not registered anywhere.
	Registerer prometheus.Registerer
}

// Cache is the process-wide index of known corpora. It is refreshed lazily
// from the remote service and is safe for concurrent use: refresh, swap and
// invalidation run under a single mutex.
type Cache struct {
	// lister fetches the remote corpus list.
	lister Lister

	// timeout bounds a single refresh.
	timeout time.Duration

	// log is the structured logger for refresh outcomes.
	log *slog.Logger

	// metrics tracks refreshes, lookups and the number of cached records.
	metrics *cacheMetrics

	mu             sync.Mutex
	byResourceName map[string]*Record
	byDisplayName  map[string]*Record
	valid          bool
}

// NewCache constructs an empty, invalid Cache. The first lookup triggers a
// refresh.
func NewCache(lister Lister, cfg *CacheConfig) (*Cache, error) {
	if lister == nil {
		return nil, fmt.Errorf("corpus: lister must not be nil")
	}
	if cfg == nil {
		cfg = &CacheConfig{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		lister:         lister,
		timeout:        timeout,
		log:            log,
		metrics:        newCacheMetrics(cfg.Registerer),
		byResourceName: make(map[string]*Record),
		byDisplayName:  make(map[string]*Record),
	}, nil
}

// Invalidate marks the cache stale so the next lookup refreshes it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
	c.metrics.invalidations.Inc()
	c.log.Debug("corpus cache invalidated")
}

// Valid reports whether the cache reflects a successful refresh that has not
// since been invalidated.
func (c *Cache) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid
}

// EnsureValid refreshes the cache if it is not valid. A failed refresh is
// logged and swallowed: the cache is left empty and invalid, and the next
// call retries.
func (c *Cache) EnsureValid(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid {
		return
	}
	c.refreshLocked(ctx)
}

// refreshLocked lists the remote corpora and swaps in freshly built indices.
// The old indices are dropped first, so a failed list leaves nothing stale
// behind. c.mu must be held.
func (c *Cache) refreshLocked(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.byResourceName = make(map[string]*Record)
	c.byDisplayName = make(map[string]*Record)
	c.valid = false

	start := time.Now()
	corpora, err := c.lister.ListCorpora(ctx)
	if err != nil {
		c.metrics.refreshes.WithLabelValues("error").Inc()
		c.metrics.records.Set(0)
		c.log.Error("corpus cache refresh failed",
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return
	}

	byResource := make(map[string]*Record, len(corpora))
	byDisplay := make(map[string]*Record, len(corpora))
	for _, rc := range corpora {
		rec := &Record{
			ResourceName: rc.Name,
			DisplayName:  rc.DisplayName,
			CreateTime:   rc.CreateTime,
			UpdateTime:   rc.UpdateTime,
		}
		byResource[rec.ResourceName] = rec
		// Display names are not unique; the last listed corpus wins.
		if rec.DisplayName != "" && rec.DisplayName != rec.ResourceName {
			byDisplay[rec.DisplayName] = rec
		}
	}

	c.byResourceName = byResource
	c.byDisplayName = byDisplay
	c.valid = true
	c.metrics.refreshes.WithLabelValues("ok").Inc()
	c.metrics.records.Set(float64(len(byResource)))
	c.log.Info("corpus cache refreshed",
		slog.Int("corpora", len(byResource)),
		slog.Duration("duration", time.Since(start)),
	)
}

// lookup finds name by resource name first, then by display name. It does
// not refresh.
func (c *Cache) lookup(name string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.byResourceName[name]; ok {
		c.metrics.lookups.WithLabelValues("hit").Inc()
		return *rec, true
	}
	if rec, ok := c.byDisplayName[name]; ok {
		c.metrics.lookups.WithLabelValues("hit").Inc()
		return *rec, true
	}
	c.metrics.lookups.WithLabelValues("miss").Inc()
	return Record{}, false
}

// Lookup ensures the cache is valid and then finds name by resource name or
// display name.
func (c *Cache) Lookup(ctx context.Context, name string) (Record, bool) {
	c.EnsureValid(ctx)
	return c.lookup(name)
}

// Records returns a snapshot of every cached corpus, ordered arbitrarily.
func (c *Cache) Records(ctx context.Context) []Record {
	c.EnsureValid(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, 0, len(c.byResourceName))
	for _, rec := range c.byResourceName {
		out = append(out, *rec)
	}
	return out
}
