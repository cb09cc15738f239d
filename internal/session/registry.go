// Package session keeps the resolver state of live conversations. Each
// conversation owns one corpus.Session; the registry expires idle sessions so
// their current corpus and existence memo are dropped with them.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/54b3r/ragagent-go/internal/corpus"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = time.Hour

// Registry maps session IDs to their corpus.Session. It is safe for
// concurrent use.
type Registry struct {
	// mu serialises LoadOrCreate so two requests for a new ID share one session.
	mu sync.Mutex

	// items holds *corpus.Session values keyed by session ID.
	items *cache.Cache

	// ttl is the idle expiry applied on every access.
	ttl time.Duration
}

// NewRegistry returns a Registry whose sessions expire after ttl of
// inactivity. A non-positive ttl uses DefaultTTL.
func NewRegistry(ttl time.Duration, log *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	items := cache.New(ttl, ttl/2)
	items.OnEvicted(func(id string, _ interface{}) {
		log.Debug("session: expired", "session_id", id)
	})
	return &Registry{items: items, ttl: ttl}
}

// LoadOrCreate returns the session for id, creating it when absent, and
// extends its expiry.
func (r *Registry) LoadOrCreate(id string) *corpus.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.items.Get(id); ok {
		s := v.(*corpus.Session)
		r.items.Set(id, s, r.ttl)
		return s
	}
	s := corpus.NewSession(id)
	r.items.Set(id, s, r.ttl)
	return s
}

// Get returns the session for id without creating one.
func (r *Registry) Get(id string) (*corpus.Session, bool) {
	v, ok := r.items.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*corpus.Session), true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.items.ItemCount()
}
