package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/ragagent-go/internal/rag"
)

// ResolverConfig holds the process-wide settings used to synthesise
// resource names.
type ResolverConfig struct {
	// Project is the Google Cloud project ID.
	Project string

	// Location is the service region.
	Location string

	// Logger receives resolution decisions at debug level. Defaults to
	// slog.Default.
	Logger *slog.Logger
}

// Resolver turns any accepted corpus name into a canonical resource name and
// answers existence questions against the shared Cache and a caller-owned
// Session.
type Resolver struct {
	// cache is the shared corpus index.
	cache *Cache

	// project and location are used to synthesise resource names.
	project  string
	location string

	// log is the structured logger for resolution decisions.
	log *slog.Logger
}

// DisplayInfo pairs a corpus's display name with its resource name.
type DisplayInfo struct {
	DisplayName  string `json:"display_name"`
	ResourceName string `json:"resource_name"`
}

// NewResolver constructs a Resolver over cache.
func NewResolver(cache *Cache, cfg *ResolverConfig) (*Resolver, error) {
	if cache == nil {
		return nil, fmt.Errorf("corpus: cache must not be nil")
	}
	if cfg == nil || cfg.Project == "" || cfg.Location == "" {
		return nil, fmt.Errorf("corpus: project and location are required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		cache:    cache,
		project:  cfg.Project,
		location: cfg.Location,
		log:      log,
	}, nil
}

// ResolveResourceName converts name into a canonical resource name. The
// checks run in order: an already-canonical name is returned unchanged
// without touching the cache; a name known to the cache (by resource name or
// display name) maps to its stored resource name; anything else is
// sanitised into a predicted corpus ID under the configured project and
// location. The last form does not imply the corpus exists.
func (r *Resolver) ResolveResourceName(ctx context.Context, name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", &InvalidNameError{Name: name, Reason: "name is empty"}
	}
	if rag.IsResourceName(n) {
		return n, nil
	}
	r.cache.EnsureValid(ctx)
	return r.resolveWithoutRefresh(n)
}

// resolveWithoutRefresh runs the three-tier resolution against the cache as
// it stands. n must already be trimmed and non-empty.
func (r *Resolver) resolveWithoutRefresh(n string) (string, error) {
	if rag.IsResourceName(n) {
		return n, nil
	}
	if rec, ok := r.cache.lookup(n); ok {
		r.log.Debug("corpus resolved from cache",
			slog.String("name", n),
			slog.String("resource_name", rec.ResourceName),
		)
		return rec.ResourceName, nil
	}
	id := rag.SanitizeCorpusID(n)
	if id == "" {
		return "", &InvalidNameError{Name: n, Reason: "produces an empty corpus ID"}
	}
	resource := rag.ResourceName(r.project, r.location, id)
	r.log.Debug("corpus resource name synthesised",
		slog.String("name", n),
		slog.String("resource_name", resource),
	)
	return resource, nil
}

// CorpusExists reports whether name refers to a known corpus. An empty name
// means the session's current corpus; with none set the answer is false.
// The session memo is consulted first and short-circuits the cache. On a
// cache check, the outcome is memoised in the session, and a positive answer
// adopts name as the current corpus if the session has none. Resolution
// errors count as "does not exist" and are not memoised.
//
// A nil session behaves as a fresh, throwaway one.
func (r *Resolver) CorpusExists(ctx context.Context, name string, s *Session) bool {
	if s == nil {
		s = NewSession("")
	}

	key := strings.TrimSpace(name)
	if key == "" {
		cur, ok := s.CurrentCorpus()
		if !ok {
			return false
		}
		key = cur
	}

	if exists, known := s.existenceOf(key); known {
		return exists
	}

	r.cache.EnsureValid(ctx)

	exists := false
	if _, ok := r.cache.lookup(key); ok {
		exists = true
	} else {
		resource, err := r.resolveWithoutRefresh(key)
		if err != nil {
			r.log.Warn("corpus existence check failed",
				slog.String("name", key),
				slog.String("error", err.Error()),
			)
			return false
		}
		_, exists = r.cache.lookup(resource)
	}

	s.remember(key, exists)
	if exists && s.adoptIfUnset(key) {
		r.log.Info("current corpus adopted",
			slog.String("session", s.ID),
			slog.String("corpus", key),
		)
	}
	return exists
}

// SetCurrentCorpus makes name the session's current corpus if it exists and
// returns whether it does. A corpus that does not exist is never made
// current. An empty name checks the existing current corpus and leaves it in
// place.
func (r *Resolver) SetCurrentCorpus(ctx context.Context, name string, s *Session) bool {
	if s == nil {
		return false
	}
	if !r.CorpusExists(ctx, name, s) {
		return false
	}
	if key := strings.TrimSpace(name); key != "" {
		s.setCurrent(key)
		r.log.Debug("current corpus set",
			slog.String("session", s.ID),
			slog.String("corpus", key),
		)
	}
	return true
}

// ResolveOrCurrent returns the trimmed name when it is non-empty, and the
// session's current corpus otherwise. ok is false when neither is available.
// It never refreshes the cache or calls the remote service.
func ResolveOrCurrent(name string, s *Session) (string, bool) {
	if n := strings.TrimSpace(name); n != "" {
		return n, true
	}
	if s == nil {
		return "", false
	}
	return s.CurrentCorpus()
}

// Invalidate marks the shared cache stale. Call it right after creating or
// deleting a corpus and before reporting the result.
func (r *Resolver) Invalidate() {
	r.cache.Invalidate()
}

// DisplayInfo returns the display and resource names for name. Unknown names
// fall back to name itself as the display name and the synthesised resource
// name, or name itself when it cannot be resolved.
func (r *Resolver) DisplayInfo(ctx context.Context, name string) DisplayInfo {
	n := strings.TrimSpace(name)
	if rec, ok := r.cache.Lookup(ctx, n); ok {
		return DisplayInfo{DisplayName: rec.DisplayName, ResourceName: rec.ResourceName}
	}
	if n == "" {
		return DisplayInfo{}
	}
	resource, err := r.resolveWithoutRefresh(n)
	if err != nil {
		return DisplayInfo{DisplayName: n, ResourceName: n}
	}
	return DisplayInfo{DisplayName: n, ResourceName: resource}
}

// Cache returns the shared cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}
