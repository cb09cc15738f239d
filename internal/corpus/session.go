package corpus

import (
	"context"
	"sync"
)

// Session is the per-conversation resolver state: the current corpus and a
// memo of existence checks. It is created with the conversation and dropped
// with it; the memo never expires on its own. Methods are safe for
// concurrent use.
type Session struct {
	// ID identifies the owning conversation. It may be empty for ephemeral
	// sessions such as one-shot CLI queries.
	ID string

	mu            sync.Mutex
	currentCorpus string
	existence     map[string]bool
}

// NewSession returns an empty session with no current corpus.
func NewSession(id string) *Session {
	return &Session{ID: id, existence: make(map[string]bool)}
}

// CurrentCorpus returns the current corpus and whether one is set.
func (s *Session) CurrentCorpus() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentCorpus, s.currentCorpus != ""
}

// existenceOf returns the memoised existence of name, if any.
func (s *Session) existenceOf(name string) (exists, known bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exists, known = s.existence[name]
	return exists, known
}

// remember memoises the existence of name.
func (s *Session) remember(name string, exists bool) {
	s.mu.Lock()
	s.existence[name] = exists
	s.mu.Unlock()
}

// adoptIfUnset sets the current corpus to name when none is set and reports
// whether it did.
func (s *Session) adoptIfUnset(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentCorpus != "" {
		return false
	}
	s.currentCorpus = name
	return true
}

// setCurrent sets the current corpus unconditionally.
func (s *Session) setCurrent(name string) {
	s.mu.Lock()
	s.currentCorpus = name
	s.mu.Unlock()
}

// Forget drops memoised existence for every given name. Callers use it after
// creating or deleting a corpus so the session does not keep a stale answer.
func (s *Session) Forget(names ...string) {
	s.mu.Lock()
	for _, n := range names {
		delete(s.existence, n)
	}
	s.mu.Unlock()
}

// ClearCurrentIf unsets the current corpus when it is one of names.
func (s *Session) ClearCurrentIf(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		if n != "" && s.currentCorpus == n {
			s.currentCorpus = ""
			return
		}
	}
}

// sessionKey is the context key for a *Session.
type sessionKey struct{}

// WithSession returns a copy of ctx carrying s. Tools receive their session
// this way because the agent runtime only forwards a context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored in ctx, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
