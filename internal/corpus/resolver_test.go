package corpus

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/54b3r/ragagent-go/internal/rag"
)

// fakeLister is a Lister that returns a fixed corpus list and counts calls.
type fakeLister struct {
	mu      sync.Mutex
	corpora []rag.Corpus
	err     error
	calls   int
}

func (f *fakeLister) ListCorpora(_ context.Context) ([]rag.Corpus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]rag.Corpus, len(f.corpora))
	copy(out, f.corpora)
	return out, nil
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLister) set(corpora []rag.Corpus, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.corpora = corpora
	f.err = err
}

const (
	testProject  = "P"
	testLocation = "L"
	docsResource = "projects/P/locations/L/ragCorpora/111"
	faqResource  = "projects/P/locations/L/ragCorpora/222"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestResolver returns a Resolver over a fakeLister seeded with two
// corpora, "docs" and "faq".
func newTestResolver(t *testing.T) (*Resolver, *fakeLister) {
	t.Helper()
	lister := &fakeLister{corpora: []rag.Corpus{
		{Name: docsResource, DisplayName: "docs"},
		{Name: faqResource, DisplayName: "faq"},
	}}
	cache, err := NewCache(lister, &CacheConfig{Logger: discardLogger()})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	r, err := NewResolver(cache, &ResolverConfig{Project: testProject, Location: testLocation, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return r, lister
}

func TestNewResolver_RequiresProjectAndLocation(t *testing.T) {
	t.Parallel()

	cache, _ := NewCache(&fakeLister{}, nil)
	if _, err := NewResolver(cache, &ResolverConfig{Location: "L"}); err == nil {
		t.Error("expected error for missing project")
	}
	if _, err := NewResolver(nil, &ResolverConfig{Project: "P", Location: "L"}); err == nil {
		t.Error("expected error for nil cache")
	}
}

func TestResolveResourceName_CanonicalSkipsCache(t *testing.T) {
	t.Parallel()
	r, lister := newTestResolver(t)

	for _, name := range []string{
		"projects/x/locations/y/ragCorpora/z",
		"projects/other/locations/us-east1/ragCorpora/abc-123",
	} {
		got, err := r.ResolveResourceName(context.Background(), name)
		if err != nil {
			t.Fatalf("resolve %q: %v", name, err)
		}
		if got != name {
			t.Errorf("resolve %q = %q, want unchanged", name, got)
		}
	}
	if n := lister.callCount(); n != 0 {
		t.Errorf("want no refresh for canonical names, got %d", n)
	}
}

func TestResolveResourceName_DisplayNameHitsCache(t *testing.T) {
	t.Parallel()
	r, lister := newTestResolver(t)
	ctx := context.Background()

	got, err := r.ResolveResourceName(ctx, "docs")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != docsResource {
		t.Errorf("resolve docs = %q, want %q", got, docsResource)
	}

	got, err = r.ResolveResourceName(ctx, "docs")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if got != docsResource {
		t.Errorf("second resolve docs = %q, want %q", got, docsResource)
	}
	if n := lister.callCount(); n != 1 {
		t.Errorf("want exactly 1 remote list call, got %d", n)
	}
}

func TestResolveResourceName_EmptyIsInvalid(t *testing.T) {
	t.Parallel()
	r, lister := newTestResolver(t)

	for _, name := range []string{"", "   "} {
		_, err := r.ResolveResourceName(context.Background(), name)
		var ie *InvalidNameError
		if !errors.As(err, &ie) {
			t.Errorf("resolve %q: want *InvalidNameError, got %v", name, err)
		}
	}
	if n := lister.callCount(); n != 0 {
		t.Errorf("empty names must not refresh the cache, got %d calls", n)
	}
}

func TestResolveResourceName_Synthesises(t *testing.T) {
	t.Parallel()
	r, _ := newTestResolver(t)

	got, err := r.ResolveResourceName(context.Background(), "My Docs!!")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := "projects/P/locations/L/ragCorpora/my_docs__"
	if got != want {
		t.Errorf("resolve = %q, want %q", got, want)
	}
}

func TestInvalidate_TriggersExactlyOneRefresh(t *testing.T) {
	t.Parallel()
	r, lister := newTestResolver(t)
	ctx := context.Background()

	if _, err := r.ResolveResourceName(ctx, "docs"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if n := lister.callCount(); n != 1 {
		t.Fatalf("want 1 call after first resolve, got %d", n)
	}

	r.Invalidate()
	if r.Cache().Valid() {
		t.Fatal("cache should be invalid after Invalidate")
	}
	if !r.CorpusExists(ctx, "faq", NewSession("s")) {
		t.Error("faq should exist")
	}
	if n := lister.callCount(); n != 2 {
		t.Errorf("want exactly 1 refresh after invalidate, got %d total calls", n)
	}

	r.Invalidate()
	if _, err := r.ResolveResourceName(ctx, "new corpus"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if n := lister.callCount(); n != 3 {
		t.Errorf("want exactly 1 refresh after second invalidate, got %d total calls", n)
	}
}

func TestCorpusExists_FailedRefreshCountsOnce(t *testing.T) {
	t.Parallel()
	r, lister := newTestResolver(t)
	lister.set(nil, errors.New("rag: list corpora: unavailable"))

	if r.CorpusExists(context.Background(), "docs", NewSession("s")) {
		t.Error("corpus should not exist when the cache cannot be refreshed")
	}
	if n := lister.callCount(); n != 1 {
		t.Errorf("want one refresh attempt, got %d", n)
	}
	if r.Cache().Valid() {
		t.Error("cache must stay invalid after a failed refresh")
	}
}

func TestCache_FailedRefreshDropsPreviousMapping(t *testing.T) {
	t.Parallel()
	r, lister := newTestResolver(t)
	ctx := context.Background()

	if _, err := r.ResolveResourceName(ctx, "docs"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// docs was deleted remotely, then the service went away.
	lister.set([]rag.Corpus{{Name: faqResource, DisplayName: "faq"}}, errors.New("rag: list corpora: unavailable"))
	r.Invalidate()

	if r.CorpusExists(ctx, "docs", NewSession("s")) {
		t.Error("a deleted corpus must not be reported as existing after a failed refresh")
	}
	got, err := r.ResolveResourceName(ctx, "docs")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if want := rag.ResourceName(testProject, testLocation, "docs"); got != want {
		t.Errorf("resolve after failed refresh = %q, want synthesised %q", got, want)
	}
	if r.Cache().Valid() {
		t.Error("cache must stay invalid after a failed refresh")
	}

	lister.set([]rag.Corpus{{Name: docsResource, DisplayName: "docs"}}, nil)
	got, err = r.ResolveResourceName(ctx, "docs")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != docsResource {
		t.Errorf("resolve after recovery = %q, want %q", got, docsResource)
	}
	if !r.Cache().Valid() {
		t.Error("cache should be valid after the retry succeeds")
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent slog writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestResolver_LogLevels(t *testing.T) {
	t.Parallel()

	var out syncBuffer
	log := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	lister := &fakeLister{corpora: []rag.Corpus{{Name: docsResource, DisplayName: "docs"}}}
	cache, err := NewCache(lister, &CacheConfig{Logger: log, Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	r, err := NewResolver(cache, &ResolverConfig{Project: testProject, Location: testLocation, Logger: log})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	ctx := context.Background()

	if !r.CorpusExists(ctx, "docs", NewSession("s1")) {
		t.Fatal("docs should exist")
	}
	lister.set(nil, errors.New("unavailable"))
	r.Invalidate()
	r.CorpusExists(ctx, "docs", NewSession("s2"))

	logs := out.String()
	for _, want := range []string{
		`level=INFO msg="corpus cache refreshed"`,
		`level=INFO msg="current corpus adopted" session=s1 corpus=docs`,
		`level=ERROR msg="corpus cache refresh failed"`,
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("missing %q in logs:\n%s", want, logs)
		}
	}
}

func TestCorpusExists_EmptyNameUsesCurrent(t *testing.T) {
	t.Parallel()
	r, _ := newTestResolver(t)
	ctx := context.Background()

	s := NewSession("s")
	if r.CorpusExists(ctx, "", s) {
		t.Error("empty name with no current corpus must be false")
	}

	if !r.SetCurrentCorpus(ctx, "faq", s) {
		t.Fatal("set current faq should succeed")
	}
	if got, want := r.CorpusExists(ctx, "", s), r.CorpusExists(ctx, "faq", s); got != want {
		t.Errorf("CorpusExists(\"\") = %v, CorpusExists(current) = %v", got, want)
	}
}

func TestCorpusExists_MemoShortCircuits(t *testing.T) {
	t.Parallel()
	r, lister := newTestResolver(t)
	ctx := context.Background()
	s := NewSession("s")

	if r.CorpusExists(ctx, "ghost", s) {
		t.Fatal("ghost should not exist yet")
	}

	// The corpus appears remotely and the cache is invalidated, but the
	// session memo still answers first.
	lister.set([]rag.Corpus{{Name: "projects/P/locations/L/ragCorpora/ghost", DisplayName: "ghost"}}, nil)
	r.Invalidate()
	calls := lister.callCount()

	if r.CorpusExists(ctx, "ghost", s) {
		t.Error("memoised false should win over the cache")
	}
	if n := lister.callCount(); n != calls {
		t.Errorf("memo hit must not refresh, got %d extra calls", n-calls)
	}

	s.Forget("ghost")
	if !r.CorpusExists(ctx, "ghost", s) {
		t.Error("ghost should exist after the memo is forgotten")
	}
}

func TestCorpusExists_ResolvesSynthesisedName(t *testing.T) {
	t.Parallel()
	lister := &fakeLister{corpora: []rag.Corpus{
		{Name: "projects/P/locations/L/ragCorpora/my_docs__", DisplayName: "projects/P/locations/L/ragCorpora/my_docs__"},
	}}
	cache, _ := NewCache(lister, &CacheConfig{Logger: discardLogger()})
	r, _ := NewResolver(cache, &ResolverConfig{Project: "P", Location: "L", Logger: discardLogger()})

	if !r.CorpusExists(context.Background(), "My Docs!!", NewSession("s")) {
		t.Error("name that sanitises to a cached resource should exist")
	}
}

func TestCorpusExists_AdoptsFirstCorpus(t *testing.T) {
	t.Parallel()
	r, _ := newTestResolver(t)
	ctx := context.Background()
	s := NewSession("s")

	if !r.CorpusExists(ctx, "docs", s) {
		t.Fatal("docs should exist")
	}
	if cur, ok := s.CurrentCorpus(); !ok || cur != "docs" {
		t.Errorf("current corpus = %q, %v; want docs adopted", cur, ok)
	}

	if !r.CorpusExists(ctx, "faq", s) {
		t.Fatal("faq should exist")
	}
	if cur, _ := s.CurrentCorpus(); cur != "docs" {
		t.Errorf("current corpus = %q; adoption must not replace an existing current corpus", cur)
	}

	if r.CorpusExists(ctx, "nope", NewSession("other")) {
		t.Error("nope should not exist")
	}
}

func TestSetCurrentCorpus_RejectsMissing(t *testing.T) {
	t.Parallel()
	r, _ := newTestResolver(t)
	ctx := context.Background()
	s := NewSession("s")

	if r.SetCurrentCorpus(ctx, "missing", s) {
		t.Error("SetCurrentCorpus should report false for a missing corpus")
	}
	if cur, ok := s.CurrentCorpus(); ok {
		t.Errorf("current corpus must stay unset, got %q", cur)
	}

	if !r.SetCurrentCorpus(ctx, "docs", s) {
		t.Fatal("SetCurrentCorpus docs should succeed")
	}
	if !r.SetCurrentCorpus(ctx, "faq", s) {
		t.Fatal("SetCurrentCorpus faq should succeed")
	}
	if cur, _ := s.CurrentCorpus(); cur != "faq" {
		t.Errorf("current corpus = %q, want faq", cur)
	}
	if r.SetCurrentCorpus(ctx, "missing", s) {
		t.Error("SetCurrentCorpus missing should fail")
	}
	if cur, _ := s.CurrentCorpus(); cur != "faq" {
		t.Errorf("current corpus = %q after failed set, want faq", cur)
	}
}

func TestResolveOrCurrent(t *testing.T) {
	t.Parallel()

	s := NewSession("s")
	if _, ok := ResolveOrCurrent("", s); ok {
		t.Error("empty name and no current corpus must fail")
	}
	if got, ok := ResolveOrCurrent("  docs  ", s); !ok || got != "docs" {
		t.Errorf("ResolveOrCurrent = %q, %v; want docs, true", got, ok)
	}
	s.setCurrent("faq")
	if got, ok := ResolveOrCurrent(" ", s); !ok || got != "faq" {
		t.Errorf("ResolveOrCurrent = %q, %v; want faq, true", got, ok)
	}
	if _, ok := ResolveOrCurrent("", nil); ok {
		t.Error("nil session must fail")
	}
}

func TestCache_DuplicateDisplayNameLastWins(t *testing.T) {
	t.Parallel()
	lister := &fakeLister{corpora: []rag.Corpus{
		{Name: docsResource, DisplayName: "dup"},
		{Name: faqResource, DisplayName: "dup"},
	}}
	cache, _ := NewCache(lister, &CacheConfig{Logger: discardLogger()})

	rec, ok := cache.Lookup(context.Background(), "dup")
	if !ok {
		t.Fatal("dup should be found")
	}
	if rec.ResourceName != faqResource {
		t.Errorf("dup resolved to %q, want last listed %q", rec.ResourceName, faqResource)
	}
	if got := len(cache.Records(context.Background())); got != 2 {
		t.Errorf("want 2 records, got %d", got)
	}
}

func TestCache_ResourceIndexWinsOverDisplayName(t *testing.T) {
	t.Parallel()
	lister := &fakeLister{corpora: []rag.Corpus{
		{Name: docsResource, DisplayName: "docs"},
		{Name: faqResource, DisplayName: docsResource},
	}}
	cache, _ := NewCache(lister, &CacheConfig{Logger: discardLogger()})

	rec, ok := cache.Lookup(context.Background(), docsResource)
	if !ok || rec.DisplayName != "docs" {
		t.Errorf("lookup by resource name returned %+v, %v; want the docs record", rec, ok)
	}
}

func TestDisplayInfo(t *testing.T) {
	t.Parallel()
	r, _ := newTestResolver(t)
	ctx := context.Background()

	got := r.DisplayInfo(ctx, "docs")
	if got.DisplayName != "docs" || got.ResourceName != docsResource {
		t.Errorf("DisplayInfo(docs) = %+v", got)
	}
	got = r.DisplayInfo(ctx, "Fresh One")
	if got.DisplayName != "Fresh One" || got.ResourceName != "projects/P/locations/L/ragCorpora/fresh_one" {
		t.Errorf("DisplayInfo(Fresh One) = %+v", got)
	}
}

func TestCache_Metrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	lister := &fakeLister{corpora: []rag.Corpus{{Name: docsResource, DisplayName: "docs"}}}
	cache, err := NewCache(lister, &CacheConfig{Logger: discardLogger(), Registerer: reg})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	cache.Lookup(context.Background(), "docs")
	cache.Lookup(context.Background(), "nope")

	if got := testutil.ToFloat64(cache.metrics.refreshes.WithLabelValues("ok")); got != 1 {
		t.Errorf("refreshes{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(cache.metrics.lookups.WithLabelValues("hit")); got != 1 {
		t.Errorf("lookups{hit} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(cache.metrics.lookups.WithLabelValues("miss")); got != 1 {
		t.Errorf("lookups{miss} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(cache.metrics.records); got != 1 {
		t.Errorf("records = %v, want 1", got)
	}
}

func TestSession_ContextRoundTrip(t *testing.T) {
	t.Parallel()

	if SessionFromContext(context.Background()) != nil {
		t.Error("empty context should carry no session")
	}
	s := NewSession("abc")
	got := SessionFromContext(WithSession(context.Background(), s))
	if got != s {
		t.Error("session lost in context round trip")
	}
}

func TestSession_ClearCurrentIf(t *testing.T) {
	t.Parallel()

	s := NewSession("s")
	s.setCurrent("docs")
	s.ClearCurrentIf("faq")
	if cur, _ := s.CurrentCorpus(); cur != "docs" {
		t.Errorf("current = %q, want docs", cur)
	}
	s.ClearCurrentIf(docsResource, "docs")
	if _, ok := s.CurrentCorpus(); ok {
		t.Error("current corpus should be cleared")
	}
}

func TestResolver_ConcurrentUse(t *testing.T) {
	t.Parallel()
	r, _ := newTestResolver(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := NewSession("")
			if i%4 == 0 {
				r.Invalidate()
			}
			if !r.CorpusExists(ctx, "docs", s) {
				t.Errorf("goroutine %d: docs should exist", i)
			}
		}()
	}
	wg.Wait()
}
