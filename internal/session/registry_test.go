package session

import (
	"sync"
	"testing"
	"time"
)

func TestRegistry_LoadOrCreateReturnsSameSession(t *testing.T) {
	t.Parallel()
	r := NewRegistry(time.Minute, nil)

	a := r.LoadOrCreate("abc")
	b := r.LoadOrCreate("abc")
	if a != b {
		t.Fatal("same ID must return the same session")
	}
	if a.ID != "abc" {
		t.Errorf("ID = %q, want abc", a.ID)
	}
	if r.LoadOrCreate("other") == a {
		t.Error("different IDs must not share a session")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}

func TestRegistry_GetDoesNotCreate(t *testing.T) {
	t.Parallel()
	r := NewRegistry(time.Minute, nil)

	if _, ok := r.Get("abc"); ok {
		t.Fatal("Get must not find an unknown session")
	}
	if r.Len() != 0 {
		t.Errorf("Get created a session, Len = %d", r.Len())
	}
	s := r.LoadOrCreate("abc")
	if got, ok := r.Get("abc"); !ok || got != s {
		t.Error("Get should return the session LoadOrCreate made")
	}
}

func TestRegistry_Expiry(t *testing.T) {
	t.Parallel()
	r := NewRegistry(20*time.Millisecond, nil)

	r.LoadOrCreate("abc")
	time.Sleep(50 * time.Millisecond)
	if _, ok := r.Get("abc"); ok {
		t.Error("session should have expired")
	}
}

func TestRegistry_ConcurrentCreate(t *testing.T) {
	t.Parallel()
	r := NewRegistry(time.Minute, nil)

	var wg sync.WaitGroup
	got := make(chan any, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got <- r.LoadOrCreate("shared")
		}()
	}
	wg.Wait()
	close(got)

	var first any
	for s := range got {
		if first == nil {
			first = s
			continue
		}
		if s != first {
			t.Fatal("concurrent LoadOrCreate produced different sessions")
		}
	}
}
