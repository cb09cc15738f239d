package store

import (
	"context"
	"testing"
	"time"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_AppendAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "sess-a", RoleUser, "hello"); err != nil {
		t.Fatalf("append user: %v", err)
	}
	if err := s.Append(ctx, "sess-a", RoleAssistant, "world"); err != nil {
		t.Fatalf("append assistant: %v", err)
	}

	msgs, err := s.Recent(ctx, "sess-a", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Content != "hello" {
		t.Errorf("msg[0]: want user/hello, got %s/%s", msgs[0].Role, msgs[0].Content)
	}
	if msgs[1].Role != RoleAssistant || msgs[1].Content != "world" {
		t.Errorf("msg[1]: want assistant/world, got %s/%s", msgs[1].Role, msgs[1].Content)
	}
}

func Test_Store_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 6 {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if err := s.Append(ctx, "sess-b", role, "msg"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	msgs, err := s.Recent(ctx, "sess-b", 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 4 {
		t.Errorf("want 4 messages, got %d", len(msgs))
	}
}

func Test_Store_SessionIsolation(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "sess-x", RoleUser, "from x"); err != nil {
		t.Fatalf("append x: %v", err)
	}
	if err := s.Append(ctx, "sess-y", RoleUser, "from y"); err != nil {
		t.Fatalf("append y: %v", err)
	}

	msgsX, err := s.Recent(ctx, "sess-x", 10)
	if err != nil {
		t.Fatalf("recent x: %v", err)
	}
	msgsY, err := s.Recent(ctx, "sess-y", 10)
	if err != nil {
		t.Fatalf("recent y: %v", err)
	}

	if len(msgsX) != 1 || msgsX[0].Content != "from x" {
		t.Errorf("session x isolation failed: got %v", msgsX)
	}
	if len(msgsY) != 1 || msgsY[0].Content != "from y" {
		t.Errorf("session y isolation failed: got %v", msgsY)
	}
}

func Test_Store_EmptySessionReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	msgs, err := s.Recent(ctx, "sess-empty", 10)
	if err != nil {
		t.Fatalf("recent empty: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("want 0 messages, got %d", len(msgs))
	}
}

func Test_Store_OldestFirstOrdering(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	contents := []string{"first", "second", "third"}
	for _, c := range contents {
		if err := s.Append(ctx, "sess-order", RoleUser, c); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	msgs, err := s.Recent(ctx, "sess-order", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	for i, want := range contents {
		if msgs[i].Content != want {
			t.Errorf("msg[%d]: want %q, got %q", i, want, msgs[i].Content)
		}
	}
}

func Test_Store_PruneKeepsNewest(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for _, c := range []string{"one", "two", "three", "four"} {
		if err := s.Append(ctx, "sess-prune", RoleUser, c); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.Append(ctx, "sess-other", RoleUser, "keep me"); err != nil {
		t.Fatalf("append other: %v", err)
	}

	if err := s.Prune(ctx, "sess-prune", 2); err != nil {
		t.Fatalf("prune: %v", err)
	}

	msgs, err := s.Recent(ctx, "sess-prune", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "three" || msgs[1].Content != "four" {
		t.Errorf("after prune got %v, want [three four]", msgs)
	}
	other, _ := s.Recent(ctx, "sess-other", 10)
	if len(other) != 1 {
		t.Errorf("prune must not touch other sessions, got %d messages", len(other))
	}
}

func Test_Store_Clear(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "sess-clear", RoleUser, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Clear(ctx, "sess-clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	msgs, err := s.Recent(ctx, "sess-clear", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("want 0 messages after clear, got %d", len(msgs))
	}
}

func Test_Store_ExpireDropsIdleConversations(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour).Unix()
	for _, role := range []Role{RoleUser, RoleAssistant} {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO conversations (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			"stale", string(role), "kiln firing schedule", old); err != nil {
			t.Fatalf("seed stale: %v", err)
		}
	}
	// "mixed" has an old message but a fresh one too, so it stays whole.
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		"mixed", string(RoleUser), "old question", old); err != nil {
		t.Fatalf("seed mixed: %v", err)
	}
	if err := s.Append(ctx, "mixed", RoleAssistant, "new answer"); err != nil {
		t.Fatalf("append: %v", err)
	}

	n, err := s.Expire(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 2 {
		t.Errorf("expired %d messages, want 2", n)
	}

	stale, _ := s.Recent(ctx, "stale", 10)
	if len(stale) != 0 {
		t.Errorf("stale session: want 0 messages, got %d", len(stale))
	}
	mixed, _ := s.Recent(ctx, "mixed", 10)
	if len(mixed) != 2 {
		t.Errorf("mixed session: want 2 messages, got %d", len(mixed))
	}
}

func Test_Store_Ping(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("ping open store: %v", err)
	}

	closed, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = closed.Close()
	if err := closed.Ping(context.Background()); err == nil {
		t.Error("ping on closed store should fail")
	}
}
