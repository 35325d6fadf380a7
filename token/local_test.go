package token

import (
	"context"
	"testing"
	"time"
)

func TestLocalBeginSupersedes(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	// Missing key => current is 0.
	if cur, err := s.Current(ctx, "a"); err != nil || cur != 0 {
		t.Fatalf("Current on missing: got %d err=%v", cur, err)
	}

	t1, err := s.Begin(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	t2, err := s.Begin(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if t2 <= t1 {
		t.Fatalf("tokens must be strictly increasing: %d then %d", t1, t2)
	}

	cur, err := s.Current(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if cur != t2 {
		t.Fatalf("current should be latest token: got %d want %d", cur, t2)
	}
	if cur == t1 {
		t.Fatalf("earlier token must no longer be current")
	}
}

func TestLocalKeysIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Begin(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if cur, _ := s.Current(ctx, "b"); cur != 0 {
		t.Fatalf("keys must be independent, got %d for untouched key", cur)
	}
}

func TestLocalCleanupPrunesOld(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, time.Second) // retention=1s
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Begin(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(1200 * time.Millisecond)
	s.Cleanup(time.Second)

	cur, err := s.Current(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}
	if cur != 0 {
		t.Fatalf("expected pruned -> 0, got %d", cur)
	}
}
