package booking

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Hour)
	store.now = func() time.Time { return now }

	s := &Session{ID: "s1", RequesterID: "u1", State: StateSelecting, Date: "2026-03-03"}
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == s || got.Date != "2026-03-03" || got.RequesterID != "u1" {
		t.Fatalf("expected an independent copy, got %+v", got)
	}

	now = now.Add(59 * time.Minute)
	if _, err := store.Get(ctx, "s1"); err != nil {
		t.Fatalf("expected session alive before ttl: %v", err)
	}
	now = now.Add(time.Minute)
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session to expire, got %v", err)
	}
}

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	l := NewMemoryLocker()
	l.now = func() time.Time { return now }

	token, ok, err := l.TryLock(ctx, "s1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected lock, got %v %v", ok, err)
	}
	if _, ok, _ := l.TryLock(ctx, "s1", time.Minute); ok {
		t.Fatalf("expected second lock to fail")
	}
	if err := l.Unlock(ctx, "s1", "someone-else"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, ok, _ := l.TryLock(ctx, "s1", time.Minute); ok {
		t.Fatalf("foreign token must not release the lock")
	}
	if err := l.Unlock(ctx, "s1", token); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, ok, _ := l.TryLock(ctx, "s1", time.Minute); !ok {
		t.Fatalf("expected lock after release")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := l.TryLock(ctx, "s1", time.Minute); !ok {
		t.Fatalf("expected stale lock to be taken over")
	}
}
