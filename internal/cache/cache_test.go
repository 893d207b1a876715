package cache

import (
	"testing"
	"time"
)

func TestStoreGetSetRoundTrip(t *testing.T) {
	store := NewStore[int](time.Minute)

	if _, ok := store.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	store.Set("a", 42)
	value, ok := store.Get("a")
	if !ok || value != 42 {
		t.Fatalf("expected hit with 42, got %d ok=%v", value, ok)
	}
}

func TestStoreExpiresAfterTTL(t *testing.T) {
	current := time.Unix(1000, 0)
	store := NewStoreWithClock[string](5*time.Second, func() time.Time { return current })

	store.Set("k", "v")
	if _, ok := store.Get("k"); !ok {
		t.Fatal("expected hit before TTL")
	}

	current = current.Add(5*time.Second + time.Millisecond)
	if _, ok := store.Get("k"); ok {
		t.Fatal("expected miss after TTL elapsed")
	}
}

func TestStoreZeroTTLNeverExpires(t *testing.T) {
	current := time.Unix(1000, 0)
	store := NewStoreWithClock[string](0, func() time.Time { return current })

	store.Set("k", "v")
	current = current.Add(240 * time.Hour)
	if _, ok := store.Get("k"); !ok {
		t.Fatal("expected hit with disabled TTL")
	}
}

func TestStoreInvalidatePrefix(t *testing.T) {
	store := NewStore[int](time.Minute)
	store.Set("/repo/a:status", 1)
	store.Set("/repo/a:history", 2)
	store.Set("/repo/b:status", 3)

	store.InvalidatePrefix("/repo/a")

	if _, ok := store.Get("/repo/a:status"); ok {
		t.Fatal("expected /repo/a:status invalidated")
	}
	if _, ok := store.Get("/repo/a:history"); ok {
		t.Fatal("expected /repo/a:history invalidated")
	}
	if _, ok := store.Get("/repo/b:status"); !ok {
		t.Fatal("expected /repo/b:status untouched")
	}
}

func TestStoreReset(t *testing.T) {
	store := NewStore[int](time.Minute)
	store.Set("a", 1)
	store.Set("b", 2)

	store.Reset()

	if _, ok := store.Get("a"); ok {
		t.Fatal("expected reset to clear all entries")
	}
	if _, ok := store.Get("b"); ok {
		t.Fatal("expected reset to clear all entries")
	}
}
