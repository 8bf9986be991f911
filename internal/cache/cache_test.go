package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(clock *fakeClock) *Cache[string, int] {
	c := New[string, int](0)
	c.now = clock.Now
	return c
}

func TestCache_GetSet(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(clock)
	defer c.Close()

	if _, ok := c.Get(ctx, "eth"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(ctx, "eth", 3400, time.Minute)
	v, ok := c.Get(ctx, "eth")
	if !ok || v != 3400 {
		t.Fatalf("expected hit 3400, got %d %v", v, ok)
	}
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(clock)
	defer c.Close()

	c.Set(ctx, "eth", 1, time.Minute)
	c.Set(ctx, "btc", 2, 0)

	clock.Advance(time.Minute + time.Second)

	if _, ok := c.Get(ctx, "eth"); ok {
		t.Error("expected eth to be expired")
	}
	if v, ok := c.Get(ctx, "btc"); !ok || v != 2 {
		t.Error("expected btc without ttl to survive")
	}

	if removed := c.DeleteExpired(); removed != 1 {
		t.Errorf("expected 1 purged entry, got %d", removed)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry left, got %d", c.Len())
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c := New[string, int](0)
	defer c.Close()

	c.Set(ctx, "a", 1, 0)
	c.Set(ctx, "b", 2, 0)
	c.Delete(ctx, "a")

	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("expected a to be deleted")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}
}

func TestCache_JanitorPurges(t *testing.T) {
	ctx := context.Background()
	c := New[string, int](5 * time.Millisecond)
	defer c.Close()

	c.Set(ctx, "short", 1, time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for c.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Len() != 0 {
		t.Error("expected janitor to purge expired entry")
	}
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New[string, int](time.Millisecond)
	c.Close()
	c.Close()
}
