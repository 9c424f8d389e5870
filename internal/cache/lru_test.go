package cache

import (
	"testing"
	"time"
)

func TestLRUCache_EvictsOldestOverCapacity(t *testing.T) {
	var evicted []string
	c := NewLRUCache(2, time.Hour, WithEvictHook(func(key string, _ int) {
		evicted = append(evicted, key)
	}))

	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be cached")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v, want [b]", evicted)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_ExpiryRunsHook(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var evicted []string
	c := NewLRUCache(10, time.Minute,
		WithClock[int](func() time.Time { return now }),
		WithEvictHook(func(key string, _ int) { evicted = append(evicted, key) }))

	c.Set("a", 1)
	c.Set("b", 2)

	now = now.Add(30 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should still be cached")
	}

	// a was touched at +30s, b was not
	now = now.Add(45 * time.Second)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v, want [b]", evicted)
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive thanks to sliding expiry")
	}
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	count := 0
	c := NewLRUCache(10, time.Hour, WithEvictHook(func(string, string) { count++ }))
	c.Set("a", "x")
	c.Set("b", "y")
	c.Set("c", "z")

	c.Delete("a")
	c.Delete("missing")
	if count != 1 {
		t.Fatalf("hook calls after Delete = %d, want 1", count)
	}

	c.Purge()
	if count != 3 {
		t.Errorf("hook calls after Purge = %d, want 3", count)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCache_ReplaceRunsHookForOldValue(t *testing.T) {
	var got []int
	c := NewLRUCache(10, time.Hour, WithEvictHook(func(_ string, v int) { got = append(got, v) }))
	c.Set("a", 1)
	c.Set("a", 2)
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("evicted values = %v, want [1]", got)
	}
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("Get(a) = %d, want 2", v)
	}
}
