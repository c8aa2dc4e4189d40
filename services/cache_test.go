package services

import (
	"fmt"
	"testing"
	"time"
)

func TestTTLCache_GetWithinTTL(t *testing.T) {
	c := NewTTLCache[string](time.Minute)
	c.Set("k", "v", 100*time.Millisecond)

	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("expected fresh value, got %q ok=%v", got, ok)
	}
}

func TestTTLCache_ExpiresAfterTTL(t *testing.T) {
	c := NewTTLCache[string](time.Minute)
	c.Set("k", "v", 30*time.Millisecond)

	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected expired entry to read as absent")
	}
}

func TestTTLCache_StaleSurvivesExpiry(t *testing.T) {
	c := NewTTLCache[string](time.Minute)
	c.Set("k", "v", 30*time.Millisecond)

	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("Get should miss after expiry")
	}
	got, ok := c.GetStale("k")
	if !ok || got != "v" {
		t.Fatalf("GetStale should keep the last value, got %q ok=%v", got, ok)
	}
	if !c.IsStale("k") {
		t.Fatalf("IsStale should report true after expiry")
	}
}

func TestTTLCache_DeleteRemovesStaleToo(t *testing.T) {
	c := NewTTLCache[string](time.Minute)
	c.Set("k", "v", 0)
	c.Delete("k")

	if _, ok := c.GetStale("k"); ok {
		t.Fatalf("deleted entry must not be visible to GetStale")
	}
}

func TestTTLCache_DefaultTTLFallback(t *testing.T) {
	c := NewTTLCache[int](30 * time.Millisecond)
	c.Set("k", 1, 0)

	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry set with ttl=0 should expire after the instance default")
	}
}

func TestTTLCache_GetOrSet(t *testing.T) {
	c := NewTTLCache[int](time.Minute)

	calls := 0
	fetch := func() (int, error) {
		calls++
		return 42, nil
	}

	v, fromCache, err := c.GetOrSet("k", fetch, 0)
	if err != nil || fromCache || v != 42 {
		t.Fatalf("first GetOrSet: v=%d fromCache=%v err=%v", v, fromCache, err)
	}

	v, fromCache, err = c.GetOrSet("k", fetch, 0)
	if err != nil || !fromCache || v != 42 {
		t.Fatalf("second GetOrSet: v=%d fromCache=%v err=%v", v, fromCache, err)
	}
	if calls != 1 {
		t.Fatalf("fetcher should run once, ran %d times", calls)
	}
}

func TestTTLCache_GetOrSetFetchError(t *testing.T) {
	c := NewTTLCache[int](time.Minute)

	_, _, err := c.GetOrSet("k", func() (int, error) {
		return 0, fmt.Errorf("upstream down")
	}, 0)
	if err == nil {
		t.Fatalf("expected fetch error to surface")
	}
	if _, ok := c.GetStale("k"); ok {
		t.Fatalf("failed fetch must not store anything")
	}
}

func TestTTLCache_ClearAndHas(t *testing.T) {
	c := NewTTLCache[string](time.Minute)
	c.Set("a", "1", 0)
	c.Set("b", "2", 0)

	if !c.Has("a") || !c.Has("b") {
		t.Fatalf("expected both keys present")
	}

	c.Clear()

	if c.Has("a") || c.Len() != 0 {
		t.Fatalf("clear should drop everything")
	}
}

func TestCaches_IndependentClear(t *testing.T) {
	caches := NewCaches(newTestConfig("http://unused"))

	caches.Nodes.Set("pk", testRow("pk", ""), 0)
	caches.LiveStats.Clear()

	if _, ok := caches.Nodes.Get("pk"); !ok {
		t.Fatalf("clearing one cache class must not clear another")
	}
}
