package broker

import (
	"errors"
	"testing"
	"time"
)

func TestCacheFreshHit(t *testing.T) {
	c := newReadCache()
	calls := 0
	fetch := func() (any, error) {
		calls++
		return 42, nil
	}

	r1 := c.get("k", time.Minute, 0, ReadErrorFallback, fetch)
	if r1.Status != ReadSuccess || r1.Value != 42 {
		t.Fatalf("unexpected first result: %+v", r1)
	}

	r2 := c.get("k", time.Minute, 0, ReadErrorFallback, fetch)
	if r2.Status != ReadSuccess || r2.Value != 42 {
		t.Fatalf("unexpected cached result: %+v", r2)
	}
	if calls != 1 {
		t.Fatalf("expected fetch called once, got %d", calls)
	}
}

func TestCacheFallbackToLastKnownGood(t *testing.T) {
	c := newReadCache()
	good := func() (any, error) { return 7, nil }
	c.get("k", time.Millisecond, 0, ReadErrorFallback, good)
	time.Sleep(2 * time.Millisecond)

	failing := func() (any, error) { return nil, errors.New("broker down") }
	r := c.get("k", time.Millisecond, 0, ReadErrorFallback, failing)
	if r.Status != ReadCached {
		t.Fatalf("expected cached fallback status, got %s", r.Status)
	}
	if r.Value != 7 {
		t.Fatalf("expected stale value 7, got %v", r.Value)
	}
	if r.CacheAge <= 0 {
		t.Fatalf("expected positive cache age")
	}
}

func TestCacheErrorFallbackWithNoPriorValue(t *testing.T) {
	c := newReadCache()
	failing := func() (any, error) { return nil, errors.New("broker down") }
	r := c.get("k", time.Minute, Balance{}, ReadErrorFallback, failing)
	if r.Status != ReadErrorFallback {
		t.Fatalf("expected error_fallback status, got %s", r.Status)
	}
	if r.Value != (Balance{}) {
		t.Fatalf("expected zero Balance, got %v", r.Value)
	}
}

func TestCacheErrorSafeForOrderable(t *testing.T) {
	c := newReadCache()
	failing := func() (any, error) { return nil, errors.New("broker down") }
	r := c.get("k", time.Minute, OrderableAmount{}, ReadErrorSafe, failing)
	if r.Status != ReadErrorSafe {
		t.Fatalf("expected error_safe status, got %s", r.Status)
	}
}

func TestCacheKeyDistinguishesAccountsAndEndpoints(t *testing.T) {
	k1 := cacheKey("acc1", "balance", "")
	k2 := cacheKey("acc2", "balance", "")
	k3 := cacheKey("acc1", "positions", "")
	if k1 == k2 || k1 == k3 {
		t.Fatalf("expected distinct cache keys, got %s %s %s", k1, k2, k3)
	}
}
