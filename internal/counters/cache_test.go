package counters

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sevyedu/sevyai/internal/observability"
)

type countingStore struct {
	mu      sync.Mutex
	fetches int
	values  map[string]int64
	err     error
}

func (s *countingStore) FetchAll(context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]int64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

func (s *countingStore) Increment(context.Context, string) error { return nil }
func (s *countingStore) Close() error                            { return nil }

func (s *countingStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

var cacheTestSeq atomic.Int64

func newTestCache(store Store, ttl time.Duration) *Cache {
	ns := fmt.Sprintf("test_counters_cache_%d", cacheTestSeq.Add(1))
	return NewCache(store, ttl, observability.NewMetrics(ns), zerolog.Nop())
}

func TestSnapshotServedFromCacheWithinTTL(t *testing.T) {
	store := &countingStore{values: map[string]int64{SevyAIAnswers: 7}}
	cache := newTestCache(store, 30*time.Second)

	base := time.Now()
	cache.now = func() time.Time { return base }

	first := cache.Snapshot(context.Background())
	if got := first[SevyAIAnswers]; got != (Value{N: 7, OK: true}) {
		t.Fatalf("first snapshot %s = %+v, want 7", SevyAIAnswers, got)
	}

	cache.now = func() time.Time { return base.Add(29 * time.Second) }
	second := cache.Snapshot(context.Background())
	if got := second[SevyAIAnswers]; got != (Value{N: 7, OK: true}) {
		t.Fatalf("second snapshot %s = %+v, want cached 7", SevyAIAnswers, got)
	}

	if n := store.fetchCount(); n != 1 {
		t.Fatalf("store fetches = %d, want 1 (second call must be served from cache)", n)
	}
}

func TestSnapshotRefreshesAfterTTL(t *testing.T) {
	store := &countingStore{values: map[string]int64{StudentsTaught: 2500}}
	cache := newTestCache(store, 30*time.Second)

	base := time.Now()
	cache.now = func() time.Time { return base }
	cache.Snapshot(context.Background())

	store.mu.Lock()
	store.values[StudentsTaught] = 2600
	store.mu.Unlock()

	cache.now = func() time.Time { return base.Add(31 * time.Second) }
	snap := cache.Snapshot(context.Background())
	if got := snap[StudentsTaught]; got != (Value{N: 2600, OK: true}) {
		t.Fatalf("stale snapshot %s = %+v, want refreshed 2600", StudentsTaught, got)
	}
	if n := store.fetchCount(); n != 2 {
		t.Fatalf("store fetches = %d, want exactly 2", n)
	}
}

func TestSnapshotFailureIsNotCached(t *testing.T) {
	store := &countingStore{err: errors.New("connection refused")}
	cache := newTestCache(store, 30*time.Second)

	snap := cache.Snapshot(context.Background())
	for _, name := range KnownCounters {
		if got := snap[name]; got.OK {
			t.Fatalf("failed snapshot %s = %+v, want unavailable", name, got)
		}
	}

	// The failed refresh must not start a TTL window: the very next call goes
	// back to the store.
	store.mu.Lock()
	store.err = nil
	store.values = map[string]int64{SevyEducatorsNumber: 15}
	store.mu.Unlock()

	snap = cache.Snapshot(context.Background())
	if got := snap[SevyEducatorsNumber]; got != (Value{N: 15, OK: true}) {
		t.Fatalf("recovered snapshot %s = %+v, want 15", SevyEducatorsNumber, got)
	}
	if n := store.fetchCount(); n != 2 {
		t.Fatalf("store fetches = %d, want 2 (failure must retry immediately)", n)
	}
}

func TestSnapshotDefaultsMissingCountersToUnavailable(t *testing.T) {
	store := &countingStore{values: map[string]int64{SevyAIAnswers: 10000}}
	cache := newTestCache(store, 30*time.Second)

	snap := cache.Snapshot(context.Background())
	if got := snap[SevyAIAnswers]; got != (Value{N: 10000, OK: true}) {
		t.Fatalf("%s = %+v, want 10000", SevyAIAnswers, got)
	}
	for _, name := range []string{SevyEducatorsNumber, StudentsTaught} {
		if got := snap[name]; got.OK {
			t.Fatalf("%s = %+v, want unavailable when no document carries it", name, got)
		}
	}
}

func TestConcurrentStaleReadersCollapseToOneFetch(t *testing.T) {
	store := &countingStore{values: map[string]int64{SevyAIAnswers: 1}}
	cache := newTestCache(store, 30*time.Second)

	release := make(chan struct{})
	slow := &gateStore{inner: store, release: release}
	cache.store = slow

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.Snapshot(context.Background())
		}()
	}

	// Let every goroutine reach the fetch barrier before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := store.fetchCount(); n != 1 {
		t.Fatalf("store fetches = %d, want 1 for concurrent stale readers", n)
	}
}

type gateStore struct {
	inner   *countingStore
	release chan struct{}
}

func (s *gateStore) FetchAll(ctx context.Context) (map[string]int64, error) {
	<-s.release
	return s.inner.FetchAll(ctx)
}

func (s *gateStore) Increment(ctx context.Context, name string) error {
	return s.inner.Increment(ctx, name)
}

func (s *gateStore) Close() error { return s.inner.Close() }
