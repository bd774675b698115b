package counters

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/sevyedu/sevyai/internal/observability"
)

// Cache serves counter snapshots, refreshing from the store only when the
// cached entry is older than the TTL. Staleness within the TTL is tolerated by
// design; a failed refresh is never cached, so the next call retries the store
// immediately.
type Cache struct {
	store   Store
	ttl     time.Duration
	metrics *observability.Metrics
	logger  zerolog.Logger

	// now is swapped out by tests to control the clock.
	now func() time.Time

	mu        sync.Mutex
	snap      Snapshot
	fetchedAt time.Time

	group singleflight.Group
}

func NewCache(store Store, ttl time.Duration, metrics *observability.Metrics, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{
		store:   store,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Snapshot returns the current counter readings, from cache when fresh. It
// never fails: a store error yields all-unavailable values.
func (c *Cache) Snapshot(ctx context.Context) Snapshot {
	if snap, ok := c.fresh(); ok {
		c.metrics.CounterLookups.WithLabelValues("hit").Inc()
		return snap
	}
	c.metrics.CounterLookups.WithLabelValues("miss").Inc()

	// Concurrent stale readers collapse onto one store fetch.
	v, _, _ := c.group.Do("snapshot", func() (any, error) {
		if snap, ok := c.fresh(); ok {
			return snap, nil
		}
		return c.refresh(ctx), nil
	})
	return v.(Snapshot)
}

func (c *Cache) fresh() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.snap, true
}

func (c *Cache) refresh(ctx context.Context) Snapshot {
	snap := UnavailableSnapshot()

	values, err := c.store.FetchAll(ctx)
	if err != nil {
		c.metrics.StoreErrors.Inc()
		c.logger.Error().Err(err).Msg("counter store fetch failed")
		// Leave fetchedAt untouched so the next call retries immediately
		// instead of waiting out a TTL window on a failure.
		return snap
	}
	for name, n := range values {
		snap[name] = Value{N: n, OK: true}
	}

	c.mu.Lock()
	c.snap = snap
	c.fetchedAt = c.now()
	c.mu.Unlock()

	return snap
}
