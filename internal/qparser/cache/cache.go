// Package cache keeps parsed query plans in Redis. Keys include the
// dictionary version, so a reload never serves a plan built from an older
// phrase list.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/qparser"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/resilience"
)

const keyPrefix = "plan:"

// Store is the key/value subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one cached plan.
type Key struct {
	Version     uint64
	Parser      string
	Query       string
	Params      url.Values
	LocalParams url.Values
}

type PlanCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a PlanCache. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *PlanCache {
	return &PlanCache{
		store: store,
		ttl:   ttl,
		breaker: resilience.NewCircuitBreaker("plan-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     10 * time.Second,
			OnStateChange:    m.ObserveBreaker,
		}),
		metrics: m,
		logger:  slog.Default().With("component", "plan-cache"),
	}
}

// Get returns the cached plan for k. Redis failures count as misses.
func (c *PlanCache) Get(ctx context.Context, k Key) (*qparser.Plan, bool) {
	key := buildKey(k)
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if data == "" {
		c.miss()
		return nil, false
	}
	var plan qparser.Plan
	if err := json.Unmarshal([]byte(data), &plan); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	return &plan, true
}

func (c *PlanCache) Set(ctx context.Context, k Key, plan *qparser.Plan) {
	key := buildKey(k)
	data, err := json.Marshal(plan)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached plan or runs compute once per key across
// concurrent callers. The bool reports a cache hit.
func (c *PlanCache) GetOrCompute(ctx context.Context, k Key, compute func() (*qparser.Plan, error)) (*qparser.Plan, bool, error) {
	if plan, ok := c.Get(ctx, k); ok {
		return plan, true, nil
	}
	key := buildKey(k)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		plan, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, k, plan)
		return plan, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*qparser.Plan), false, nil
}

// Invalidate drops every cached plan.
func (c *PlanCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating plan cache: %w", err)
	}
	c.logger.Info("plan cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *PlanCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *PlanCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.PlanCacheHitsTotal.Inc()
	}
}

func (c *PlanCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.PlanCacheMissesTotal.Inc()
	}
}

// buildKey hashes every input that can change the plan. url.Values.Encode
// sorts by key, so parameter order does not matter.
func buildKey(k Key) string {
	raw := fmt.Sprintf("v=%d\x00parser=%s\x00q=%s\x00p=%s\x00l=%s",
		k.Version, k.Parser, k.Query, k.Params.Encode(), k.LocalParams.Encode())
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
