// Package caching implements the tenant scoped cqldata.Cache over any cqldata.CacheStore.
package caching

import (
	"context"
	"sort"
	"strings"
	"time"

	log "log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/magiccloud/cqldata"
	"github.com/magiccloud/cqldata/metrics"
)

const (
	visiblePrefix = "+"
	hiddenPrefix  = "."

	// minLifetime is the shortest accepted time to live of an item.
	minLifetime = time.Second
	// Items expiring further away than maxLifetime are stored without a time to live.
	maxLifetime = 365 * 24 * time.Hour
)

type cache struct {
	store   cqldata.CacheStore
	root    cqldata.RootResolver
	metrics *metrics.Metrics
	group   singleflight.Group
}

// NewCache returns a Cache storing items in store. Items are scoped by the tenant of the
// root resolver carried by the call context, or of root when there is none.
func NewCache(store cqldata.CacheStore, root cqldata.RootResolver, m *metrics.Metrics) cqldata.Cache {
	return &cache{
		store:   store,
		root:    root,
		metrics: m,
	}
}

func prefix(hidden bool) string {
	if hidden {
		return hiddenPrefix
	}
	return visiblePrefix
}

// storeKey validates key and prefixes it with its visibility sentinel.
func storeKey(key string, hidden bool) (string, error) {
	if key == "" {
		return "", cqldata.Errorf(cqldata.PreconditionFailed, "cache key can't be empty")
	}
	if strings.HasPrefix(key, visiblePrefix) || strings.HasPrefix(key, hiddenPrefix) {
		return "", cqldata.Errorf(cqldata.PreconditionFailed, "cache key '%s' can't start with '%s' or '%s'", key, visiblePrefix, hiddenPrefix)
	}
	return prefix(hidden) + key, nil
}

// ttlOf converts an absolute expiration into a time to live, zero meaning none.
func ttlOf(utcExpiration time.Time, now time.Time) (time.Duration, error) {
	lifetime := utcExpiration.Sub(now)
	if lifetime < minLifetime {
		return 0, cqldata.Errorf(cqldata.PreconditionFailed, "expiration %s must be at least %s in the future", utcExpiration.UTC().Format(time.RFC3339), minLifetime)
	}
	if lifetime > maxLifetime {
		return 0, nil
	}
	return lifetime.Truncate(time.Second), nil
}

func (c *cache) Get(ctx context.Context, key string, hidden bool) (string, bool, error) {
	sk, err := storeKey(key, hidden)
	if err != nil {
		return "", false, err
	}
	scope, err := cqldata.ScopeOf(cqldata.RootOf(ctx, c.root))
	if err != nil {
		return "", false, err
	}
	v, ok, err := c.store.GetValue(ctx, scope, sk)
	if err == nil {
		c.metrics.CacheResult(hitOrMiss(ok))
	}
	return v, ok, err
}

func (c *cache) Upsert(ctx context.Context, key string, value string, utcExpiration time.Time, hidden bool) error {
	sk, err := storeKey(key, hidden)
	if err != nil {
		return err
	}
	scope, err := cqldata.ScopeOf(cqldata.RootOf(ctx, c.root))
	if err != nil {
		return err
	}
	return c.upsert(ctx, scope, sk, value, utcExpiration)
}

func (c *cache) upsert(ctx context.Context, scope cqldata.Scope, sk string, value string, utcExpiration time.Time) error {
	ttl, err := ttlOf(utcExpiration, cqldata.Now())
	if err != nil {
		return err
	}
	return c.store.PutValue(ctx, scope, sk, value, ttl)
}

// GetOrCreate collapses concurrent misses of the same key in this process into one factory
// invocation. Other processes may still invoke their own factories for the same key.
func (c *cache) GetOrCreate(ctx context.Context, key string, factory cqldata.CacheFactory, hidden bool) (string, error) {
	sk, err := storeKey(key, hidden)
	if err != nil {
		return "", err
	}
	scope, err := cqldata.ScopeOf(cqldata.RootOf(ctx, c.root))
	if err != nil {
		return "", err
	}
	if v, ok, err := c.store.GetValue(ctx, scope, sk); err != nil || ok {
		if err == nil {
			c.metrics.CacheResult("hit")
		}
		return v, err
	}
	v, err, shared := c.group.Do(scope.String()+"\x00"+sk, func() (any, error) {
		// Another caller may have completed the factory while this one was reading.
		if v, ok, err := c.store.GetValue(ctx, scope, sk); err != nil || ok {
			return v, err
		}
		c.metrics.CacheResult("miss")
		value, expiration, err := factory(ctx)
		if err != nil {
			return "", err
		}
		if err := c.upsert(ctx, scope, sk, value, expiration); err != nil {
			return "", err
		}
		c.metrics.CacheResult("create")
		return value, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		log.Debug("cache get-or-create shared a factory result", "scope", scope.String(), "key", key)
	}
	return v.(string), nil
}

func (c *cache) Remove(ctx context.Context, key string, hidden bool) error {
	sk, err := storeKey(key, hidden)
	if err != nil {
		return err
	}
	scope, err := cqldata.ScopeOf(cqldata.RootOf(ctx, c.root))
	if err != nil {
		return err
	}
	return c.store.DeleteValue(ctx, scope, sk)
}

func (c *cache) Clear(ctx context.Context, filter string, hidden bool) error {
	scope, items, err := c.matching(ctx, filter, hidden)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := c.store.DeleteValue(ctx, scope, item.Key); err != nil {
			return err
		}
	}
	return nil
}

func (c *cache) Items(ctx context.Context, filter string, hidden bool) ([]cqldata.KeyValuePair[string, string], error) {
	_, items, err := c.matching(ctx, filter, hidden)
	if err != nil {
		return nil, err
	}
	p := prefix(hidden)
	for i := range items {
		items[i].Key = strings.TrimPrefix(items[i].Key, p)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items, nil
}

// matching returns the scope's stored items whose key starts with the visibility prefix plus filter.
func (c *cache) matching(ctx context.Context, filter string, hidden bool) (cqldata.Scope, []cqldata.KeyValuePair[string, string], error) {
	scope, err := cqldata.ScopeOf(cqldata.RootOf(ctx, c.root))
	if err != nil {
		return cqldata.Scope{}, nil, err
	}
	all, err := c.store.Entries(ctx, scope)
	if err != nil {
		return cqldata.Scope{}, nil, err
	}
	p := prefix(hidden) + filter
	var r []cqldata.KeyValuePair[string, string]
	for _, item := range all {
		if strings.HasPrefix(item.Key, p) {
			r = append(r, item)
		}
	}
	return scope, r, nil
}

func hitOrMiss(ok bool) string {
	if ok {
		return "hit"
	}
	return "miss"
}
