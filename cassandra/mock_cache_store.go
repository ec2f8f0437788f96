package cassandra

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/magiccloud/cqldata"
)

type cacheKey struct {
	scope cqldata.Scope
	key   string
}

type cacheItem struct {
	value   string
	expires time.Time
}

type mockCacheStore struct {
	mux    sync.Mutex
	lookup map[cacheKey]cacheItem
}

// NewMockCacheStore instantiates a new (mocked) in-memory cache store. Time to live is
// evaluated against cqldata.Now so tests can move the clock.
func NewMockCacheStore() cqldata.CacheStore {
	return &mockCacheStore{
		lookup: make(map[cacheKey]cacheItem),
	}
}

func (m *mockCacheStore) GetValue(ctx context.Context, scope cqldata.Scope, key string) (string, bool, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	item, ok := m.lookup[cacheKey{scope, key}]
	if !ok || item.expired(cqldata.Now()) {
		return "", false, nil
	}
	return item.value, true, nil
}

func (m *mockCacheStore) PutValue(ctx context.Context, scope cqldata.Scope, key string, value string, ttl time.Duration) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	item := cacheItem{value: value}
	if ttl > 0 {
		item.expires = cqldata.Now().Add(ttl)
	}
	m.lookup[cacheKey{scope, key}] = item
	return nil
}

func (m *mockCacheStore) DeleteValue(ctx context.Context, scope cqldata.Scope, key string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	delete(m.lookup, cacheKey{scope, key})
	return nil
}

func (m *mockCacheStore) Entries(ctx context.Context, scope cqldata.Scope) ([]cqldata.KeyValuePair[string, string], error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	now := cqldata.Now()
	var r []cqldata.KeyValuePair[string, string]
	for k, item := range m.lookup {
		if k.scope != scope {
			continue
		}
		if item.expired(now) {
			delete(m.lookup, k)
			continue
		}
		r = append(r, cqldata.KeyValuePair[string, string]{Key: k.key, Value: item.value})
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Key < r[j].Key })
	return r, nil
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expires.IsZero() && !now.Before(i.expires)
}
