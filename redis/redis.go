package redis

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magiccloud/cqldata"
	"github.com/magiccloud/cqldata/metrics"
)

const scanBatch = 500

type cacheStore struct {
	conn    *Connection
	metrics *metrics.Metrics
}

// NewCacheStore returns a cqldata.CacheStore over the connection. Keys are stored
// as "{prefix}:{tenant}:{cloudlet}:{key}" with tenant and cloudlet query-escaped.
func NewCacheStore(conn *Connection, m *metrics.Metrics) cqldata.CacheStore {
	return &cacheStore{
		conn:    conn,
		metrics: m,
	}
}

// keyNotFound will detect whether error signifies key not found by Redis.
func keyNotFound(err error) bool {
	return err == redis.Nil
}

// namespace escapes the scope segments so a ":" inside one can't shift the boundary.
func (c *cacheStore) namespace(scope cqldata.Scope) string {
	return fmt.Sprintf("%s:%s:%s:", c.conn.Options.KeyPrefix, url.QueryEscape(scope.Tenant), url.QueryEscape(scope.Cloudlet))
}

func (c *cacheStore) checkOpen() error {
	if c.conn == nil || c.conn.Client == nil {
		return fmt.Errorf("Redis connection is not open, can't use the cache store")
	}
	return nil
}

// GetValue executes the redis Get command.
func (c *cacheStore) GetValue(ctx context.Context, scope cqldata.Scope, key string) (string, bool, error) {
	if err := c.checkOpen(); err != nil {
		return "", false, err
	}
	start := time.Now()
	s, err := c.conn.Client.Get(ctx, c.namespace(scope)+key).Result()
	// Convert key not found into returning false and nil err.
	if keyNotFound(err) {
		c.metrics.ObserveQuery("redis", "get", start, nil)
		return "", false, nil
	}
	c.metrics.ObserveQuery("redis", "get", start, err)
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

// PutValue executes the redis Set command, a zero ttl sets no expiration.
func (c *cacheStore) PutValue(ctx context.Context, scope cqldata.Scope, key string, value string, ttl time.Duration) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	start := time.Now()
	err := c.conn.Client.Set(ctx, c.namespace(scope)+key, value, ttl).Err()
	c.metrics.ObserveQuery("redis", "put", start, err)
	return err
}

// DeleteValue executes the redis Del command.
func (c *cacheStore) DeleteValue(ctx context.Context, scope cqldata.Scope, key string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	start := time.Now()
	err := c.conn.Client.Del(ctx, c.namespace(scope)+key).Err()
	c.metrics.ObserveQuery("redis", "delete", start, err)
	return err
}

// Entries scans the scope's namespace and fetches the values in batches with MGET.
// Keys expiring between SCAN and MGET are skipped.
func (c *cacheStore) Entries(ctx context.Context, scope cqldata.Scope) (items []cqldata.KeyValuePair[string, string], err error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { c.metrics.ObserveQuery("redis", "scan", start, err) }()

	ns := c.namespace(scope)
	iter := c.conn.Client.Scan(ctx, 0, escapeGlob(ns)+"*", scanBatch).Iterator()
	keys := make([]string, 0, scanBatch)
	flush := func() error {
		if len(keys) == 0 {
			return nil
		}
		values, err := c.conn.Client.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			items = append(items, cqldata.KeyValuePair[string, string]{Key: strings.TrimPrefix(keys[i], ns), Value: s})
		}
		keys = keys[:0]
		return nil
	}
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == scanBatch {
			if err = flush(); err != nil {
				return nil, err
			}
		}
	}
	if err = iter.Err(); err != nil {
		return nil, err
	}
	if err = flush(); err != nil {
		return nil, err
	}
	return items, nil
}

// escapeGlob escapes the SCAN MATCH glob metacharacters of s.
func escapeGlob(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteRune('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
