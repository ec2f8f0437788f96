package cassandra

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/magiccloud/cqldata"
)

type cacheStore struct {
	conn *Connection
}

// NewCacheStore instantiates a Cassandra-backed implementation of cqldata.CacheStore.
// Expiration is delegated to the server with USING TTL.
func NewCacheStore(conn *Connection) cqldata.CacheStore {
	return &cacheStore{conn: conn}
}

func (c *cacheStore) table() string {
	return c.conn.Config.Keyspaces.Cache + "." + cacheTable
}

func (c *cacheStore) GetValue(ctx context.Context, scope cqldata.Scope, key string) (value string, found bool, err error) {
	defer c.conn.observe(cacheTable, "get", time.Now(), &err)
	stmt := c.conn.Prepare(fmt.Sprintf("SELECT value FROM %s WHERE tenant = ? AND cloudlet = ? AND key = ?;", c.table()))
	err = c.conn.query(ctx, stmt, c.conn.ConsistencyBook.CacheGet, scope.Tenant, scope.Cloudlet, key).Scan(&value)
	if err == gocql.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (c *cacheStore) PutValue(ctx context.Context, scope cqldata.Scope, key string, value string, ttl time.Duration) (err error) {
	defer c.conn.observe(cacheTable, "put", time.Now(), &err)
	if ttl <= 0 {
		stmt := c.conn.Prepare(fmt.Sprintf("INSERT INTO %s (tenant, cloudlet, key, value) VALUES(?,?,?,?);", c.table()))
		return c.conn.query(ctx, stmt, c.conn.ConsistencyBook.CachePut, scope.Tenant, scope.Cloudlet, key, value).Exec()
	}
	seconds := int(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	stmt := c.conn.Prepare(fmt.Sprintf("INSERT INTO %s (tenant, cloudlet, key, value) VALUES(?,?,?,?) USING TTL ?;", c.table()))
	return c.conn.query(ctx, stmt, c.conn.ConsistencyBook.CachePut, scope.Tenant, scope.Cloudlet, key, value, seconds).Exec()
}

func (c *cacheStore) DeleteValue(ctx context.Context, scope cqldata.Scope, key string) (err error) {
	defer c.conn.observe(cacheTable, "delete", time.Now(), &err)
	stmt := c.conn.Prepare(fmt.Sprintf("DELETE FROM %s WHERE tenant = ? AND cloudlet = ? AND key = ?;", c.table()))
	return c.conn.query(ctx, stmt, c.conn.ConsistencyBook.CacheRemove, scope.Tenant, scope.Cloudlet, key).Exec()
}

// Entries reads the scope's partition; expired rows are already filtered by the server.
func (c *cacheStore) Entries(ctx context.Context, scope cqldata.Scope) (items []cqldata.KeyValuePair[string, string], err error) {
	defer c.conn.observe(cacheTable, "scan", time.Now(), &err)
	stmt := c.conn.Prepare(fmt.Sprintf("SELECT key, value FROM %s WHERE tenant = ? AND cloudlet = ?;", c.table()))
	iter := c.conn.query(ctx, stmt, c.conn.ConsistencyBook.CacheGet, scope.Tenant, scope.Cloudlet).Iter()
	var k, v string
	for iter.Scan(&k, &v) {
		items = append(items, cqldata.KeyValuePair[string, string]{Key: k, Value: v})
	}
	if err = iter.Close(); err != nil {
		return nil, err
	}
	return items, nil
}
