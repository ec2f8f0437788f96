// Package redis contains a Redis backed cqldata.CacheStore. Expiration uses native key TTL
// and iteration uses SCAN over the scope's key namespace.
package redis

import (
	"context"
	"crypto/tls"

	"github.com/redis/go-redis/v9"
)

// Redis configurable options.
type Options struct {
	// Redis server(cluster) address.
	Address string
	// Password required when connecting to the Redis server.
	Password string
	// DB to connect to.
	DB int
	// TLS config.
	TLSConfig *tls.Config
	// KeyPrefix namespaces every key written by the store. Defaults to "cqldata".
	KeyPrefix string
}

// Connection contains Redis client connection object and the Options used to connect.
type Connection struct {
	Client  *redis.Client
	Options Options
}

// DefaultOptions.
func DefaultOptions() Options {
	return Options{
		Address:   "localhost:6379",
		Password:  "", // no password set
		DB:        0,  // use default DB
		KeyPrefix: "cqldata",
	}
}

// OpenConnection creates a new client. Callers own it and must Close it.
func OpenConnection(options Options) *Connection {
	if options.KeyPrefix == "" {
		options.KeyPrefix = DefaultOptions().KeyPrefix
	}
	client := redis.NewClient(&redis.Options{
		TLSConfig: options.TLSConfig,
		Addr:      options.Address,
		Password:  options.Password,
		DB:        options.DB})

	return &Connection{
		Client:  client,
		Options: options,
	}
}

// Ping tests connectivity for redis (PONG should be returned).
func (c *Connection) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Close the connection if open.
func (c *Connection) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	err := c.Client.Close()
	c.Client = nil
	return err
}
