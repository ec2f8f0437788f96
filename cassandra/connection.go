// Package cassandra contains the Cassandra/ScyllaDB backed stores of the files, cache and log tables,
// the connection (session and statement cache) they share, and in-memory mocks of the stores.
package cassandra

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocql/gocql"

	"github.com/magiccloud/cqldata/metrics"
)

// Keyspaces names the keyspace of each table group.
type Keyspaces struct {
	// Files holds the files table (file rows and folder marker rows).
	Files string
	// Cache holds the cache table.
	Cache string
	// Log holds the log table.
	Log string
	// Generic is the keyspace raw CQL executes against by default.
	Generic string
}

// DefaultKeyspaces returns magic_files, magic_cache, magic_log and magic.
func DefaultKeyspaces() Keyspaces {
	return Keyspaces{
		Files:   "magic_files",
		Cache:   "magic_cache",
		Log:     "magic_log",
		Generic: "magic",
	}
}

// Config contains configuration for connecting to a Cassandra cluster.
type Config struct {
	// ClusterHosts lists contact points for the Cassandra cluster. Defaults to 127.0.0.1.
	ClusterHosts []string
	// Keyspace is the session's default keyspace, used by raw CQL. Empty for none; the
	// stores always use fully qualified table names.
	Keyspace string
	// Keyspaces of the tables managed by the stores.
	Keyspaces Keyspaces
	// Consistency is the default consistency level for queries.
	Consistency gocql.Consistency
	// ConnectionTimeout is the session connection timeout.
	ConnectionTimeout time.Duration
	// Authenticator is used when the cluster requires authentication.
	Authenticator gocql.Authenticator
	// ReplicationClause defines the keyspace replication (e.g., SimpleStrategy).
	ReplicationClause string
	// SkipSchema disables the CREATE KEYSPACE/TABLE IF NOT EXISTS pass on open.
	SkipSchema bool

	// ConsistencyBook allows overriding per-API consistency levels.
	ConsistencyBook ConsistencyBook
}

// ConsistencyBook enumerates per-API consistency levels used by this package.
type ConsistencyBook struct {
	FileGet    gocql.Consistency
	FilePut    gocql.Consistency
	FileRemove gocql.Consistency

	CacheGet    gocql.Consistency
	CachePut    gocql.Consistency
	CacheRemove gocql.Consistency

	LogAdd gocql.Consistency
	LogGet gocql.Consistency
}

// Connection wraps a Cassandra session, its configuration and its prepared statement table.
type Connection struct {
	Session *gocql.Session
	Config

	statements     sync.Map
	statementCount atomic.Int64
	metrics        *metrics.Metrics
}

// OpenConnection opens a new Connection using the provided config. Callers own the
// returned Connection and must Close it; use a Pool to share connections.
func OpenConnection(config Config) (*Connection, error) {
	config = withDefaults(config)

	cluster := gocql.NewCluster(config.ClusterHosts...)
	cluster.Consistency = config.Consistency
	if config.ConnectionTimeout > 0 {
		cluster.ConnectTimeout = config.ConnectionTimeout
	}
	if config.Authenticator != nil {
		cluster.Authenticator = config.Authenticator
		// Clear the authenticator just to be safer, we don't need to keep it hanging around.
		config.Authenticator = nil
	}
	if !config.SkipSchema {
		// The default keyspace may not exist yet, thus, create the schema on a keyspace-less session first.
		if err := createSchema(cluster, config); err != nil {
			return nil, err
		}
	}
	cluster.Keyspace = config.Keyspace

	s, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	return &Connection{
		Config:  config,
		Session: s,
	}, nil
}

func withDefaults(config Config) Config {
	if len(config.ClusterHosts) == 0 {
		config.ClusterHosts = []string{"127.0.0.1"}
	}
	d := DefaultKeyspaces()
	if config.Keyspaces.Files == "" {
		config.Keyspaces.Files = d.Files
	}
	if config.Keyspaces.Cache == "" {
		config.Keyspaces.Cache = d.Cache
	}
	if config.Keyspaces.Log == "" {
		config.Keyspaces.Log = d.Log
	}
	if config.Keyspaces.Generic == "" {
		config.Keyspaces.Generic = d.Generic
	}
	if config.Consistency == gocql.Any {
		// Defaults to LocalQuorum consistency. You should set it to an appropriate level.
		config.Consistency = gocql.LocalQuorum
	}
	if config.ReplicationClause == "" {
		// Specify an appropriate replication feature.
		config.ReplicationClause = "{'class':'SimpleStrategy', 'replication_factor':1}"
	}
	return config
}

// SetMetrics makes the connection record query durations and errors on m.
func (c *Connection) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// Close closes the session.
func (c *Connection) Close() {
	if c == nil || c.Session == nil {
		return
	}
	c.Session.Close()
}

// Ping runs a trivial query to verify the cluster is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	if c.Session == nil {
		return fmt.Errorf("cassandra connection is closed; call OpenConnection(config) to open it")
	}
	var v string
	return c.Session.Query("SELECT release_version FROM system.local;").WithContext(ctx).Scan(&v)
}

// observe is deferred by the stores with a pointer to their named error result.
func (c *Connection) observe(table string, op string, start time.Time, err *error) {
	var e error
	if err != nil && *err != gocql.ErrNotFound {
		e = *err
	}
	c.metrics.ObserveQuery(table, op, start, e)
}
