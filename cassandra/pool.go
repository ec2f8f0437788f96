package cassandra

import (
	"slices"
	"strings"
	"sync"

	log "log/slog"
)

// Pool memoizes connections per contact point set and default keyspace.
// It is safe for concurrent use.
type Pool struct {
	mux         sync.Mutex
	connections map[string]*Connection
	open        func(Config) (*Connection, error)
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{
		connections: make(map[string]*Connection),
		open:        OpenConnection,
	}
}

// Connection returns the pooled connection of config, opening it on first use.
func (p *Pool) Connection(config Config) (*Connection, error) {
	key := poolKey(config)
	p.mux.Lock()
	defer p.mux.Unlock()
	if c, ok := p.connections[key]; ok {
		return c, nil
	}
	c, err := p.open(config)
	if err != nil {
		return nil, err
	}
	log.Debug("opened cassandra connection", "hosts", key)
	p.connections[key] = c
	return c, nil
}

// Close closes every pooled connection and empties the pool.
func (p *Pool) Close() {
	p.mux.Lock()
	defer p.mux.Unlock()
	for k, c := range p.connections {
		c.Close()
		delete(p.connections, k)
	}
}

// Len returns the number of pooled connections.
func (p *Pool) Len() int {
	p.mux.Lock()
	defer p.mux.Unlock()
	return len(p.connections)
}

func poolKey(config Config) string {
	hosts := slices.Clone(config.ClusterHosts)
	if len(hosts) == 0 {
		hosts = []string{"127.0.0.1"}
	}
	slices.Sort(hosts)
	return strings.Join(hosts, ",") + "|" + config.Keyspace
}
