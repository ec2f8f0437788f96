package cassandra

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestPrefixUpperBound(t *testing.T) {
	tests := []struct {
		prefix  string
		upper   string
		bounded bool
	}{
		{"/docs/", "/docs0", true},
		{"/", "0", true},
		{"a\xff", "b", true},
		{"", "", false},
		{"\xff\xff", "", false},
	}
	for _, tt := range tests {
		upper, bounded := prefixUpperBound(tt.prefix)
		if upper != tt.upper || bounded != tt.bounded {
			t.Errorf("prefixUpperBound(%q) = (%q, %v), want (%q, %v)", tt.prefix, upper, bounded, tt.upper, tt.bounded)
		}
	}
}

func TestPrefixRangeMatchesHasPrefix(t *testing.T) {
	prefix := "/docs/"
	upper, _ := prefixUpperBound(prefix)
	for _, f := range []string{"/docs/", "/docs/a/", "/docs/zz/y/", "/docs", "/docs0/", "/doc/", "/e/", "/"} {
		inRange := f >= prefix && f < upper
		if inRange != strings.HasPrefix(f, prefix) {
			t.Errorf("folder %q: range %v, prefix %v", f, inRange, strings.HasPrefix(f, prefix))
		}
	}
}

func TestSchemaStatements(t *testing.T) {
	c := withDefaults(Config{})
	stmts := schemaStatements(c)
	// 4 distinct keyspaces + 3 tables.
	if len(stmts) != 7 {
		t.Fatalf("got %d statements", len(stmts))
	}
	if !strings.Contains(stmts[6], "magic_log.log") || !strings.Contains(stmts[6], "CLUSTERING ORDER BY (created DESC)") {
		t.Errorf("unexpected log table statement: %s", stmts[6])
	}

	c.Keyspaces.Cache = c.Keyspaces.Files
	if got := len(schemaStatements(c)); got != 6 {
		t.Errorf("shared keyspace should be created once, got %d statements", got)
	}
}

func TestDefaults(t *testing.T) {
	c := withDefaults(Config{})
	if c.ClusterHosts[0] != "127.0.0.1" {
		t.Errorf("host %v", c.ClusterHosts)
	}
	if c.Keyspaces != DefaultKeyspaces() {
		t.Errorf("keyspaces %+v", c.Keyspaces)
	}
	if c.Consistency.String() != "LOCAL_QUORUM" {
		t.Errorf("consistency %v", c.Consistency)
	}
}

func TestPrepareMemoizes(t *testing.T) {
	c := &Connection{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Prepare(fmt.Sprintf("SELECT * FROM t WHERE k = %d;", i%4))
		}(i)
	}
	wg.Wait()
	if c.Statements() != 4 {
		t.Errorf("Statements() = %d, want 4", c.Statements())
	}
	if c.Prepare("SELECT * FROM t WHERE k = 1;") != c.Prepare("SELECT * FROM t WHERE k = 1;") {
		t.Error("expected the same statement instance")
	}
}

func TestIsIdempotent(t *testing.T) {
	if !isIdempotent("SELECT * FROM x;") {
		t.Error("select should be idempotent")
	}
	if isIdempotent("INSERT INTO x (id, t) VALUES (?, now());") {
		t.Error("now() is not idempotent")
	}
	if isIdempotent("UPDATE c SET hits = hits + 1 WHERE id = ?;") {
		t.Error("counter update is not idempotent")
	}
}

func TestPoolMemoizesPerHostsAndKeyspace(t *testing.T) {
	p := NewPool()
	opened := 0
	p.open = func(c Config) (*Connection, error) {
		opened++
		return &Connection{Config: c}, nil
	}
	a, _ := p.Connection(Config{ClusterHosts: []string{"b", "a"}, Keyspace: "magic"})
	b, _ := p.Connection(Config{ClusterHosts: []string{"a", "b"}, Keyspace: "magic"})
	if a != b {
		t.Error("expected the same pooled connection for the same host set")
	}
	if _, err := p.Connection(Config{ClusterHosts: []string{"a", "b"}, Keyspace: "other"}); err != nil {
		t.Fatal(err)
	}
	if opened != 2 || p.Len() != 2 {
		t.Errorf("opened %d, pooled %d, want 2 and 2", opened, p.Len())
	}
	p.Close()
	if p.Len() != 0 {
		t.Error("pool should be empty after Close")
	}
}
