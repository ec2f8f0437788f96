package cassandra

import (
	"context"
	"strings"

	"github.com/gocql/gocql"
)

// Statement is a memoized CQL statement. gocql prepares statements on the session
// on first use, the table here keeps one entry per distinct CQL text.
type Statement struct {
	CQL string
	// Idempotent is false for statements that read the server clock or update counters,
	// which the driver must not speculatively retry.
	Idempotent bool
}

// Prepare returns the memoized statement of cql, registering it on first use.
func (c *Connection) Prepare(cql string) *Statement {
	if s, ok := c.statements.Load(cql); ok {
		return s.(*Statement)
	}
	s, loaded := c.statements.LoadOrStore(cql, &Statement{
		CQL:        cql,
		Idempotent: isIdempotent(cql),
	})
	if !loaded {
		c.statementCount.Add(1)
	}
	return s.(*Statement)
}

// Statements returns the number of distinct statements prepared on this connection.
func (c *Connection) Statements() int {
	return int(c.statementCount.Load())
}

func (c *Connection) query(ctx context.Context, stmt *Statement, consistency gocql.Consistency, args ...any) *gocql.Query {
	qry := c.Session.Query(stmt.CQL, args...).WithContext(ctx).Idempotent(stmt.Idempotent)
	if consistency > gocql.Any {
		qry.Consistency(consistency)
	}
	return qry
}

func isIdempotent(cql string) bool {
	l := strings.ToLower(cql)
	if strings.Contains(l, "now()") || strings.Contains(l, "uuid()") {
		return false
	}
	// Counter updates, e.g. "SET c = c + 1".
	if strings.HasPrefix(strings.TrimSpace(l), "update") && (strings.Contains(l, " + ") || strings.Contains(l, " - ")) {
		return false
	}
	return true
}
