package slots

import (
	"context"
	"regexp"
	"strings"

	log "log/slog"

	"github.com/magiccloud/cqldata"
	"github.com/magiccloud/cqldata/cassandra"
)

// Generic is the connection name of the default cluster and keyspace.
const Generic = "generic"

// Session executes raw CQL. *cassandra.Connection implements it.
type Session interface {
	Execute(ctx context.Context, cql string, args ...any) ([]cqldata.Record, error)
}

// Connector resolves a connection name to a session.
type Connector func(ctx context.Context, name string) (Session, error)

type sessionKey struct{}

// WithSession returns a context carrying s for the cql.execute slots signaled with it.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session placed in ctx by WithSession.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok && s != nil
}

// Register adds cql.connect and cql.execute to s, resolving connection names with connector.
func Register(s *Signaler, connector Connector) {
	s.Register("cql.connect", connect(connector))
	s.Register("cql.execute", execute)
}

// connect opens the named session and evaluates the node's children with it.
func connect(connector Connector) Slot {
	return func(ctx context.Context, s *Signaler, input *Node) error {
		name, _ := input.Value.(string)
		if name == "" {
			name = Generic
		}
		session, err := connector(ctx, name)
		if err != nil {
			return err
		}
		if err := s.Signal(WithSession(ctx, session), "eval", input); err != nil {
			return err
		}
		input.Value = nil
		return nil
	}
}

var namedMarker = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// bindArgs binds children by name when the statement has a ":name" marker for every child,
// and positionally in child order otherwise.
func bindArgs(cql string, children []*Node) []any {
	markers := map[string]bool{}
	for _, m := range namedMarker.FindAllStringSubmatch(cql, -1) {
		markers[m[1]] = true
	}
	named := len(markers) > 0
	for _, c := range children {
		if !markers[c.Name] {
			named = false
			break
		}
	}
	args := make([]any, 0, len(children))
	for _, c := range children {
		if named {
			args = append(args, cassandra.NamedArg{Name: c.Name, Value: c.Value})
		} else {
			args = append(args, c.Value)
		}
	}
	return args
}

// execute runs the node's value as CQL with its children as arguments, see bindArgs. An
// optional .filter child holds a CEL expression over row selecting which rows to keep.
// The children are replaced by one "." node per row.
func execute(ctx context.Context, s *Signaler, input *Node) error {
	session, ok := SessionFrom(ctx)
	if !ok {
		return cqldata.Errorf(cqldata.PreconditionFailed, "cql.execute must be invoked inside cql.connect")
	}
	cql, _ := input.Value.(string)
	if strings.TrimSpace(cql) == "" {
		return cqldata.Errorf(cqldata.PreconditionFailed, "cql.execute requires a CQL statement")
	}
	var filter *RowFilter
	var params []*Node
	for _, c := range input.Children {
		if c.Name == ".filter" {
			expr, _ := c.Value.(string)
			f, err := NewRowFilter(expr)
			if err != nil {
				return cqldata.Error{Code: cqldata.PreconditionFailed, Err: err}
			}
			filter = f
			continue
		}
		params = append(params, c)
	}

	records, err := session.Execute(ctx, cql, bindArgs(cql, params)...)
	if err != nil {
		return err
	}
	input.Clear()
	input.Value = nil
	skipped := 0
	for _, r := range records {
		if filter != nil {
			row := make(map[string]any, len(r.Columns))
			for i, col := range r.Columns {
				row[col] = r.Values[i]
			}
			keep, err := filter.Match(row)
			if err != nil {
				return err
			}
			if !keep {
				skipped++
				continue
			}
		}
		cur := NewNode(".", nil)
		for i, col := range r.Columns {
			cur.Add(NewNode(col, r.Values[i]))
		}
		input.Add(cur)
	}
	if skipped > 0 {
		log.Debug("cql.execute filtered rows", "kept", len(input.Children), "skipped", skipped)
	}
	return nil
}

// NewPoolConnector returns a Connector serving pooled connections. A name is either a
// cluster name of clusters, or "cluster|keyspace" to pick the session's default keyspace.
// The generic cluster must be present in clusters.
func NewPoolConnector(pool *cassandra.Pool, clusters map[string]cassandra.Config) Connector {
	return func(ctx context.Context, name string) (Session, error) {
		cluster, keyspace, hasKeyspace := strings.Cut(name, "|")
		config, ok := clusters[cluster]
		if !ok {
			return nil, cqldata.Errorf(cqldata.ConfigurationError, "no cql cluster named '%s'", cluster)
		}
		if hasKeyspace {
			config.Keyspace = keyspace
		}
		if config.Keyspace == "" {
			config.Keyspace = config.Keyspaces.Generic
			if config.Keyspace == "" {
				config.Keyspace = cassandra.DefaultKeyspaces().Generic
			}
		}
		conn, err := pool.Connection(config)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
