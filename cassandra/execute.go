package cassandra

import (
	"context"
	"reflect"
	"time"

	"github.com/gocql/gocql"

	"github.com/magiccloud/cqldata"
)

// NamedArg binds Value to the ":Name" marker of a raw CQL statement.
type NamedArg struct {
	Name  string
	Value any
}

// Execute runs raw CQL on the session's default keyspace and returns the result rows with
// their columns in select order. Statements without a result set return no records.
func (c *Connection) Execute(ctx context.Context, cql string, args ...any) (records []cqldata.Record, err error) {
	defer c.observe("raw", "execute", time.Now(), &err)
	stmt := c.Prepare(cql)
	for i, a := range args {
		if n, ok := a.(NamedArg); ok {
			args[i] = gocql.NamedValue(n.Name, n.Value)
		}
	}
	iter := c.query(ctx, stmt, c.Consistency, args...).Iter()
	if len(iter.Columns()) == 0 {
		return nil, iter.Close()
	}
	rd, err := iter.RowData()
	if err != nil {
		iter.Close()
		return nil, err
	}
	for iter.Scan(rd.Values...) {
		r := cqldata.Record{
			Columns: rd.Columns,
			Values:  make([]any, len(rd.Values)),
		}
		for i, v := range rd.Values {
			r.Values[i] = reflect.ValueOf(v).Elem().Interface()
		}
		records = append(records, r)
	}
	if err = iter.Close(); err != nil {
		return nil, err
	}
	return records, nil
}
