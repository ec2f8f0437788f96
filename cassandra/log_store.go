package cassandra

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/magiccloud/cqldata"
)

// DayLayout formats the day column of the log table.
const DayLayout = "2006-01-02"

type logStore struct {
	conn *Connection
}

// NewLogStore instantiates a Cassandra-backed implementation of cqldata.LogStore.
// Content prefix filters are issued as LIKE with ALLOW FILTERING, which ScyllaDB runs as
// is and Cassandra requires a SASI/SAI index on the content column for.
func NewLogStore(conn *Connection) cqldata.LogStore {
	return &logStore{conn: conn}
}

func (l *logStore) table() string {
	return l.conn.Config.Keyspaces.Log + "." + logTable
}

// AddEntry inserts the entry; the row key is a timeuuid of entry.Created. Empty exception
// and meta columns are left out so they don't write null cells.
func (l *logStore) AddEntry(ctx context.Context, scope cqldata.Scope, entry cqldata.LogEntry) (id cqldata.UUID, err error) {
	defer l.conn.observe(logTable, "add", time.Now(), &err)
	if entry.Created.IsZero() {
		entry.Created = cqldata.Now()
	}
	created := gocql.UUIDFromTime(entry.Created)

	columns := []string{"tenant", "cloudlet", "created", "day", "type", "content"}
	args := []any{scope.Tenant, scope.Cloudlet, created, entry.Created.UTC().Format(DayLayout), entry.Type, entry.Content}
	if entry.Exception != "" {
		columns = append(columns, "exception")
		args = append(args, entry.Exception)
	}
	if len(entry.Meta) > 0 {
		columns = append(columns, "meta")
		args = append(args, entry.Meta)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",")
	stmt := l.conn.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES(%s);", l.table(), strings.Join(columns, ", "), placeholders))
	if err = l.conn.query(ctx, stmt, l.conn.ConsistencyBook.LogAdd, args...).Exec(); err != nil {
		return cqldata.NilUUID, err
	}
	return cqldata.UUID(created), nil
}

// Entries pages the partition newest first, starting below filter.Before.
func (l *logStore) Entries(ctx context.Context, scope cqldata.Scope, filter cqldata.LogFilter) (entries []cqldata.LogEntry, err error) {
	defer l.conn.observe(logTable, "query", time.Now(), &err)
	var sb strings.Builder
	args := []any{scope.Tenant, scope.Cloudlet}
	fmt.Fprintf(&sb, "SELECT created, type, content, exception, meta FROM %s WHERE tenant = ? AND cloudlet = ?", l.table())
	if !filter.Before.IsNil() {
		sb.WriteString(" AND created < ?")
		args = append(args, gocql.UUID(filter.Before))
	}
	if filter.ContentPrefix != "" {
		sb.WriteString(" AND content LIKE ?")
		args = append(args, filter.ContentPrefix+"%")
	}
	sb.WriteString(" ORDER BY created DESC")
	if filter.Max > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, filter.Max)
	}
	if filter.ContentPrefix != "" {
		sb.WriteString(" ALLOW FILTERING")
	}
	sb.WriteString(";")

	stmt := l.conn.Prepare(sb.String())
	iter := l.conn.query(ctx, stmt, l.conn.ConsistencyBook.LogGet, args...).Iter()
	var e logRow
	for iter.Scan(e.dest()...) {
		entries = append(entries, e.entry())
		e = logRow{}
	}
	if err = iter.Close(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (l *logStore) CountEntries(ctx context.Context, scope cqldata.Scope, contentPrefix string) (count int64, err error) {
	defer l.conn.observe(logTable, "count", time.Now(), &err)
	cql := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant = ? AND cloudlet = ?", l.table())
	args := []any{scope.Tenant, scope.Cloudlet}
	if contentPrefix != "" {
		cql += " AND content LIKE ? ALLOW FILTERING"
		args = append(args, contentPrefix+"%")
	}
	stmt := l.conn.Prepare(cql + ";")
	err = l.conn.query(ctx, stmt, l.conn.ConsistencyBook.LogGet, args...).Scan(&count)
	return count, err
}

func (l *logStore) Entry(ctx context.Context, scope cqldata.Scope, id cqldata.UUID) (entry cqldata.LogEntry, found bool, err error) {
	defer l.conn.observe(logTable, "get", time.Now(), &err)
	stmt := l.conn.Prepare(fmt.Sprintf("SELECT created, type, content, exception, meta FROM %s WHERE tenant = ? AND cloudlet = ? AND created = ?;", l.table()))
	var e logRow
	err = l.conn.query(ctx, stmt, l.conn.ConsistencyBook.LogGet, scope.Tenant, scope.Cloudlet, gocql.UUID(id)).Scan(e.dest()...)
	if err == gocql.ErrNotFound {
		return cqldata.LogEntry{}, false, nil
	}
	if err != nil {
		return cqldata.LogEntry{}, false, err
	}
	return e.entry(), true, nil
}

// Days counts entries per day column. CQL GROUP BY only accepts primary key columns,
// so the histogram is aggregated here.
func (l *logStore) Days(ctx context.Context, scope cqldata.Scope, contentPrefix string) (days []cqldata.KeyValuePair[string, int64], err error) {
	defer l.conn.observe(logTable, "days", time.Now(), &err)
	cql := fmt.Sprintf("SELECT day FROM %s WHERE tenant = ? AND cloudlet = ?", l.table())
	args := []any{scope.Tenant, scope.Cloudlet}
	if contentPrefix != "" {
		cql += " AND content LIKE ? ALLOW FILTERING"
		args = append(args, contentPrefix+"%")
	}
	return l.histogram(ctx, cql+";", args)
}

// Types counts entries per type column.
func (l *logStore) Types(ctx context.Context, scope cqldata.Scope) (types []cqldata.KeyValuePair[string, int64], err error) {
	defer l.conn.observe(logTable, "types", time.Now(), &err)
	return l.histogram(ctx, fmt.Sprintf("SELECT type FROM %s WHERE tenant = ? AND cloudlet = ?;", l.table()), []any{scope.Tenant, scope.Cloudlet})
}

func (l *logStore) histogram(ctx context.Context, cql string, args []any) ([]cqldata.KeyValuePair[string, int64], error) {
	stmt := l.conn.Prepare(cql)
	iter := l.conn.query(ctx, stmt, l.conn.ConsistencyBook.LogGet, args...).Iter()
	counts := make(map[string]int64)
	var v string
	for iter.Scan(&v) {
		counts[v]++
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return sortedCounts(counts), nil
}

func sortedCounts(counts map[string]int64) []cqldata.KeyValuePair[string, int64] {
	r := make([]cqldata.KeyValuePair[string, int64], 0, len(counts))
	for k, c := range counts {
		r = append(r, cqldata.KeyValuePair[string, int64]{Key: k, Value: c})
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Key < r[j].Key })
	return r
}

type logRow struct {
	created   gocql.UUID
	typ       string
	content   string
	exception string
	meta      map[string]string
}

func (r *logRow) dest() []any {
	return []any{&r.created, &r.typ, &r.content, &r.exception, &r.meta}
}

func (r *logRow) entry() cqldata.LogEntry {
	created := r.created.Time().UTC()
	return cqldata.LogEntry{
		ID:        cqldata.UUID(r.created),
		Created:   created,
		Day:       created.Format(DayLayout),
		Type:      r.typ,
		Content:   r.content,
		Exception: r.exception,
		Meta:      r.meta,
	}
}
