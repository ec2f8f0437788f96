package cassandra

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/magiccloud/cqldata"
)

type fileStore struct {
	conn *Connection
}

// NewFileStore instantiates a Cassandra-backed implementation of cqldata.FileStore.
func NewFileStore(conn *Connection) cqldata.FileStore {
	return &fileStore{conn: conn}
}

func (f *fileStore) table() string {
	return f.conn.Config.Keyspaces.Files + "." + filesTable
}

// GetFile fetches the content of one file row.
func (f *fileStore) GetFile(ctx context.Context, scope cqldata.Scope, folder string, filename string) (ba []byte, found bool, err error) {
	defer f.conn.observe(filesTable, "get", time.Now(), &err)
	stmt := f.conn.Prepare(fmt.Sprintf("SELECT content FROM %s WHERE tenant = ? AND cloudlet = ? AND folder = ? AND filename = ?;", f.table()))
	err = f.conn.query(ctx, stmt, f.conn.ConsistencyBook.FileGet, scope.Tenant, scope.Cloudlet, folder, filename).Scan(&ba)
	if err == gocql.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if ba == nil {
		ba = []byte{}
	}
	return ba, true, nil
}

// FileExists checks for the row without fetching its content.
func (f *fileStore) FileExists(ctx context.Context, scope cqldata.Scope, folder string, filename string) (found bool, err error) {
	defer f.conn.observe(filesTable, "exists", time.Now(), &err)
	stmt := f.conn.Prepare(fmt.Sprintf("SELECT filename FROM %s WHERE tenant = ? AND cloudlet = ? AND folder = ? AND filename = ?;", f.table()))
	var fn string
	err = f.conn.query(ctx, stmt, f.conn.ConsistencyBook.FileGet, scope.Tenant, scope.Cloudlet, folder, filename).Scan(&fn)
	if err == gocql.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

// PutFile upserts a file (or folder marker) row.
func (f *fileStore) PutFile(ctx context.Context, scope cqldata.Scope, folder string, filename string, content []byte) (err error) {
	defer f.conn.observe(filesTable, "put", time.Now(), &err)
	stmt := f.conn.Prepare(fmt.Sprintf("INSERT INTO %s (tenant, cloudlet, folder, filename, content) VALUES(?,?,?,?,?);", f.table()))
	return f.conn.query(ctx, stmt, f.conn.ConsistencyBook.FilePut, scope.Tenant, scope.Cloudlet, folder, filename, content).Exec()
}

// DeleteFile removes one row.
func (f *fileStore) DeleteFile(ctx context.Context, scope cqldata.Scope, folder string, filename string) (err error) {
	defer f.conn.observe(filesTable, "delete", time.Now(), &err)
	stmt := f.conn.Prepare(fmt.Sprintf("DELETE FROM %s WHERE tenant = ? AND cloudlet = ? AND folder = ? AND filename = ?;", f.table()))
	return f.conn.query(ctx, stmt, f.conn.ConsistencyBook.FileRemove, scope.Tenant, scope.Cloudlet, folder, filename).Exec()
}

// ListFolder returns the rows of exactly folder.
func (f *fileStore) ListFolder(ctx context.Context, scope cqldata.Scope, folder string) (rows []cqldata.FileRow, err error) {
	defer f.conn.observe(filesTable, "list", time.Now(), &err)
	stmt := f.conn.Prepare(fmt.Sprintf("SELECT folder, filename FROM %s WHERE tenant = ? AND cloudlet = ? AND folder = ?;", f.table()))
	iter := f.conn.query(ctx, stmt, f.conn.ConsistencyBook.FileGet, scope.Tenant, scope.Cloudlet, folder).Iter()
	var fo, fn string
	for iter.Scan(&fo, &fn) {
		rows = append(rows, cqldata.FileRow{Folder: fo, Filename: fn})
	}
	if err = iter.Close(); err != nil {
		return nil, err
	}
	return rows, nil
}

// ScanPrefix reads the clustering range [prefix, upper(prefix)) of the scope's partition.
func (f *fileStore) ScanPrefix(ctx context.Context, scope cqldata.Scope, prefix string, withContent bool) (rows []cqldata.FileRow, err error) {
	defer f.conn.observe(filesTable, "scan", time.Now(), &err)
	columns := "folder, filename"
	if withContent {
		columns += ", content"
	}
	upper, bounded := prefixUpperBound(prefix)
	where := "tenant = ? AND cloudlet = ? AND folder >= ?"
	args := []any{scope.Tenant, scope.Cloudlet, prefix}
	if bounded {
		where += " AND folder < ?"
		args = append(args, upper)
	}
	stmt := f.conn.Prepare(fmt.Sprintf("SELECT %s FROM %s WHERE %s;", columns, f.table(), where))
	iter := f.conn.query(ctx, stmt, f.conn.ConsistencyBook.FileGet, args...).Iter()
	var fo, fn string
	var content []byte
	dest := []any{&fo, &fn}
	if withContent {
		dest = append(dest, &content)
	}
	for iter.Scan(dest...) {
		rows = append(rows, cqldata.FileRow{Folder: fo, Filename: fn, Content: content})
		content = nil
	}
	if err = iter.Close(); err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteFolderRows issues a clustering prefix delete of every row of folder.
func (f *fileStore) DeleteFolderRows(ctx context.Context, scope cqldata.Scope, folder string) (err error) {
	defer f.conn.observe(filesTable, "delete_folder", time.Now(), &err)
	stmt := f.conn.Prepare(fmt.Sprintf("DELETE FROM %s WHERE tenant = ? AND cloudlet = ? AND folder = ?;", f.table()))
	return f.conn.query(ctx, stmt, f.conn.ConsistencyBook.FileRemove, scope.Tenant, scope.Cloudlet, folder).Exec()
}

// prefixUpperBound returns the smallest string greater than every string beginning with prefix,
// comparing bytewise like the text clustering column does. bounded is false when no such string
// exists, i.e. prefix is empty or all 0xff bytes.
func prefixUpperBound(prefix string) (upper string, bounded bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}
