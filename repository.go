package cqldata

import (
	"context"
	"time"
)

// FileRow is one row of the files table. A folder marker row has an empty Filename.
type FileRow struct {
	Folder   string
	Filename string
	Content  []byte
}

// FileStore persists file rows keyed by (scope, folder, filename).
// All methods take folders already normalized ("/" wrapped).
type FileStore interface {
	// GetFile returns the file content, or false if the row doesn't exist.
	GetFile(ctx context.Context, scope Scope, folder string, filename string) ([]byte, bool, error)
	// FileExists reports whether the row exists. Use an empty filename to check a folder marker.
	FileExists(ctx context.Context, scope Scope, folder string, filename string) (bool, error)
	// PutFile upserts the row.
	PutFile(ctx context.Context, scope Scope, folder string, filename string, content []byte) error
	// DeleteFile removes the row.
	DeleteFile(ctx context.Context, scope Scope, folder string, filename string) error
	// ListFolder returns the rows of exactly folder, content excluded.
	ListFolder(ctx context.Context, scope Scope, folder string) ([]FileRow, error)
	// ScanPrefix returns the rows whose folder begins with prefix, content included when withContent.
	ScanPrefix(ctx context.Context, scope Scope, prefix string, withContent bool) ([]FileRow, error)
	// DeleteFolderRows removes every row of exactly folder.
	DeleteFolderRows(ctx context.Context, scope Scope, folder string) error
}

// CacheStore persists cache values keyed by (scope, key). Keys arrive already prefixed.
type CacheStore interface {
	GetValue(ctx context.Context, scope Scope, key string) (string, bool, error)
	// PutValue upserts the value; a zero ttl means no expiration.
	PutValue(ctx context.Context, scope Scope, key string, value string, ttl time.Duration) error
	DeleteValue(ctx context.Context, scope Scope, key string) error
	// Entries returns every live entry of the scope.
	Entries(ctx context.Context, scope Scope) ([]KeyValuePair[string, string], error)
}

// LogFilter narrows a log read.
type LogFilter struct {
	// Max number of entries, 0 for no limit.
	Max int
	// Before is the exclusive upper bound cursor, NilUUID for none.
	Before UUID
	// ContentPrefix filters on content, "" for none.
	ContentPrefix string
}

// LogStore persists log entries keyed by (scope, created).
type LogStore interface {
	// AddEntry stores the entry; its ID is derived from entry.Created and returned.
	AddEntry(ctx context.Context, scope Scope, entry LogEntry) (UUID, error)
	// Entries returns matching entries newest first.
	Entries(ctx context.Context, scope Scope, filter LogFilter) ([]LogEntry, error)
	CountEntries(ctx context.Context, scope Scope, contentPrefix string) (int64, error)
	Entry(ctx context.Context, scope Scope, id UUID) (LogEntry, bool, error)
	// Days returns entry counts per day, ascending by day.
	Days(ctx context.Context, scope Scope, contentPrefix string) ([]KeyValuePair[string, int64], error)
	// Types returns entry counts per type, ascending by type.
	Types(ctx context.Context, scope Scope) ([]KeyValuePair[string, int64], error)
}

// Record is one row of a raw CQL result with its columns in select order.
type Record struct {
	Columns []string
	Values  []any
}

// Get returns the value of column, or false if the record has no such column.
func (r Record) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}
