package cqldata

import (
	"context"
	"io"
	"time"
)

// File is a path and its content, returned by bulk loads.
type File struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

// FileService manages files. Paths are absolute, i.e. under the tenant root folder.
type FileService interface {
	// Exists reports whether the file exists.
	Exists(ctx context.Context, path string) (bool, error)
	// Load returns the file content as text.
	Load(ctx context.Context, path string) (string, error)
	// LoadBinary returns the file content.
	LoadBinary(ctx context.Context, path string) ([]byte, error)
	// Save overwrites the file with text content. The folder must exist.
	Save(ctx context.Context, path string, content string) error
	// SaveBinary overwrites the file with content. The folder must exist.
	SaveBinary(ctx context.Context, path string, content []byte) error
	// Delete removes the file.
	Delete(ctx context.Context, path string) error
	// Copy copies source to destination. The destination folder must exist.
	Copy(ctx context.Context, source string, destination string) error
	// Move saves destination then deletes source. Not atomic.
	Move(ctx context.Context, source string, destination string) error
	// ListFiles returns the sorted files directly inside folder, optionally filtered by extension.
	ListFiles(ctx context.Context, folder string, extension string) ([]string, error)
	// ListFilesRecursively returns the sorted files in folder and all its descendants.
	ListFilesRecursively(ctx context.Context, folder string, extension string) ([]string, error)
	// LoadRecursively returns path and content of every file in folder and its descendants, sorted by path.
	LoadRecursively(ctx context.Context, folder string, extension string) ([]File, error)
}

// FolderService manages folders. Paths are absolute and returned folders end with "/".
type FolderService interface {
	Create(ctx context.Context, path string) error
	// Delete removes the folder and everything below it. Not atomic.
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	// ListFolders returns the immediate sub folders.
	ListFolders(ctx context.Context, folder string) ([]string, error)
	// ListFoldersRecursively returns all descendant folders.
	ListFoldersRecursively(ctx context.Context, folder string) ([]string, error)
	Copy(ctx context.Context, source string, destination string) error
	Move(ctx context.Context, source string, destination string) error
}

// StreamService opens and saves files as byte streams.
type StreamService interface {
	OpenFile(ctx context.Context, path string) (io.ReadCloser, error)
	SaveFile(ctx context.Context, r io.Reader, path string, overwrite bool) error
}

// CacheFactory creates a value and its absolute (UTC) expiration on a cache miss.
type CacheFactory func(ctx context.Context) (value string, expiration time.Time, err error)

// Cache is a tenant scoped key/value cache with two disjoint namespaces, visible and hidden.
type Cache interface {
	// Get returns the value and true, or false on a miss.
	Get(ctx context.Context, key string, hidden bool) (string, bool, error)
	// Upsert inserts or overwrites the item and refreshes its time to live.
	Upsert(ctx context.Context, key string, value string, utcExpiration time.Time, hidden bool) error
	// GetOrCreate returns the cached value, invoking factory on a miss.
	GetOrCreate(ctx context.Context, key string, factory CacheFactory, hidden bool) (string, error)
	Remove(ctx context.Context, key string, hidden bool) error
	// Clear removes every item whose key starts with filter.
	Clear(ctx context.Context, filter string, hidden bool) error
	// Items returns every item whose key starts with filter, sorted by key.
	Items(ctx context.Context, filter string, hidden bool) ([]KeyValuePair[string, string], error)
}

// LogEntry is one persisted log record.
type LogEntry struct {
	ID        UUID              `json:"id"`
	Created   time.Time         `json:"created"`
	Day       string            `json:"-"`
	Type      string            `json:"type"`
	Content   string            `json:"content"`
	Exception string            `json:"exception,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Logger persists tenant log records. Writes below the configured level are dropped.
type Logger interface {
	Debug(ctx context.Context, content string, meta map[string]string) error
	Info(ctx context.Context, content string, meta map[string]string) error
	Error(ctx context.Context, content string, meta map[string]string, stackTrace string) error
	Fatal(ctx context.Context, content string, meta map[string]string, stackTrace string) error
}

// Capabilities describes which optional log queries an adapter supports.
type Capabilities struct {
	CanFilter    bool `json:"can_filter"`
	CanTimeShift bool `json:"can_timeshift"`
}

// LogQuery reads tenant log records.
type LogQuery interface {
	// Query returns up to max entries created before fromID (exclusive, "" for the newest), newest first.
	Query(ctx context.Context, max int, fromID string, content string) ([]LogEntry, error)
	Count(ctx context.Context, content string) (int64, error)
	Get(ctx context.Context, id string) (LogEntry, error)
	// Timeshift returns the number of entries per day.
	Timeshift(ctx context.Context, content string) ([]KeyValuePair[string, int64], error)
	// Types returns the number of entries per log type.
	Types(ctx context.Context) ([]KeyValuePair[string, int64], error)
	Capabilities() Capabilities
}
