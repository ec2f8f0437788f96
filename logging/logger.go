// Package logging persists and queries tenant log records over any cqldata.LogStore.
package logging

import (
	"context"
	"strings"
	"time"

	"github.com/magiccloud/cqldata"
	"github.com/magiccloud/cqldata/metrics"
)

// Log types, which double as configurable levels together with Off.
const (
	Debug = "debug"
	Info  = "info"
	Error = "error"
	Fatal = "fatal"
	Off   = "off"
)

// DefaultMax is the page size of Query when max is not positive.
const DefaultMax = 10

// levels maps a configured level to the log types it persists.
var levels = map[string]map[string]bool{
	Debug: {Debug: true, Info: true, Error: true, Fatal: true},
	Info:  {Info: true, Error: true, Fatal: true},
	Error: {Error: true, Fatal: true},
	Fatal: {Fatal: true},
	Off:   {},
}

// Options configures a Logger.
type Options struct {
	// Level is one of debug, info, error, fatal or off. Empty means debug.
	Level string `yaml:"level" json:"level"`
	// AllowFiltering enables content prefix filters, which the store serves with ALLOW FILTERING.
	AllowFiltering bool `yaml:"allow_filtering" json:"allow_filtering"`
	// TimeShift enables the per day histogram.
	TimeShift bool `yaml:"timeshift" json:"timeshift"`
}

// Logger is both the write (cqldata.Logger) and the read (cqldata.LogQuery) side of the tenant log.
type Logger struct {
	store   cqldata.LogStore
	root    cqldata.RootResolver
	options Options
	accept  map[string]bool
	metrics *metrics.Metrics
}

// ParseLevel normalizes a configured level. Empty means debug, anything outside
// debug, info, error, fatal and off is a configuration error.
func ParseLevel(level string) (string, error) {
	l := strings.ToLower(strings.TrimSpace(level))
	if l == "" {
		return Debug, nil
	}
	if _, ok := levels[l]; !ok {
		return "", cqldata.Errorf(cqldata.ConfigurationError, "unknown logging level '%s', expected one of debug, info, error, fatal or off", level)
	}
	return l, nil
}

// NewLogger returns a Logger. An unknown level is a configuration error.
func NewLogger(store cqldata.LogStore, root cqldata.RootResolver, options Options, m *metrics.Metrics) (*Logger, error) {
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, err
	}
	options.Level = level
	return &Logger{
		store:   store,
		root:    root,
		options: options,
		accept:  levels[level],
		metrics: m,
	}, nil
}

// Level returns the normalized configured level.
func (l *Logger) Level() string {
	return l.options.Level
}

func (l *Logger) Debug(ctx context.Context, content string, meta map[string]string) error {
	return l.write(ctx, Debug, content, meta, "")
}

func (l *Logger) Info(ctx context.Context, content string, meta map[string]string) error {
	return l.write(ctx, Info, content, meta, "")
}

func (l *Logger) Error(ctx context.Context, content string, meta map[string]string, stackTrace string) error {
	return l.write(ctx, Error, content, meta, stackTrace)
}

func (l *Logger) Fatal(ctx context.Context, content string, meta map[string]string, stackTrace string) error {
	return l.write(ctx, Fatal, content, meta, stackTrace)
}

func (l *Logger) write(ctx context.Context, typ string, content string, meta map[string]string, stackTrace string) error {
	if !l.accept[typ] {
		l.metrics.LogWrite(typ, false)
		return nil
	}
	scope, err := cqldata.ScopeOf(cqldata.RootOf(ctx, l.root))
	if err != nil {
		return err
	}
	_, err = l.store.AddEntry(ctx, scope, cqldata.LogEntry{
		Created:   cqldata.Now(),
		Type:      typ,
		Content:   content,
		Exception: stackTrace,
		Meta:      meta,
	})
	if err == nil {
		l.metrics.LogWrite(typ, true)
	}
	return err
}

// Query returns up to max entries older than fromID, newest first. Pass the ID of the
// last entry of a page as fromID to fetch the next page.
func (l *Logger) Query(ctx context.Context, max int, fromID string, content string) ([]cqldata.LogEntry, error) {
	if err := l.checkFilter(content); err != nil {
		return nil, err
	}
	if max <= 0 {
		max = DefaultMax
	}
	filter := cqldata.LogFilter{Max: max, ContentPrefix: content}
	if fromID != "" {
		id, err := cqldata.ParseUUID(fromID)
		if err != nil {
			return nil, cqldata.Errorf(cqldata.PreconditionFailed, "invalid log item id '%s': %v", fromID, err)
		}
		filter.Before = id
	}
	scope, err := cqldata.ScopeOf(cqldata.RootOf(ctx, l.root))
	if err != nil {
		return nil, err
	}
	entries, err := l.store.Entries(ctx, scope, filter)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Created = entries[i].Created.Truncate(time.Second)
	}
	return entries, nil
}

func (l *Logger) Count(ctx context.Context, content string) (int64, error) {
	if err := l.checkFilter(content); err != nil {
		return 0, err
	}
	scope, err := cqldata.ScopeOf(cqldata.RootOf(ctx, l.root))
	if err != nil {
		return 0, err
	}
	return l.store.CountEntries(ctx, scope, content)
}

func (l *Logger) Get(ctx context.Context, id string) (cqldata.LogEntry, error) {
	uid, err := cqldata.ParseUUID(id)
	if err != nil {
		return cqldata.LogEntry{}, cqldata.Errorf(cqldata.PreconditionFailed, "invalid log item id '%s': %v", id, err)
	}
	scope, err := cqldata.ScopeOf(cqldata.RootOf(ctx, l.root))
	if err != nil {
		return cqldata.LogEntry{}, err
	}
	entry, ok, err := l.store.Entry(ctx, scope, uid)
	if err != nil {
		return cqldata.LogEntry{}, err
	}
	if !ok {
		return cqldata.LogEntry{}, cqldata.Errorf(cqldata.NotFound, "no log item with id '%s'", id)
	}
	entry.Created = entry.Created.Truncate(time.Second)
	return entry, nil
}

func (l *Logger) Timeshift(ctx context.Context, content string) ([]cqldata.KeyValuePair[string, int64], error) {
	if !l.options.TimeShift {
		return nil, cqldata.Errorf(cqldata.NotImplemented, "timeshift is not enabled for the log")
	}
	if err := l.checkFilter(content); err != nil {
		return nil, err
	}
	scope, err := cqldata.ScopeOf(cqldata.RootOf(ctx, l.root))
	if err != nil {
		return nil, err
	}
	return l.store.Days(ctx, scope, content)
}

func (l *Logger) Types(ctx context.Context) ([]cqldata.KeyValuePair[string, int64], error) {
	scope, err := cqldata.ScopeOf(cqldata.RootOf(ctx, l.root))
	if err != nil {
		return nil, err
	}
	return l.store.Types(ctx, scope)
}

func (l *Logger) Capabilities() cqldata.Capabilities {
	return cqldata.Capabilities{
		CanFilter:    l.options.AllowFiltering,
		CanTimeShift: l.options.TimeShift,
	}
}

func (l *Logger) checkFilter(content string) error {
	if content != "" && !l.options.AllowFiltering {
		return cqldata.Errorf(cqldata.PreconditionFailed, "content filtering of log items is not enabled")
	}
	return nil
}
