package cassandra

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/gocql/gocql"

	"github.com/magiccloud/cqldata"
)

type mockLogStore struct {
	mux     sync.Mutex
	entries map[cqldata.Scope][]cqldata.LogEntry
}

// NewMockLogStore instantiates a new (mocked) in-memory log store. Entries are kept
// newest first like the clustering order of the log table.
func NewMockLogStore() cqldata.LogStore {
	return &mockLogStore{
		entries: make(map[cqldata.Scope][]cqldata.LogEntry),
	}
}

func (m *mockLogStore) AddEntry(ctx context.Context, scope cqldata.Scope, entry cqldata.LogEntry) (cqldata.UUID, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if entry.Created.IsZero() {
		entry.Created = cqldata.Now()
	}
	entry.ID = cqldata.UUID(gocql.UUIDFromTime(entry.Created))
	entry.Created = entry.ID.Time().UTC()
	entry.Day = entry.Created.Format(DayLayout)
	l := append(m.entries[scope], entry)
	sort.SliceStable(l, func(i, j int) bool { return l[i].ID.CompareTime(l[j].ID) > 0 })
	m.entries[scope] = l
	return entry.ID, nil
}

func (m *mockLogStore) Entries(ctx context.Context, scope cqldata.Scope, filter cqldata.LogFilter) ([]cqldata.LogEntry, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	var r []cqldata.LogEntry
	for _, e := range m.entries[scope] {
		if !filter.Before.IsNil() && e.ID.CompareTime(filter.Before) >= 0 {
			continue
		}
		if !strings.HasPrefix(e.Content, filter.ContentPrefix) {
			continue
		}
		r = append(r, e)
		if filter.Max > 0 && len(r) == filter.Max {
			break
		}
	}
	return r, nil
}

func (m *mockLogStore) CountEntries(ctx context.Context, scope cqldata.Scope, contentPrefix string) (int64, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	var c int64
	for _, e := range m.entries[scope] {
		if strings.HasPrefix(e.Content, contentPrefix) {
			c++
		}
	}
	return c, nil
}

func (m *mockLogStore) Entry(ctx context.Context, scope cqldata.Scope, id cqldata.UUID) (cqldata.LogEntry, bool, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	for _, e := range m.entries[scope] {
		if e.ID == id {
			return e, true, nil
		}
	}
	return cqldata.LogEntry{}, false, nil
}

func (m *mockLogStore) Days(ctx context.Context, scope cqldata.Scope, contentPrefix string) ([]cqldata.KeyValuePair[string, int64], error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	counts := make(map[string]int64)
	for _, e := range m.entries[scope] {
		if strings.HasPrefix(e.Content, contentPrefix) {
			counts[e.Day]++
		}
	}
	return sortedCounts(counts), nil
}

func (m *mockLogStore) Types(ctx context.Context, scope cqldata.Scope) ([]cqldata.KeyValuePair[string, int64], error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	counts := make(map[string]int64)
	for _, e := range m.entries[scope] {
		counts[e.Type]++
	}
	return sortedCounts(counts), nil
}
