package cassandra

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/magiccloud/cqldata"
)

type fileKey struct {
	scope    cqldata.Scope
	folder   string
	filename string
}

type mockFileStore struct {
	mux    sync.Mutex
	lookup map[fileKey][]byte
}

// NewMockFileStore instantiates a new (mocked) in-memory file store.
func NewMockFileStore() cqldata.FileStore {
	return &mockFileStore{
		lookup: make(map[fileKey][]byte),
	}
}

func (m *mockFileStore) GetFile(ctx context.Context, scope cqldata.Scope, folder string, filename string) ([]byte, bool, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	ba, ok := m.lookup[fileKey{scope, folder, filename}]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, ba...), true, nil
}

func (m *mockFileStore) FileExists(ctx context.Context, scope cqldata.Scope, folder string, filename string) (bool, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	_, ok := m.lookup[fileKey{scope, folder, filename}]
	return ok, nil
}

func (m *mockFileStore) PutFile(ctx context.Context, scope cqldata.Scope, folder string, filename string, content []byte) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.lookup[fileKey{scope, folder, filename}] = append([]byte{}, content...)
	return nil
}

func (m *mockFileStore) DeleteFile(ctx context.Context, scope cqldata.Scope, folder string, filename string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	delete(m.lookup, fileKey{scope, folder, filename})
	return nil
}

func (m *mockFileStore) ListFolder(ctx context.Context, scope cqldata.Scope, folder string) ([]cqldata.FileRow, error) {
	return m.rows(scope, func(f string) bool { return f == folder }, false), nil
}

func (m *mockFileStore) ScanPrefix(ctx context.Context, scope cqldata.Scope, prefix string, withContent bool) ([]cqldata.FileRow, error) {
	return m.rows(scope, func(f string) bool { return strings.HasPrefix(f, prefix) }, withContent), nil
}

func (m *mockFileStore) DeleteFolderRows(ctx context.Context, scope cqldata.Scope, folder string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	for k := range m.lookup {
		if k.scope == scope && k.folder == folder {
			delete(m.lookup, k)
		}
	}
	return nil
}

// rows returns matching rows in clustering order, i.e. by folder then filename.
func (m *mockFileStore) rows(scope cqldata.Scope, match func(folder string) bool, withContent bool) []cqldata.FileRow {
	m.mux.Lock()
	defer m.mux.Unlock()
	var r []cqldata.FileRow
	for k, v := range m.lookup {
		if k.scope != scope || !match(k.folder) {
			continue
		}
		row := cqldata.FileRow{Folder: k.folder, Filename: k.filename}
		if withContent {
			row.Content = append([]byte{}, v...)
		}
		r = append(r, row)
	}
	sort.Slice(r, func(i, j int) bool {
		if r[i].Folder != r[j].Folder {
			return r[i].Folder < r[j].Folder
		}
		return r[i].Filename < r[j].Filename
	})
	return r
}
