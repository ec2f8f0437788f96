// Package files implements the file, folder and stream services over a cqldata.FileStore.
// Every call resolves the tenant scope from the root resolver and works on tenant relative
// folders; returned paths are absolute.
package files

import (
	"context"
	"sort"

	"github.com/magiccloud/cqldata"
)

type fileService struct {
	store cqldata.FileStore
	root  cqldata.RootResolver
}

// NewFileService returns a FileService storing files in store.
func NewFileService(store cqldata.FileStore, root cqldata.RootResolver) cqldata.FileService {
	return &fileService{
		store: store,
		root:  root,
	}
}

// locate resolves scope, folder and filename of an absolute path against the caller's root.
func locate(ctx context.Context, fallback cqldata.RootResolver, path string) (cqldata.Scope, string, string, error) {
	root := cqldata.RootOf(ctx, fallback)
	scope, err := cqldata.ScopeOf(root)
	if err != nil {
		return cqldata.Scope{}, "", "", err
	}
	rel, err := cqldata.Relativize(root, path)
	if err != nil {
		return cqldata.Scope{}, "", "", err
	}
	folder, filename := cqldata.BreakDownPath(rel)
	return scope, folder, filename, nil
}

// locateFolder is locate for a folder path.
func locateFolder(ctx context.Context, fallback cqldata.RootResolver, path string) (cqldata.RootResolver, cqldata.Scope, string, error) {
	root := cqldata.RootOf(ctx, fallback)
	scope, err := cqldata.ScopeOf(root)
	if err != nil {
		return nil, cqldata.Scope{}, "", err
	}
	folder, err := cqldata.RelativizeFolder(root, path)
	if err != nil {
		return nil, cqldata.Scope{}, "", err
	}
	return root, scope, folder, nil
}

// folderExists checks the folder marker row; the root folder always exists.
func folderExists(ctx context.Context, store cqldata.FileStore, scope cqldata.Scope, folder string) (bool, error) {
	if folder == "/" {
		return true, nil
	}
	return store.FileExists(ctx, scope, folder, "")
}

func (f *fileService) Exists(ctx context.Context, path string) (bool, error) {
	scope, folder, filename, err := locate(ctx, f.root, path)
	if err != nil {
		return false, err
	}
	if filename == "" {
		return false, nil
	}
	return f.store.FileExists(ctx, scope, folder, filename)
}

func (f *fileService) Load(ctx context.Context, path string) (string, error) {
	ba, err := f.LoadBinary(ctx, path)
	if err != nil {
		return "", err
	}
	return string(ba), nil
}

func (f *fileService) LoadBinary(ctx context.Context, path string) ([]byte, error) {
	scope, folder, filename, err := locate(ctx, f.root, path)
	if err != nil {
		return nil, err
	}
	return f.content(ctx, scope, folder, filename)
}

func (f *fileService) content(ctx context.Context, scope cqldata.Scope, folder string, filename string) ([]byte, error) {
	if filename == "" {
		return nil, cqldata.Errorf(cqldata.NotFound, "no such file '%s'", folder)
	}
	ba, ok, err := f.store.GetFile(ctx, scope, folder, filename)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, cqldata.Errorf(cqldata.NotFound, "no such file '%s%s'", folder, filename)
	}
	return ba, nil
}

func (f *fileService) Save(ctx context.Context, path string, content string) error {
	return f.SaveBinary(ctx, path, []byte(content))
}

func (f *fileService) SaveBinary(ctx context.Context, path string, content []byte) error {
	scope, folder, filename, err := locate(ctx, f.root, path)
	if err != nil {
		return err
	}
	return f.save(ctx, scope, folder, filename, content)
}

func (f *fileService) save(ctx context.Context, scope cqldata.Scope, folder string, filename string, content []byte) error {
	if filename == "" {
		return cqldata.Errorf(cqldata.PreconditionFailed, "'%s' is a folder, not a file", folder)
	}
	ok, err := folderExists(ctx, f.store, scope, folder)
	if err != nil {
		return err
	}
	if !ok {
		return cqldata.Errorf(cqldata.PreconditionFailed, "destination folder '%s' doesn't exist", folder)
	}
	if content == nil {
		content = []byte{}
	}
	return f.store.PutFile(ctx, scope, folder, filename, content)
}

func (f *fileService) Delete(ctx context.Context, path string) error {
	scope, folder, filename, err := locate(ctx, f.root, path)
	if err != nil {
		return err
	}
	if filename == "" {
		return cqldata.Errorf(cqldata.PreconditionFailed, "'%s' is a folder, not a file", folder)
	}
	return f.store.DeleteFile(ctx, scope, folder, filename)
}

func (f *fileService) Copy(ctx context.Context, source string, destination string) error {
	_, err := f.copy(ctx, source, destination)
	return err
}

// Move saves destination then deletes source. A failure in between leaves both copies.
func (f *fileService) Move(ctx context.Context, source string, destination string) error {
	src, err := f.copy(ctx, source, destination)
	if err != nil {
		return err
	}
	return f.store.DeleteFile(ctx, src.scope, src.folder, src.filename)
}

type location struct {
	scope    cqldata.Scope
	folder   string
	filename string
}

func (f *fileService) copy(ctx context.Context, source string, destination string) (location, error) {
	scope, sf, sn, err := locate(ctx, f.root, source)
	if err != nil {
		return location{}, err
	}
	content, err := f.content(ctx, scope, sf, sn)
	if err != nil {
		return location{}, err
	}
	_, df, dn, err := locate(ctx, f.root, destination)
	if err != nil {
		return location{}, err
	}
	if sf == df && sn == dn {
		return location{}, cqldata.Errorf(cqldata.PreconditionFailed, "source and destination are the same file '%s%s'", sf, sn)
	}
	if err := f.save(ctx, scope, df, dn, content); err != nil {
		return location{}, err
	}
	return location{scope: scope, folder: sf, filename: sn}, nil
}

func (f *fileService) ListFiles(ctx context.Context, folder string, extension string) ([]string, error) {
	root, scope, rel, err := locateFolder(ctx, f.root, folder)
	if err != nil {
		return nil, err
	}
	rows, err := f.store.ListFolder(ctx, scope, rel)
	if err != nil {
		return nil, err
	}
	return paths(root, rows, extension), nil
}

func (f *fileService) ListFilesRecursively(ctx context.Context, folder string, extension string) ([]string, error) {
	root, scope, rel, err := locateFolder(ctx, f.root, folder)
	if err != nil {
		return nil, err
	}
	rows, err := f.store.ScanPrefix(ctx, scope, rel, false)
	if err != nil {
		return nil, err
	}
	return paths(root, rows, extension), nil
}

func (f *fileService) LoadRecursively(ctx context.Context, folder string, extension string) ([]cqldata.File, error) {
	root, scope, rel, err := locateFolder(ctx, f.root, folder)
	if err != nil {
		return nil, err
	}
	rows, err := f.store.ScanPrefix(ctx, scope, rel, true)
	if err != nil {
		return nil, err
	}
	r := make([]cqldata.File, 0, len(rows))
	for _, row := range rows {
		if row.Filename == "" || !cqldata.MatchesExtension(row.Filename, extension) {
			continue
		}
		r = append(r, cqldata.File{
			Path:    cqldata.Absolutize(root, row.Folder+row.Filename),
			Content: row.Content,
		})
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Path < r[j].Path })
	return r, nil
}

// paths converts file rows into sorted absolute paths, skipping folder markers.
func paths(root cqldata.RootResolver, rows []cqldata.FileRow, extension string) []string {
	r := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Filename == "" || !cqldata.MatchesExtension(row.Filename, extension) {
			continue
		}
		r = append(r, cqldata.Absolutize(root, row.Folder+row.Filename))
	}
	sort.Strings(r)
	return r
}
