package files

import (
	"context"
	log "log/slog"
	"sort"
	"strings"

	"github.com/magiccloud/cqldata"
)

type folderService struct {
	store cqldata.FileStore
	root  cqldata.RootResolver
}

// NewFolderService returns a FolderService storing folder marker rows in store.
func NewFolderService(store cqldata.FileStore, root cqldata.RootResolver) cqldata.FolderService {
	return &folderService{
		store: store,
		root:  root,
	}
}

func (f *folderService) locate(ctx context.Context, path string) (cqldata.Scope, string, error) {
	_, scope, folder, err := locateFolder(ctx, f.root, path)
	return scope, folder, err
}

// Create inserts the folder marker. The parent folder must exist.
func (f *folderService) Create(ctx context.Context, path string) error {
	scope, folder, err := f.locate(ctx, path)
	if err != nil {
		return err
	}
	if ok, err := folderExists(ctx, f.store, scope, folder); err != nil || ok {
		return err
	}
	parent := cqldata.ParentFolder(folder)
	ok, err := folderExists(ctx, f.store, scope, parent)
	if err != nil {
		return err
	}
	if !ok {
		return cqldata.Errorf(cqldata.PreconditionFailed, "parent folder '%s' doesn't exist", parent)
	}
	return f.store.PutFile(ctx, scope, folder, "", nil)
}

// Delete removes every row below the folder, one folder at a time.
func (f *folderService) Delete(ctx context.Context, path string) error {
	scope, folder, err := f.locate(ctx, path)
	if err != nil {
		return err
	}
	if folder == "/" {
		return cqldata.Errorf(cqldata.PreconditionFailed, "the root folder can't be deleted")
	}
	ok, err := folderExists(ctx, f.store, scope, folder)
	if err != nil {
		return err
	}
	if !ok {
		return cqldata.Errorf(cqldata.NotFound, "no such folder '%s'", folder)
	}
	rows, err := f.store.ScanPrefix(ctx, scope, folder, false)
	if err != nil {
		return err
	}
	folders := distinctFolders(rows)
	for _, fo := range folders {
		if err := f.store.DeleteFolderRows(ctx, scope, fo); err != nil {
			return err
		}
	}
	log.Debug("deleted folder", "scope", scope.String(), "folder", folder, "folders", len(folders))
	return nil
}

func (f *folderService) Exists(ctx context.Context, path string) (bool, error) {
	scope, folder, err := f.locate(ctx, path)
	if err != nil {
		return false, err
	}
	return folderExists(ctx, f.store, scope, folder)
}

// ListFolders returns the folders exactly one segment below folder.
func (f *folderService) ListFolders(ctx context.Context, folder string) ([]string, error) {
	return f.list(ctx, folder, func(parent string, child string) bool {
		return cqldata.ParentFolder(child) == parent
	})
}

func (f *folderService) ListFoldersRecursively(ctx context.Context, folder string) ([]string, error) {
	return f.list(ctx, folder, func(string, string) bool { return true })
}

func (f *folderService) list(ctx context.Context, path string, include func(parent string, child string) bool) ([]string, error) {
	root, scope, folder, err := locateFolder(ctx, f.root, path)
	if err != nil {
		return nil, err
	}
	rows, err := f.store.ScanPrefix(ctx, scope, folder, false)
	if err != nil {
		return nil, err
	}
	r := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Filename != "" || row.Folder == folder || !include(folder, row.Folder) {
			continue
		}
		r = append(r, cqldata.Absolutize(root, row.Folder))
	}
	sort.Strings(r)
	return r, nil
}

func (f *folderService) Copy(ctx context.Context, source string, destination string) error {
	return f.copyMove(ctx, source, destination, false)
}

// Move copies every row to the destination and then deletes the source rows, thus a
// failure half way leaves rows in both folders, never in neither.
func (f *folderService) Move(ctx context.Context, source string, destination string) error {
	return f.copyMove(ctx, source, destination, true)
}

func (f *folderService) copyMove(ctx context.Context, source string, destination string, isMove bool) error {
	scope, src, err := f.locate(ctx, source)
	if err != nil {
		return err
	}
	_, dest, err := f.locate(ctx, destination)
	if err != nil {
		return err
	}
	if err := f.checkCopyMove(ctx, scope, src, dest); err != nil {
		return err
	}
	rows, err := f.store.ScanPrefix(ctx, scope, src, true)
	if err != nil {
		return err
	}
	for _, row := range rows {
		folder := dest + strings.TrimPrefix(row.Folder, src)
		if err := f.store.PutFile(ctx, scope, folder, row.Filename, row.Content); err != nil {
			return err
		}
	}
	if !isMove {
		return nil
	}
	for _, fo := range distinctFolders(rows) {
		if err := f.store.DeleteFolderRows(ctx, scope, fo); err != nil {
			return err
		}
	}
	return nil
}

func (f *folderService) checkCopyMove(ctx context.Context, scope cqldata.Scope, src string, dest string) error {
	if src == "/" {
		return cqldata.Errorf(cqldata.PreconditionFailed, "the root folder can't be copied or moved")
	}
	if cqldata.IsSubFolder(dest, src) {
		return cqldata.Errorf(cqldata.PreconditionFailed, "destination '%s' is inside source '%s'", dest, src)
	}
	ok, err := folderExists(ctx, f.store, scope, src)
	if err != nil {
		return err
	}
	if !ok {
		return cqldata.Errorf(cqldata.NotFound, "no such folder '%s'", src)
	}
	parent := cqldata.ParentFolder(dest)
	if ok, err = folderExists(ctx, f.store, scope, parent); err != nil {
		return err
	}
	if !ok {
		return cqldata.Errorf(cqldata.PreconditionFailed, "destination parent folder '%s' doesn't exist", parent)
	}
	return nil
}

func distinctFolders(rows []cqldata.FileRow) []string {
	seen := make(map[string]bool)
	var r []string
	for _, row := range rows {
		if !seen[row.Folder] {
			seen[row.Folder] = true
			r = append(r, row.Folder)
		}
	}
	return r
}
