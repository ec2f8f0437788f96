package mixed

import (
	"context"

	"github.com/magiccloud/cqldata"
)

type folderService struct {
	router   *Router
	backends map[string]cqldata.FolderService
}

// NewFolderService returns a FolderService dispatching each call to the backend its path routes to.
func NewFolderService(router *Router, backends map[string]cqldata.FolderService) (cqldata.FolderService, error) {
	b, err := backendsOf(router, backends)
	if err != nil {
		return nil, err
	}
	return &folderService{router: router, backends: b}, nil
}

func (f *folderService) impl(ctx context.Context, path string, write bool) (string, cqldata.FolderService, error) {
	name, err := f.router.Resolve(ctx, path, write)
	if err != nil {
		return "", nil, err
	}
	return name, f.backends[name], nil
}

func (f *folderService) Create(ctx context.Context, path string) error {
	_, s, err := f.impl(ctx, path, true)
	if err != nil {
		return err
	}
	return s.Create(ctx, path)
}

func (f *folderService) Delete(ctx context.Context, path string) error {
	_, s, err := f.impl(ctx, path, true)
	if err != nil {
		return err
	}
	return s.Delete(ctx, path)
}

func (f *folderService) Exists(ctx context.Context, path string) (bool, error) {
	_, s, err := f.impl(ctx, path, false)
	if err != nil {
		return false, err
	}
	return s.Exists(ctx, path)
}

// ListFolders of the root merges the top level folders of every backend.
func (f *folderService) ListFolders(ctx context.Context, folder string) ([]string, error) {
	if f.router.IsRoot(ctx, folder) {
		folders, err := mergeAll(ctx, f.router, f.backends, func(ctx context.Context, s cqldata.FolderService) ([]string, error) {
			return s.ListFolders(ctx, folder)
		})
		if err != nil {
			return nil, err
		}
		return sortedUnique(folders), nil
	}
	_, s, err := f.impl(ctx, folder, false)
	if err != nil {
		return nil, err
	}
	return s.ListFolders(ctx, folder)
}

func (f *folderService) ListFoldersRecursively(ctx context.Context, folder string) ([]string, error) {
	if f.router.IsRoot(ctx, folder) {
		folders, err := mergeAll(ctx, f.router, f.backends, func(ctx context.Context, s cqldata.FolderService) ([]string, error) {
			return s.ListFoldersRecursively(ctx, folder)
		})
		if err != nil {
			return nil, err
		}
		return sortedUnique(folders), nil
	}
	_, s, err := f.impl(ctx, folder, false)
	if err != nil {
		return nil, err
	}
	return s.ListFoldersRecursively(ctx, folder)
}

func (f *folderService) Copy(ctx context.Context, source string, destination string) error {
	s, err := f.sameBackend(ctx, source, destination, false)
	if err != nil {
		return err
	}
	return s.Copy(ctx, source, destination)
}

func (f *folderService) Move(ctx context.Context, source string, destination string) error {
	s, err := f.sameBackend(ctx, source, destination, true)
	if err != nil {
		return err
	}
	return s.Move(ctx, source, destination)
}

// sameBackend resolves source and destination, which must route to the same backend.
func (f *folderService) sameBackend(ctx context.Context, source string, destination string, isMove bool) (cqldata.FolderService, error) {
	srcName, src, err := f.impl(ctx, source, isMove)
	if err != nil {
		return nil, err
	}
	destName, _, err := f.impl(ctx, destination, true)
	if err != nil {
		return nil, err
	}
	if srcName != destName {
		return nil, cqldata.Errorf(cqldata.NotImplemented, "copying or moving folders from '%s' to '%s' crosses backends", srcName, destName)
	}
	return src, nil
}
