package mixed

import (
	"context"
	"sort"

	"github.com/magiccloud/cqldata"
)

type fileService struct {
	router   *Router
	backends map[string]cqldata.FileService
}

// NewFileService returns a FileService dispatching each call to the backend its path routes to.
func NewFileService(router *Router, backends map[string]cqldata.FileService) (cqldata.FileService, error) {
	b, err := backendsOf(router, backends)
	if err != nil {
		return nil, err
	}
	return &fileService{router: router, backends: b}, nil
}

func (f *fileService) impl(ctx context.Context, path string, write bool) (cqldata.FileService, error) {
	name, err := f.router.Resolve(ctx, path, write)
	if err != nil {
		return nil, err
	}
	return f.backends[name], nil
}

func (f *fileService) Exists(ctx context.Context, path string) (bool, error) {
	s, err := f.impl(ctx, path, false)
	if err != nil {
		return false, err
	}
	return s.Exists(ctx, path)
}

func (f *fileService) Load(ctx context.Context, path string) (string, error) {
	s, err := f.impl(ctx, path, false)
	if err != nil {
		return "", err
	}
	return s.Load(ctx, path)
}

func (f *fileService) LoadBinary(ctx context.Context, path string) ([]byte, error) {
	s, err := f.impl(ctx, path, false)
	if err != nil {
		return nil, err
	}
	return s.LoadBinary(ctx, path)
}

func (f *fileService) Save(ctx context.Context, path string, content string) error {
	s, err := f.impl(ctx, path, true)
	if err != nil {
		return err
	}
	return s.Save(ctx, path, content)
}

func (f *fileService) SaveBinary(ctx context.Context, path string, content []byte) error {
	s, err := f.impl(ctx, path, true)
	if err != nil {
		return err
	}
	return s.SaveBinary(ctx, path, content)
}

func (f *fileService) Delete(ctx context.Context, path string) error {
	s, err := f.impl(ctx, path, true)
	if err != nil {
		return err
	}
	return s.Delete(ctx, path)
}

// Copy loads from the source backend and saves to the destination backend.
func (f *fileService) Copy(ctx context.Context, source string, destination string) error {
	src, err := f.impl(ctx, source, false)
	if err != nil {
		return err
	}
	dest, err := f.impl(ctx, destination, true)
	if err != nil {
		return err
	}
	if src == dest {
		return src.Copy(ctx, source, destination)
	}
	content, err := src.LoadBinary(ctx, source)
	if err != nil {
		return err
	}
	return dest.SaveBinary(ctx, destination, content)
}

// Move is Copy followed by deleting the source.
func (f *fileService) Move(ctx context.Context, source string, destination string) error {
	src, err := f.impl(ctx, source, true)
	if err != nil {
		return err
	}
	dest, err := f.impl(ctx, destination, true)
	if err != nil {
		return err
	}
	if src == dest {
		return src.Move(ctx, source, destination)
	}
	content, err := src.LoadBinary(ctx, source)
	if err != nil {
		return err
	}
	if err := dest.SaveBinary(ctx, destination, content); err != nil {
		return err
	}
	return src.Delete(ctx, source)
}

func (f *fileService) ListFiles(ctx context.Context, folder string, extension string) ([]string, error) {
	s, err := f.impl(ctx, folder, false)
	if err != nil {
		return nil, err
	}
	return s.ListFiles(ctx, folder, extension)
}

func (f *fileService) ListFilesRecursively(ctx context.Context, folder string, extension string) ([]string, error) {
	if f.router.IsRoot(ctx, folder) {
		files, err := mergeAll(ctx, f.router, f.backends, func(ctx context.Context, s cqldata.FileService) ([]string, error) {
			return s.ListFilesRecursively(ctx, folder, extension)
		})
		if err != nil {
			return nil, err
		}
		return sortedUnique(files), nil
	}
	s, err := f.impl(ctx, folder, false)
	if err != nil {
		return nil, err
	}
	return s.ListFilesRecursively(ctx, folder, extension)
}

func (f *fileService) LoadRecursively(ctx context.Context, folder string, extension string) ([]cqldata.File, error) {
	if f.router.IsRoot(ctx, folder) {
		files, err := mergeAll(ctx, f.router, f.backends, func(ctx context.Context, s cqldata.FileService) ([]cqldata.File, error) {
			return s.LoadRecursively(ctx, folder, extension)
		})
		if err != nil {
			return nil, err
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		return files, nil
	}
	s, err := f.impl(ctx, folder, false)
	if err != nil {
		return nil, err
	}
	return s.LoadRecursively(ctx, folder, extension)
}
