package localfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"sort"
	"strings"

	"github.com/magiccloud/cqldata"
)

// Services bundles the local disk file, folder and stream services sharing one base directory.
type Services struct {
	Files   cqldata.FileService
	Folders cqldata.FolderService
	Streams cqldata.StreamService
}

// New returns the local disk services rooted at baseDir. fio may be nil for the os backed default.
func New(baseDir string, fio FileIO) Services {
	d := newDisk(baseDir, fio)
	files := &fileService{d}
	return Services{
		Files:   files,
		Folders: &folderService{d},
		Streams: &streamService{files: files},
	}
}

func notFound(err error, path string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return cqldata.Errorf(cqldata.NotFound, "no such file '%s'", path)
	}
	return err
}

type fileService struct {
	d disk
}

func (f *fileService) Exists(ctx context.Context, path string) (bool, error) {
	return f.d.fileExists(ctx, path), nil
}

func (f *fileService) Load(ctx context.Context, path string) (string, error) {
	ba, err := f.LoadBinary(ctx, path)
	return string(ba), err
}

func (f *fileService) LoadBinary(ctx context.Context, path string) ([]byte, error) {
	if !f.d.fileExists(ctx, path) {
		return nil, cqldata.Errorf(cqldata.NotFound, "no such file '%s'", path)
	}
	ba, err := f.d.io.ReadFile(ctx, f.d.osPath(path))
	return ba, notFound(err, path)
}

func (f *fileService) Save(ctx context.Context, path string, content string) error {
	return f.SaveBinary(ctx, path, []byte(content))
}

func (f *fileService) SaveBinary(ctx context.Context, path string, content []byte) error {
	folder, filename := cqldata.BreakDownPath(path)
	if filename == "" {
		return cqldata.Errorf(cqldata.PreconditionFailed, "'%s' is a folder, not a file", path)
	}
	if !f.d.folderExists(ctx, folder) {
		return cqldata.Errorf(cqldata.PreconditionFailed, "destination folder '%s' doesn't exist", folder)
	}
	return f.d.write(ctx, path, content)
}

func (f *fileService) Delete(ctx context.Context, path string) error {
	if !f.d.fileExists(ctx, path) {
		return nil
	}
	return f.d.io.Remove(ctx, f.d.osPath(path))
}

func (f *fileService) Copy(ctx context.Context, source string, destination string) error {
	if f.d.osPath(source) == f.d.osPath(destination) {
		return cqldata.Errorf(cqldata.PreconditionFailed, "source and destination are the same file '%s'", source)
	}
	ba, err := f.LoadBinary(ctx, source)
	if err != nil {
		return err
	}
	return f.SaveBinary(ctx, destination, ba)
}

func (f *fileService) Move(ctx context.Context, source string, destination string) error {
	if err := f.Copy(ctx, source, destination); err != nil {
		return err
	}
	return f.Delete(ctx, source)
}

func (f *fileService) ListFiles(ctx context.Context, folder string, extension string) ([]string, error) {
	folder = cqldata.NormalizeFolder(folder)
	entries, err := f.d.io.ReadDir(ctx, f.d.osPath(folder))
	if err != nil {
		return nil, notFound(err, folder)
	}
	var r []string
	for _, e := range entries {
		if !e.IsDir() && cqldata.MatchesExtension(e.Name(), extension) {
			r = append(r, folder+e.Name())
		}
	}
	sort.Strings(r)
	return r, nil
}

func (f *fileService) ListFilesRecursively(ctx context.Context, folder string, extension string) ([]string, error) {
	var r []string
	err := f.d.walk(ctx, cqldata.NormalizeFolder(folder), func(p string, isDir bool) error {
		if !isDir && cqldata.MatchesExtension(p, extension) {
			r = append(r, p)
		}
		return nil
	})
	if err != nil {
		return nil, notFound(err, folder)
	}
	sort.Strings(r)
	return r, nil
}

func (f *fileService) LoadRecursively(ctx context.Context, folder string, extension string) ([]cqldata.File, error) {
	paths, err := f.ListFilesRecursively(ctx, folder, extension)
	if err != nil {
		return nil, err
	}
	r := make([]cqldata.File, 0, len(paths))
	for _, p := range paths {
		ba, err := f.d.io.ReadFile(ctx, f.d.osPath(p))
		if err != nil {
			return nil, err
		}
		r = append(r, cqldata.File{Path: p, Content: ba})
	}
	return r, nil
}

type folderService struct {
	d disk
}

func (f *folderService) Create(ctx context.Context, path string) error {
	folder := cqldata.NormalizeFolder(path)
	if f.d.folderExists(ctx, folder) {
		return nil
	}
	parent := cqldata.ParentFolder(folder)
	if !f.d.folderExists(ctx, parent) {
		return cqldata.Errorf(cqldata.PreconditionFailed, "parent folder '%s' doesn't exist", parent)
	}
	return f.d.io.Mkdir(ctx, f.d.osPath(folder))
}

func (f *folderService) Delete(ctx context.Context, path string) error {
	folder := cqldata.NormalizeFolder(path)
	if folder == "/" {
		return cqldata.Errorf(cqldata.PreconditionFailed, "the root folder can't be deleted")
	}
	if !f.d.folderExists(ctx, folder) {
		return cqldata.Errorf(cqldata.NotFound, "no such folder '%s'", folder)
	}
	return f.d.io.RemoveAll(ctx, f.d.osPath(folder))
}

func (f *folderService) Exists(ctx context.Context, path string) (bool, error) {
	return f.d.folderExists(ctx, cqldata.NormalizeFolder(path)), nil
}

func (f *folderService) ListFolders(ctx context.Context, folder string) ([]string, error) {
	folder = cqldata.NormalizeFolder(folder)
	entries, err := f.d.io.ReadDir(ctx, f.d.osPath(folder))
	if err != nil {
		return nil, notFound(err, folder)
	}
	var r []string
	for _, e := range entries {
		if e.IsDir() {
			r = append(r, folder+e.Name()+"/")
		}
	}
	sort.Strings(r)
	return r, nil
}

func (f *folderService) ListFoldersRecursively(ctx context.Context, folder string) ([]string, error) {
	var r []string
	err := f.d.walk(ctx, cqldata.NormalizeFolder(folder), func(p string, isDir bool) error {
		if isDir {
			r = append(r, p)
		}
		return nil
	})
	if err != nil {
		return nil, notFound(err, folder)
	}
	sort.Strings(r)
	return r, nil
}

func (f *folderService) Copy(ctx context.Context, source string, destination string) error {
	return f.copyMove(ctx, source, destination, false)
}

func (f *folderService) Move(ctx context.Context, source string, destination string) error {
	return f.copyMove(ctx, source, destination, true)
}

func (f *folderService) copyMove(ctx context.Context, source string, destination string, isMove bool) error {
	src := cqldata.NormalizeFolder(source)
	dest := cqldata.NormalizeFolder(destination)
	if src == "/" {
		return cqldata.Errorf(cqldata.PreconditionFailed, "the root folder can't be copied or moved")
	}
	if cqldata.IsSubFolder(dest, src) {
		return cqldata.Errorf(cqldata.PreconditionFailed, "destination '%s' is inside source '%s'", dest, src)
	}
	if !f.d.folderExists(ctx, src) {
		return cqldata.Errorf(cqldata.NotFound, "no such folder '%s'", src)
	}
	if parent := cqldata.ParentFolder(dest); !f.d.folderExists(ctx, parent) {
		return cqldata.Errorf(cqldata.PreconditionFailed, "destination parent folder '%s' doesn't exist", parent)
	}
	if !f.d.folderExists(ctx, dest) {
		if err := f.d.io.Mkdir(ctx, f.d.osPath(dest)); err != nil {
			return err
		}
	}
	// walk visits a folder before its content, thus every destination folder exists before its files.
	err := f.d.walk(ctx, src, func(p string, isDir bool) error {
		target := dest + strings.TrimPrefix(p, src)
		if isDir {
			if f.d.folderExists(ctx, target) {
				return nil
			}
			return f.d.io.Mkdir(ctx, f.d.osPath(target))
		}
		ba, err := f.d.io.ReadFile(ctx, f.d.osPath(p))
		if err != nil {
			return err
		}
		return f.d.write(ctx, target, ba)
	})
	if err != nil || !isMove {
		return err
	}
	return f.d.io.RemoveAll(ctx, f.d.osPath(src))
}

type streamService struct {
	files *fileService
}

func (s *streamService) OpenFile(ctx context.Context, path string) (io.ReadCloser, error) {
	ba, err := s.files.LoadBinary(ctx, path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(ba)), nil
}

func (s *streamService) SaveFile(ctx context.Context, r io.Reader, path string, overwrite bool) error {
	if !overwrite && s.files.d.fileExists(ctx, path) {
		return cqldata.Errorf(cqldata.PreconditionFailed, "file '%s' already exists", path)
	}
	folder, filename := cqldata.BreakDownPath(path)
	if filename == "" || !s.files.d.folderExists(ctx, folder) {
		return cqldata.Errorf(cqldata.PreconditionFailed, "destination folder '%s' doesn't exist", folder)
	}
	return s.files.d.io.WriteFile(ctx, s.files.d.osPath(path), r)
}
