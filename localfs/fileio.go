// Package localfs implements the file, folder and stream services on the local disk.
// Absolute service paths ("/acme/prod/system/x.hl") are mapped below a base directory.
package localfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// FileIO defines filesystem operations used by this package. The default
// implementation delegates to the standard library's os package and writes files atomically.
type FileIO interface {
	WriteFile(ctx context.Context, name string, r io.Reader) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
	Remove(ctx context.Context, name string) error
	// Exists reports whether name exists and, when it does, whether it is a directory.
	Exists(ctx context.Context, name string) (exists bool, isDir bool)

	// Directory API.
	RemoveAll(ctx context.Context, path string) error
	Mkdir(ctx context.Context, path string) error
	ReadDir(ctx context.Context, sourceDir string) ([]os.DirEntry, error)
}

const dirPerm = 0o755

type defaultFileIO struct {
}

// NewFileIO returns a FileIO that performs I/O via the os package.
func NewFileIO() FileIO {
	return &defaultFileIO{}
}

// WriteFile writes to a temporary file in the same directory then renames it over name,
// so readers never observe a partially written file.
func (dio defaultFileIO) WriteFile(ctx context.Context, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return atomic.WriteFile(name, r)
}

func (dio defaultFileIO) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(name)
}

func (dio defaultFileIO) Remove(ctx context.Context, name string) error {
	return os.Remove(name)
}

func (dio defaultFileIO) Exists(ctx context.Context, name string) (bool, bool) {
	fi, err := os.Stat(name)
	if err != nil {
		return false, false
	}
	return true, fi.IsDir()
}

func (dio defaultFileIO) RemoveAll(ctx context.Context, path string) error {
	return os.RemoveAll(path)
}

func (dio defaultFileIO) Mkdir(ctx context.Context, path string) error {
	return os.Mkdir(path, dirPerm)
}

func (dio defaultFileIO) ReadDir(ctx context.Context, sourceDir string) ([]os.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadDir(sourceDir)
}

// disk maps service paths onto the base directory.
type disk struct {
	base string
	io   FileIO
}

func newDisk(baseDir string, fio FileIO) disk {
	if fio == nil {
		fio = NewFileIO()
	}
	return disk{base: filepath.Clean(baseDir), io: fio}
}

// osPath converts a "/" separated service path into a path below base. ".." segments
// are dropped so a path can't escape base.
func (d disk) osPath(path string) string {
	segments := strings.Split(path, "/")
	clean := segments[:0]
	for _, s := range segments {
		if s == "" || s == "." || s == ".." {
			continue
		}
		clean = append(clean, s)
	}
	return filepath.Join(append([]string{d.base}, clean...)...)
}

func (d disk) fileExists(ctx context.Context, path string) bool {
	ok, isDir := d.io.Exists(ctx, d.osPath(path))
	return ok && !isDir
}

func (d disk) folderExists(ctx context.Context, path string) bool {
	ok, isDir := d.io.Exists(ctx, d.osPath(path))
	return ok && isDir
}

// walk visits every entry below folder depth first, in lexical order.
func (d disk) walk(ctx context.Context, folder string, visit func(path string, isDir bool) error) error {
	entries, err := d.io.ReadDir(ctx, d.osPath(folder))
	if err != nil {
		return err
	}
	for _, e := range entries {
		p := folder + e.Name()
		if e.IsDir() {
			p += "/"
		}
		if err := visit(p, e.IsDir()); err != nil {
			return err
		}
		if e.IsDir() {
			if err := d.walk(ctx, p, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d disk) write(ctx context.Context, path string, content []byte) error {
	return d.io.WriteFile(ctx, d.osPath(path), bytes.NewReader(content))
}
