package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/magiccloud/cqldata"
)

var ctx = context.Background()

func newServices(t *testing.T) (Services, string) {
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "acme", "prod", "system"), 0o755); err != nil {
		t.Fatal(err)
	}
	return New(base, nil), base
}

func TestOSPathStaysBelowBase(t *testing.T) {
	d := newDisk("/srv/files", nil)
	if got := d.osPath("/acme/../../etc/passwd"); got != filepath.Join("/srv/files", "acme", "etc", "passwd") {
		t.Errorf("got %q", got)
	}
	if got := d.osPath("/"); got != filepath.Clean("/srv/files") {
		t.Errorf("got %q", got)
	}
}

func TestFiles(t *testing.T) {
	s, base := newServices(t)
	if err := s.Files.Save(ctx, "/acme/prod/system/a.hl", "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(base, "acme", "prod", "system", "a.hl")); err != nil {
		t.Errorf("file not written to disk: %v", err)
	}
	if got, _ := s.Files.Load(ctx, "/acme/prod/system/a.hl"); got != "A" {
		t.Errorf("Load = %q", got)
	}
	if err := s.Files.Save(ctx, "/acme/prod/nope/a.hl", "A"); !cqldata.HasCode(err, cqldata.PreconditionFailed) {
		t.Errorf("expected precondition error, got %v", err)
	}
	if _, err := s.Files.Load(ctx, "/acme/prod/system/b.hl"); !cqldata.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := s.Files.Move(ctx, "/acme/prod/system/a.hl", "/acme/prod/system/b.hl"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Files.Exists(ctx, "/acme/prod/system/a.hl"); ok {
		t.Error("source should be gone after move")
	}
	s.Files.Save(ctx, "/acme/prod/system/c.md", "C")
	got, _ := s.Files.ListFiles(ctx, "/acme/prod/system/", ".hl")
	if diff := cmp.Diff([]string{"/acme/prod/system/b.hl"}, got); diff != "" {
		t.Errorf("ListFiles mismatch (-want +got):\n%s", diff)
	}
}

func TestMoveOntoItselfKeepsFile(t *testing.T) {
	s, _ := newServices(t)
	if err := s.Files.Save(ctx, "/acme/prod/system/a.hl", "A"); err != nil {
		t.Fatal(err)
	}
	if err := s.Files.Move(ctx, "/acme/prod/system/a.hl", "/acme/prod/system/a.hl"); !cqldata.HasCode(err, cqldata.PreconditionFailed) {
		t.Errorf("Move: expected precondition error, got %v", err)
	}
	if err := s.Files.Copy(ctx, "/acme/prod/system/a.hl", "/acme/prod/system//a.hl"); !cqldata.HasCode(err, cqldata.PreconditionFailed) {
		t.Errorf("Copy: expected precondition error, got %v", err)
	}
	if got, err := s.Files.Load(ctx, "/acme/prod/system/a.hl"); err != nil || got != "A" {
		t.Errorf("file lost after move onto itself: %q, %v", got, err)
	}
}

func TestFolders(t *testing.T) {
	s, _ := newServices(t)
	for _, p := range []string{"/acme/prod/system/x/", "/acme/prod/system/x/y/"} {
		if err := s.Folders.Create(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	s.Files.Save(ctx, "/acme/prod/system/x/y/f.txt", "F")

	got, _ := s.Folders.ListFoldersRecursively(ctx, "/acme/prod/system/")
	if diff := cmp.Diff([]string{"/acme/prod/system/x/", "/acme/prod/system/x/y/"}, got); diff != "" {
		t.Errorf("ListFoldersRecursively mismatch (-want +got):\n%s", diff)
	}
	if err := s.Folders.Copy(ctx, "/acme/prod/system/x/", "/acme/prod/system/z/"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Files.Load(ctx, "/acme/prod/system/z/y/f.txt"); v != "F" {
		t.Errorf("copied file = %q", v)
	}
	if err := s.Folders.Move(ctx, "/acme/prod/system/x/", "/acme/prod/system/x/y/q/"); !cqldata.HasCode(err, cqldata.PreconditionFailed) {
		t.Errorf("expected precondition error, got %v", err)
	}
	if err := s.Folders.Delete(ctx, "/acme/prod/system/x/"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Folders.Exists(ctx, "/acme/prod/system/x/"); ok {
		t.Error("folder should be deleted")
	}
	loaded, _ := s.Files.LoadRecursively(ctx, "/acme/prod/", "")
	if len(loaded) != 1 || loaded[0].Path != "/acme/prod/system/z/y/f.txt" {
		t.Errorf("LoadRecursively = %+v", loaded)
	}
}

func TestStreams(t *testing.T) {
	s, _ := newServices(t)
	if err := s.Streams.SaveFile(ctx, strings.NewReader("data"), "/acme/prod/system/s.bin", false); err != nil {
		t.Fatal(err)
	}
	if err := s.Streams.SaveFile(ctx, strings.NewReader("x"), "/acme/prod/system/s.bin", false); !cqldata.HasCode(err, cqldata.PreconditionFailed) {
		t.Errorf("expected precondition error, got %v", err)
	}
	rc, err := s.Streams.OpenFile(ctx, "/acme/prod/system/s.bin")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	if ba, _ := io.ReadAll(rc); string(ba) != "data" {
		t.Errorf("got %q", ba)
	}
}
