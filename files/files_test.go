package files

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/magiccloud/cqldata"
	"github.com/magiccloud/cqldata/cassandra"
)

var ctx = context.Background()

type fixture struct {
	store   cqldata.FileStore
	files   cqldata.FileService
	folders cqldata.FolderService
}

func newFixture() fixture {
	store := cassandra.NewMockFileStore()
	root := cqldata.NewRootResolver("/acme/prod/", "")
	return fixture{
		store:   store,
		files:   NewFileService(store, root),
		folders: NewFolderService(store, root),
	}
}

func TestAcmeScenario(t *testing.T) {
	f := newFixture()
	if err := f.folders.Create(ctx, "/acme/prod/docs/"); err != nil {
		t.Fatal(err)
	}
	if err := f.files.Save(ctx, "/acme/prod/docs/readme.txt", "hello"); err != nil {
		t.Fatal(err)
	}
	ba, ok, err := f.store.GetFile(ctx, cqldata.Scope{Tenant: "acme", Cloudlet: "prod"}, "/docs/", "readme.txt")
	if err != nil || !ok || string(ba) != "hello" {
		t.Fatalf("row = %q, %v, %v", ba, ok, err)
	}
	got, err := f.files.ListFiles(ctx, "/acme/prod/docs/", "")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/acme/prod/docs/readme.txt"}, got); diff != "" {
		t.Errorf("ListFiles mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f := newFixture()
	text := "hællo, wörld ✓"
	if err := f.files.Save(ctx, "/acme/prod/a.txt", text); err != nil {
		t.Fatal(err)
	}
	if got, _ := f.files.Load(ctx, "/acme/prod/a.txt"); got != text {
		t.Errorf("Load = %q", got)
	}
	bin := []byte{0, 1, 2, 0xff, 0xfe}
	if err := f.files.SaveBinary(ctx, "/acme/prod/a.bin", bin); err != nil {
		t.Fatal(err)
	}
	if got, _ := f.files.LoadBinary(ctx, "/acme/prod/a.bin"); !bytes.Equal(got, bin) {
		t.Errorf("LoadBinary = %v", got)
	}
	if err := f.files.Save(ctx, "/acme/prod/empty.txt", ""); err != nil {
		t.Fatal(err)
	}
	if got, err := f.files.Load(ctx, "/acme/prod/empty.txt"); err != nil || got != "" {
		t.Errorf("Load empty = %q, %v", got, err)
	}
}

func TestSaveRequiresFolder(t *testing.T) {
	f := newFixture()
	err := f.files.Save(ctx, "/acme/prod/missing/a.txt", "x")
	if !cqldata.HasCode(err, cqldata.PreconditionFailed) {
		t.Errorf("expected precondition error, got %v", err)
	}
	if _, err := f.files.Load(ctx, "/acme/prod/nope.txt"); !cqldata.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMove(t *testing.T) {
	f := newFixture()
	f.folders.Create(ctx, "/acme/prod/x/")
	f.files.Save(ctx, "/acme/prod/a.txt", "A")
	if err := f.files.Move(ctx, "/acme/prod/a.txt", "/acme/prod/x/b.txt"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.files.Exists(ctx, "/acme/prod/a.txt"); ok {
		t.Error("source should be gone")
	}
	if got, _ := f.files.Load(ctx, "/acme/prod/x/b.txt"); got != "A" {
		t.Errorf("destination = %q", got)
	}
	// A failing move leaves the source untouched.
	f.files.Save(ctx, "/acme/prod/c.txt", "C")
	if err := f.files.Move(ctx, "/acme/prod/c.txt", "/acme/prod/missing/c.txt"); err == nil {
		t.Fatal("expected an error")
	}
	if ok, _ := f.files.Exists(ctx, "/acme/prod/c.txt"); !ok {
		t.Error("source should survive a failed move")
	}
}

func TestListFilesSortedAndFiltered(t *testing.T) {
	f := newFixture()
	f.folders.Create(ctx, "/acme/prod/m/")
	f.folders.Create(ctx, "/acme/prod/m/sub/")
	for _, p := range []string{"/acme/prod/m/z.hl", "/acme/prod/m/a.hl", "/acme/prod/m/b.md", "/acme/prod/m/sub/c.hl"} {
		if err := f.files.Save(ctx, p, p); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := f.files.ListFiles(ctx, "/acme/prod/m/", ".hl")
	if diff := cmp.Diff([]string{"/acme/prod/m/a.hl", "/acme/prod/m/z.hl"}, got); diff != "" {
		t.Errorf("ListFiles mismatch (-want +got):\n%s", diff)
	}
	got, _ = f.files.ListFilesRecursively(ctx, "/acme/prod/m/", ".hl")
	if diff := cmp.Diff([]string{"/acme/prod/m/a.hl", "/acme/prod/m/sub/c.hl", "/acme/prod/m/z.hl"}, got); diff != "" {
		t.Errorf("ListFilesRecursively mismatch (-want +got):\n%s", diff)
	}
	loaded, _ := f.files.LoadRecursively(ctx, "/acme/prod/m/sub/", "")
	if len(loaded) != 1 || string(loaded[0].Content) != "/acme/prod/m/sub/c.hl" {
		t.Errorf("LoadRecursively = %+v", loaded)
	}
}

func TestFolders(t *testing.T) {
	f := newFixture()
	if err := f.folders.Create(ctx, "/acme/prod/a/b/"); !cqldata.HasCode(err, cqldata.PreconditionFailed) {
		t.Errorf("expected precondition error, got %v", err)
	}
	for _, p := range []string{"/acme/prod/a/", "/acme/prod/a/b/", "/acme/prod/a/b/c/", "/acme/prod/a/d/", "/acme/prod/ab/"} {
		if err := f.folders.Create(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.folders.Create(ctx, "/acme/prod/a/"); err != nil {
		t.Errorf("creating an existing folder should be a no-op, got %v", err)
	}
	got, _ := f.folders.ListFolders(ctx, "/acme/prod/a/")
	if diff := cmp.Diff([]string{"/acme/prod/a/b/", "/acme/prod/a/d/"}, got); diff != "" {
		t.Errorf("ListFolders mismatch (-want +got):\n%s", diff)
	}
	got, _ = f.folders.ListFoldersRecursively(ctx, "/acme/prod/a/")
	if diff := cmp.Diff([]string{"/acme/prod/a/b/", "/acme/prod/a/b/c/", "/acme/prod/a/d/"}, got); diff != "" {
		t.Errorf("ListFoldersRecursively mismatch (-want +got):\n%s", diff)
	}

	f.files.Save(ctx, "/acme/prod/a/b/c/f.txt", "F")
	if err := f.folders.Delete(ctx, "/acme/prod/a/"); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"/acme/prod/a/", "/acme/prod/a/b/c/"} {
		if ok, _ := f.folders.Exists(ctx, p); ok {
			t.Errorf("%s should be deleted", p)
		}
	}
	if ok, _ := f.folders.Exists(ctx, "/acme/prod/ab/"); !ok {
		t.Error("sibling folder sharing the name prefix must survive")
	}
	if err := f.folders.Delete(ctx, "/acme/prod/a/"); !cqldata.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestFolderMove(t *testing.T) {
	f := newFixture()
	f.folders.Create(ctx, "/acme/prod/src/")
	f.folders.Create(ctx, "/acme/prod/src/inner/")
	f.files.Save(ctx, "/acme/prod/src/inner/x.txt", "X")

	if err := f.folders.Move(ctx, "/acme/prod/src/", "/acme/prod/src/inner/deeper/"); !cqldata.HasCode(err, cqldata.PreconditionFailed) {
		t.Errorf("expected precondition error, got %v", err)
	}
	if err := f.folders.Copy(ctx, "/acme/prod/src/", "/acme/prod/copy/"); err != nil {
		t.Fatal(err)
	}
	if err := f.folders.Move(ctx, "/acme/prod/src/", "/acme/prod/dst/"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.folders.Exists(ctx, "/acme/prod/src/"); ok {
		t.Error("source folder should be gone")
	}
	for _, p := range []string{"/acme/prod/dst/inner/x.txt", "/acme/prod/copy/inner/x.txt"} {
		if got, err := f.files.Load(ctx, p); err != nil || got != "X" {
			t.Errorf("%s = %q, %v", p, got, err)
		}
	}
}

func TestStreams(t *testing.T) {
	f := newFixture()
	s := NewStreamService(f.files)
	if err := s.SaveFile(ctx, strings.NewReader("stream"), "/acme/prod/s.txt", false); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveFile(ctx, strings.NewReader("again"), "/acme/prod/s.txt", false); !cqldata.HasCode(err, cqldata.PreconditionFailed) {
		t.Errorf("expected precondition error, got %v", err)
	}
	rc, err := s.OpenFile(ctx, "/acme/prod/s.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	ba, _ := io.ReadAll(rc)
	if string(ba) != "stream" {
		t.Errorf("got %q", ba)
	}
}

func TestRootWithoutTrailingSlash(t *testing.T) {
	f := newFixture()
	if err := f.files.Save(ctx, "/acme/prod/top.txt", "x"); err != nil {
		t.Fatal(err)
	}
	got, err := f.files.ListFiles(ctx, "/acme/prod", "")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/acme/prod/top.txt"}, got); diff != "" {
		t.Errorf("ListFiles mismatch (-want +got):\n%s", diff)
	}
	if ok, err := f.folders.Exists(ctx, "/acme/prod"); err != nil || !ok {
		t.Errorf("root folder Exists = %v, %v", ok, err)
	}
}

func TestPathOutsideRoot(t *testing.T) {
	f := newFixture()
	if err := f.files.Save(ctx, "/top.txt", "x"); !cqldata.HasCode(err, cqldata.PreconditionFailed) {
		t.Errorf("Save: expected precondition error, got %v", err)
	}
	if _, err := f.files.ListFiles(ctx, "/globex/prod/", ""); !cqldata.HasCode(err, cqldata.PreconditionFailed) {
		t.Errorf("ListFiles: expected precondition error, got %v", err)
	}
	if err := f.folders.Create(ctx, "/acme/production/"); !cqldata.HasCode(err, cqldata.PreconditionFailed) {
		t.Errorf("Create: expected precondition error, got %v", err)
	}
}

func TestRootFromContext(t *testing.T) {
	f := newFixture()
	globex := cqldata.WithRoot(ctx, cqldata.NewRootResolver("/globex/prod/", ""))
	if err := f.files.Save(globex, "/globex/prod/a.txt", "g"); err != nil {
		t.Fatal(err)
	}
	if err := f.files.Save(ctx, "/acme/prod/a.txt", "a"); err != nil {
		t.Fatal(err)
	}
	ba, ok, _ := f.store.GetFile(ctx, cqldata.Scope{Tenant: "globex", Cloudlet: "prod"}, "/", "a.txt")
	if !ok || string(ba) != "g" {
		t.Errorf("globex row = %q, %v", ba, ok)
	}
	if _, err := f.files.Load(globex, "/acme/prod/a.txt"); !cqldata.HasCode(err, cqldata.PreconditionFailed) {
		t.Errorf("expected precondition error reading another tenant's path, got %v", err)
	}
	got, _ := f.files.ListFilesRecursively(globex, "/globex/prod/", "")
	if diff := cmp.Diff([]string{"/globex/prod/a.txt"}, got); diff != "" {
		t.Errorf("ListFilesRecursively mismatch (-want +got):\n%s", diff)
	}
}
