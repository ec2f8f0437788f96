package cassandra

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/magiccloud/cqldata"
)

// openLive connects to the cluster named by CQLDATA_CASSANDRA_HOSTS (comma separated) or skips.
func openLive(t *testing.T) *Connection {
	hosts := os.Getenv("CQLDATA_CASSANDRA_HOSTS")
	if hosts == "" {
		t.Skip("CQLDATA_CASSANDRA_HOSTS not set")
	}
	c, err := OpenConnection(Config{
		ClusterHosts:      strings.Split(hosts, ","),
		ConnectionTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestLiveFileStore(t *testing.T) {
	c := openLive(t)
	scope := cqldata.Scope{Tenant: "it", Cloudlet: cqldata.NewUUID().String()}
	fs := NewFileStore(c)

	if err := fs.PutFile(ctx, scope, "/docs/", "", nil); err != nil {
		t.Fatal(err)
	}
	if err := fs.PutFile(ctx, scope, "/docs/", "readme.txt", []byte("Hello")); err != nil {
		t.Fatal(err)
	}
	if err := fs.PutFile(ctx, scope, "/docsx/", "other.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}
	ba, ok, err := fs.GetFile(ctx, scope, "/docs/", "readme.txt")
	if err != nil || !ok || string(ba) != "Hello" {
		t.Fatalf("GetFile = %q, %v, %v", ba, ok, err)
	}
	rows, err := fs.ScanPrefix(ctx, scope, "/docs/", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("ScanPrefix returned %d rows, want 2", len(rows))
	}
	if err := fs.DeleteFolderRows(ctx, scope, "/docs/"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := fs.FileExists(ctx, scope, "/docs/", "readme.txt"); ok {
		t.Error("readme.txt should be deleted")
	}
	if c.Statements() == 0 {
		t.Error("statements should be memoized")
	}
}

func TestLiveCacheStore(t *testing.T) {
	c := openLive(t)
	scope := cqldata.Scope{Tenant: "it", Cloudlet: cqldata.NewUUID().String()}
	cs := NewCacheStore(c)

	if err := cs.PutValue(ctx, scope, "+k", "v", time.Second); err != nil {
		t.Fatal(err)
	}
	if v, ok, err := cs.GetValue(ctx, scope, "+k"); err != nil || !ok || v != "v" {
		t.Fatalf("GetValue = %q, %v, %v", v, ok, err)
	}
	time.Sleep(2 * time.Second)
	if _, ok, _ := cs.GetValue(ctx, scope, "+k"); ok {
		t.Error("+k should have expired")
	}
}

func TestLiveLogStore(t *testing.T) {
	c := openLive(t)
	scope := cqldata.Scope{Tenant: "it", Cloudlet: cqldata.NewUUID().String()}
	ls := NewLogStore(c)

	for i := 0; i < 3; i++ {
		if _, err := ls.AddEntry(ctx, scope, cqldata.LogEntry{Type: "info", Content: "hello", Meta: map[string]string{"i": "x"}}); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
	page, err := ls.Entries(ctx, scope, cqldata.LogFilter{Max: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d entries", len(page))
	}
	rest, err := ls.Entries(ctx, scope, cqldata.LogFilter{Max: 2, Before: page[1].ID})
	if err != nil || len(rest) != 1 {
		t.Errorf("second page = %d entries, %v", len(rest), err)
	}
	if n, _ := ls.CountEntries(ctx, scope, ""); n != 3 {
		t.Errorf("count = %d", n)
	}
	e, ok, err := ls.Entry(ctx, scope, page[0].ID)
	if err != nil || !ok || e.Meta["i"] != "x" {
		t.Errorf("Entry = %+v, %v, %v", e, ok, err)
	}

	records, err := c.Execute(ctx, "SELECT type, content FROM magic_log.log WHERE tenant = ? AND cloudlet = ?;", scope.Tenant, scope.Cloudlet)
	if err != nil || len(records) != 3 {
		t.Fatalf("Execute = %d records, %v", len(records), err)
	}
	if v, _ := records[0].Get("type"); v != "info" {
		t.Errorf("type = %v", v)
	}
}
