package s3

import (
	"context"
	"os"
	"testing"

	"github.com/magiccloud/cqldata"
)

func TestObjectKeys(t *testing.T) {
	scope := cqldata.Scope{Tenant: "acme", Cloudlet: "prod/eu"}
	key := objectKey(scope, "/docs/", "readme.txt")
	if key != "acme/prod%2Feu/docs/readme.txt" {
		t.Fatalf("got %q", key)
	}
	row, ok := rowOf(scope, key)
	if !ok || row.Folder != "/docs/" || row.Filename != "readme.txt" {
		t.Errorf("got %+v %v", row, ok)
	}
	marker, ok := rowOf(scope, objectKey(scope, "/docs/", ""))
	if !ok || marker.Folder != "/docs/" || marker.Filename != "" {
		t.Errorf("got %+v %v", marker, ok)
	}
	if _, ok := rowOf(cqldata.Scope{Tenant: "acme", Cloudlet: "prod"}, key); ok {
		t.Error("key of another cloudlet should not convert")
	}
}

func TestLiveFileStore(t *testing.T) {
	endpoint := os.Getenv("CQLDATA_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("CQLDATA_S3_ENDPOINT not set")
	}
	cfg := Config{
		HostEndpointUrl: endpoint,
		Region:          "us-east-1",
		Username:        os.Getenv("CQLDATA_S3_USERNAME"),
		Password:        os.Getenv("CQLDATA_S3_PASSWORD"),
		Bucket:          "cqldata-it",
		UsePathStyle:    true,
	}
	ctx := context.Background()
	client := Connect(cfg)
	if err := EnsureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
		t.Fatal(err)
	}
	fs := NewFileStore(client, cfg.Bucket, nil)
	scope := cqldata.Scope{Tenant: "it", Cloudlet: cqldata.NewUUID().String()}

	fs.PutFile(ctx, scope, "/docs/", "", nil)
	fs.PutFile(ctx, scope, "/docs/", "a.txt", []byte("A"))
	fs.PutFile(ctx, scope, "/docs/sub/", "b.txt", []byte("B"))

	rows, err := fs.ListFolder(ctx, scope, "/docs/")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("ListFolder returned %v", rows)
	}
	rows, err = fs.ScanPrefix(ctx, scope, "/docs/", true)
	if err != nil || len(rows) != 3 {
		t.Errorf("ScanPrefix returned %v, %v", rows, err)
	}
	if err := fs.DeleteFolderRows(ctx, scope, "/docs/"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := fs.FileExists(ctx, scope, "/docs/", "a.txt"); ok {
		t.Error("a.txt still exists")
	}
	fs.DeleteFolderRows(ctx, scope, "/docs/sub/")
}
