package s3

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/magiccloud/cqldata"
	"github.com/magiccloud/cqldata/metrics"
)

const (
	largeObjectMinSize = 10 * 1024 * 1024
	// DeleteObjects accepts at most 1000 keys per call.
	deleteBatch = 1000
)

type fileStore struct {
	bucketName string
	s3Client   *s3.Client
	metrics    *metrics.Metrics
}

// NewFileStore returns a cqldata.FileStore over the bucket.
func NewFileStore(client *s3.Client, bucketName string, m *metrics.Metrics) cqldata.FileStore {
	return &fileStore{
		bucketName: bucketName,
		s3Client:   client,
		metrics:    m,
	}
}

// scopePrefix escapes tenant and cloudlet so a "/" inside a cloudlet can't collide with a folder.
func scopePrefix(scope cqldata.Scope) string {
	return url.PathEscape(scope.Tenant) + "/" + url.PathEscape(scope.Cloudlet) + "/"
}

func objectKey(scope cqldata.Scope, folder string, filename string) string {
	return scopePrefix(scope) + strings.TrimPrefix(folder, "/") + filename
}

// rowOf converts an object key back into its folder and filename.
func rowOf(scope cqldata.Scope, key string) (cqldata.FileRow, bool) {
	p := scopePrefix(scope)
	if !strings.HasPrefix(key, p) {
		return cqldata.FileRow{}, false
	}
	folder, filename := cqldata.BreakDownPath("/" + key[len(p):])
	return cqldata.FileRow{Folder: folder, Filename: filename}, true
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

// GetFile downloads the object with the multipart downloader.
func (b *fileStore) GetFile(ctx context.Context, scope cqldata.Scope, folder string, filename string) ([]byte, bool, error) {
	start := time.Now()
	downloader := manager.NewDownloader(b.s3Client, func(d *manager.Downloader) {
		d.PartSize = largeObjectMinSize
	})
	buffer := manager.NewWriteAtBuffer([]byte{})
	_, err := downloader.Download(ctx, buffer, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(objectKey(scope, folder, filename)),
	})
	if isNotFound(err) {
		b.metrics.ObserveQuery("s3", "get", start, nil)
		return nil, false, nil
	}
	b.metrics.ObserveQuery("s3", "get", start, err)
	if err != nil {
		return nil, false, err
	}
	return buffer.Bytes(), true, nil
}

func (b *fileStore) FileExists(ctx context.Context, scope cqldata.Scope, folder string, filename string) (bool, error) {
	start := time.Now()
	_, err := b.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(objectKey(scope, folder, filename)),
	})
	if isNotFound(err) {
		b.metrics.ObserveQuery("s3", "exists", start, nil)
		return false, nil
	}
	b.metrics.ObserveQuery("s3", "exists", start, err)
	return err == nil, err
}

// PutFile uploads the object, large objects go through the multipart uploader.
func (b *fileStore) PutFile(ctx context.Context, scope cqldata.Scope, folder string, filename string, content []byte) error {
	start := time.Now()
	key := objectKey(scope, folder, filename)
	var err error
	if len(content) >= largeObjectMinSize {
		uploader := manager.NewUploader(b.s3Client, func(u *manager.Uploader) {
			u.PartSize = largeObjectMinSize
		})
		_, err = uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucketName),
			Key:    aws.String(key),
			Body:   bytes.NewReader(content),
		})
	} else {
		_, err = b.s3Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucketName),
			Key:    aws.String(key),
			Body:   bytes.NewReader(content),
		})
	}
	b.metrics.ObserveQuery("s3", "put", start, err)
	return err
}

func (b *fileStore) DeleteFile(ctx context.Context, scope cqldata.Scope, folder string, filename string) error {
	start := time.Now()
	_, err := b.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(objectKey(scope, folder, filename)),
	})
	b.metrics.ObserveQuery("s3", "delete", start, err)
	return err
}

// ListFolder lists with a "/" delimiter so objects of sub folders are rolled up and skipped.
func (b *fileStore) ListFolder(ctx context.Context, scope cqldata.Scope, folder string) ([]cqldata.FileRow, error) {
	start := time.Now()
	rows, err := b.list(ctx, scope, objectKey(scope, folder, ""), "/", false)
	b.metrics.ObserveQuery("s3", "list", start, err)
	return rows, err
}

func (b *fileStore) ScanPrefix(ctx context.Context, scope cqldata.Scope, prefix string, withContent bool) ([]cqldata.FileRow, error) {
	start := time.Now()
	rows, err := b.list(ctx, scope, objectKey(scope, prefix, ""), "", withContent)
	b.metrics.ObserveQuery("s3", "scan", start, err)
	return rows, err
}

// DeleteFolderRows deletes the objects of exactly folder in batches.
func (b *fileStore) DeleteFolderRows(ctx context.Context, scope cqldata.Scope, folder string) error {
	start := time.Now()
	err := b.deleteFolderRows(ctx, scope, folder)
	b.metrics.ObserveQuery("s3", "delete_folder", start, err)
	return err
}

func (b *fileStore) deleteFolderRows(ctx context.Context, scope cqldata.Scope, folder string) error {
	rows, err := b.list(ctx, scope, objectKey(scope, folder, ""), "/", false)
	if err != nil {
		return err
	}
	for len(rows) > 0 {
		n := min(len(rows), deleteBatch)
		ids := make([]types.ObjectIdentifier, n)
		for i := range ids {
			ids[i] = types.ObjectIdentifier{Key: aws.String(objectKey(scope, rows[i].Folder, rows[i].Filename))}
		}
		out, err := b.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucketName),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return err
		}
		if len(out.Errors) > 0 {
			return &objectError{out.Errors[0]}
		}
		rows = rows[n:]
	}
	return nil
}

func (b *fileStore) list(ctx context.Context, scope cqldata.Scope, prefix string, delimiter string, withContent bool) ([]cqldata.FileRow, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucketName),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}
	var rows []cqldata.FileRow
	paginator := s3.NewListObjectsV2Paginator(b.s3Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			row, ok := rowOf(scope, aws.ToString(obj.Key))
			if !ok {
				continue
			}
			rows = append(rows, row)
		}
	}
	if withContent {
		for i := range rows {
			ba, found, err := b.GetFile(ctx, scope, rows[i].Folder, rows[i].Filename)
			if err != nil {
				return nil, err
			}
			if found {
				rows[i].Content = ba
			}
		}
	}
	return rows, nil
}

type objectError struct {
	e types.Error
}

func (o *objectError) Error() string {
	return "delete object " + aws.ToString(o.e.Key) + ": " + aws.ToString(o.e.Code) + " " + aws.ToString(o.e.Message)
}
