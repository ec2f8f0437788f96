package files

import (
	"bytes"
	"context"
	"io"

	"github.com/magiccloud/cqldata"
)

type streamService struct {
	files cqldata.FileService
}

// NewStreamService returns a StreamService over files. Content is buffered in memory,
// rows are single blob cells.
func NewStreamService(files cqldata.FileService) cqldata.StreamService {
	return &streamService{files: files}
}

func (s *streamService) OpenFile(ctx context.Context, path string) (io.ReadCloser, error) {
	ba, err := s.files.LoadBinary(ctx, path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(ba)), nil
}

func (s *streamService) SaveFile(ctx context.Context, r io.Reader, path string, overwrite bool) error {
	if !overwrite {
		ok, err := s.files.Exists(ctx, path)
		if err != nil {
			return err
		}
		if ok {
			return cqldata.Errorf(cqldata.PreconditionFailed, "file '%s' already exists", path)
		}
	}
	ba, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return s.files.SaveBinary(ctx, path, ba)
}
