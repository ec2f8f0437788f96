package mixed

import (
	"context"
	"io"

	"github.com/magiccloud/cqldata"
)

type streamService struct {
	router   *Router
	backends map[string]cqldata.StreamService
}

// NewStreamService returns a StreamService dispatching each call to the backend its path routes to.
func NewStreamService(router *Router, backends map[string]cqldata.StreamService) (cqldata.StreamService, error) {
	b, err := backendsOf(router, backends)
	if err != nil {
		return nil, err
	}
	return &streamService{router: router, backends: b}, nil
}

func (s *streamService) OpenFile(ctx context.Context, path string) (io.ReadCloser, error) {
	name, err := s.router.Resolve(ctx, path, false)
	if err != nil {
		return nil, err
	}
	return s.backends[name].OpenFile(ctx, path)
}

func (s *streamService) SaveFile(ctx context.Context, r io.Reader, path string, overwrite bool) error {
	name, err := s.router.Resolve(ctx, path, true)
	if err != nil {
		return err
	}
	return s.backends[name].SaveFile(ctx, r, path, overwrite)
}
