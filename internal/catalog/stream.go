package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/molpadia/molpalearn/internal/domain/apperr"
	"github.com/molpadia/molpalearn/internal/domain/entity"
	"github.com/molpadia/molpalearn/internal/httprange"
)

const defaultContentType = "video/mp4"

// A resolved stream of a video. Either Chunks or Redirect is set.
type Stream struct {
	Video       *entity.Video
	Range       httprange.ByteRange
	Partial     bool
	ContentType string
	Chunks      *httprange.Chunks
	Redirect    string
	file        *os.File
}

// Release the underlying file.
func (s *Stream) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// RangeError reports a requested range outside of a resource of Total bytes.
type RangeError struct {
	Total int64
	err   error
}

func (e *RangeError) Error() string { return e.err.Error() }

func (e *RangeError) Unwrap() error { return e.err }

// Open the video for streaming the window requested by the Range header. The
// caller must close the stream.
func (s *Service) Stream(ctx context.Context, id, rangeHeader string) (*Stream, error) {
	id, err := entity.ParseVideoId(id)
	if err != nil {
		return nil, err
	}
	v, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	s.countView(v.Id)

	if v.Storage != entity.StorageLocal {
		return s.remote(ctx, v)
	}
	if s.storage.Kind() != entity.StorageLocal {
		return nil, apperr.Newf(apperr.KindNotImplemented, "video is stored on %s which is not active", v.Storage)
	}
	loc, err := s.storage.Resolve(ctx, v.Filename)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(loc.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.New(apperr.KindNotFound, "video file not found on disk")
		}
		return nil, apperr.Wrap(apperr.KindStorageIO, err, "cannot open video file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, apperr.Wrap(apperr.KindStorageIO, err, "cannot stat video file")
	}

	br, partial, err := httprange.ParseWindow(rangeHeader, info.Size())
	if err != nil {
		f.Close()
		if errors.Is(err, httprange.ErrEmptyResource) {
			return nil, apperr.Wrap(apperr.KindStorageIO, err, "video file is empty")
		}
		return nil, &RangeError{
			Total: info.Size(),
			err:   apperr.Wrap(apperr.KindRangeNotSatisfiable, err, fmt.Sprintf("requested range not satisfiable for %d bytes", info.Size())),
		}
	}
	contentType := v.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	return &Stream{
		Video:       v,
		Range:       br,
		Partial:     partial,
		ContentType: contentType,
		Chunks:      httprange.NewChunks(f, br),
		file:        f,
	}, nil
}

// Remote blobs are not proxied. Clients are sent to a signed URL when the
// redirect is enabled.
func (s *Service) remote(ctx context.Context, v *entity.Video) (*Stream, error) {
	if !s.redirect || s.storage.Kind() != v.Storage {
		return nil, apperr.New(apperr.KindNotImplemented, "streaming from remote storage is not supported")
	}
	loc, err := s.storage.Resolve(ctx, v.Filename)
	if err != nil {
		return nil, err
	}
	return &Stream{Video: v, ContentType: v.ContentType, Redirect: loc.URL}, nil
}
