package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/molpadia/molpalearn/internal/domain/apperr"
	"github.com/molpadia/molpalearn/internal/domain/entity"
	"github.com/molpadia/molpalearn/internal/domain/repository"
)

// Local stores blobs as files under a base directory.
type Local struct {
	baseDir string
	newName func(original string) string
}

var _ repository.Storage = (*Local)(nil)

// NewLocal creates the base directory if needed.
func NewLocal(baseDir string) (*Local, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Local{baseDir: baseDir, newName: GenerateName}, nil
}

func (l *Local) Kind() entity.StorageKind { return entity.StorageLocal }

func (l *Local) path(name string) (string, error) {
	if !validName(name) {
		return "", apperr.Newf(apperr.KindNotFound, "blob %q not found", name)
	}
	return filepath.Join(l.baseDir, name), nil
}

func (l *Local) Save(ctx context.Context, r io.Reader, originalName, contentType string, maxBytes int64) (*entity.Blob, error) {
	name := l.newName(originalName)
	p, err := l.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageIO, err, "cannot create blob")
	}
	src := &limitedReader{r: &ctxReader{ctx: ctx, r: r}, max: maxBytes}
	size, err := io.CopyBuffer(writerOnly{f}, src, make([]byte, chunkSize))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(p)
		if src.err != nil {
			return nil, src.err
		}
		return nil, apperr.Wrap(apperr.KindStorageIO, err, "cannot write blob")
	}
	return &entity.Blob{Name: name, OriginalName: originalName, Size: size, Storage: entity.StorageLocal}, nil
}

func (l *Local) Delete(ctx context.Context, name string) (bool, error) {
	p, err := l.path(name)
	if err != nil {
		return false, nil
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, apperr.Wrap(apperr.KindStorageIO, err, "cannot delete blob")
	}
	return true, nil
}

func (l *Local) Resolve(ctx context.Context, name string) (*repository.Location, error) {
	p, err := l.path(name)
	if err != nil {
		return nil, err
	}
	ok, err := l.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "video file not found on disk")
	}
	return &repository.Location{Path: p}, nil
}

func (l *Local) Exists(ctx context.Context, name string) (bool, error) {
	p, err := l.path(name)
	if err != nil {
		return false, nil
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, apperr.Wrap(apperr.KindStorageIO, err, "cannot stat blob")
	}
	return info.Mode().IsRegular(), nil
}

// Hides ReadFrom so the copy goes through the bounded buffer.
type writerOnly struct{ io.Writer }

// A reader which stops once the context is done, so an abandoned upload
// does not keep writing.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
