package repository

import (
	"context"
	"io"
	"time"

	"github.com/molpadia/molpalearn/internal/domain/entity"
)

// Where a stored blob can be read from.
type Location struct {
	Path      string    // Filesystem path usable for range reads (local).
	URL       string    // Time-limited signed URL (remote).
	ExpiresAt time.Time // Expiry of the signed URL.
}

type Storage interface {
	// The identity of the backend, recorded on every video it stores.
	Kind() entity.StorageKind
	// Persist the content under a generated name. Fails with payload too large
	// once more than maxBytes were read, leaving nothing behind.
	Save(ctx context.Context, r io.Reader, originalName, contentType string, maxBytes int64) (*entity.Blob, error)
	// Remove the blob, reporting whether it existed.
	Delete(ctx context.Context, name string) (bool, error)
	// Get the location of the blob.
	Resolve(ctx context.Context, name string) (*Location, error)
	// Determine whether the blob exists.
	Exists(ctx context.Context, name string) (bool, error)
}
