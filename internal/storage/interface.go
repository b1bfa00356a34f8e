package storage

import (
	"context"
	"io"
)

// ObjectStorage is the object store the article archive writes to.
type ObjectStorage interface {
	// EnsureBucket makes sure the target bucket exists.
	EnsureBucket(ctx context.Context) error

	// Upload stores an object under key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// GetURL returns the public URL of key.
	GetURL(key string) string
}
