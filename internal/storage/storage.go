// Package storage archives raw uploaded CSV payloads in an S3-compatible
// object store, keyed by task ID, so a failed ingestion can be inspected and
// resubmitted after the fix.
package storage

import (
	"context"
	"io"
)

// PayloadArchive stores and retrieves raw ingestion payloads.
type PayloadArchive interface {
	// Put stores an object under key.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Get retrieves an object by key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error

	// Exists checks whether an object is present.
	Exists(ctx context.Context, key string) (bool, error)
}
