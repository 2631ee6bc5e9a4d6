// Package filestore defines the interface the filesystem adapter uses to
// talk to an object storage backend.
//
// Providers (MinIO, AWS S3) implement Store and expose a Dialer. Callers
// depend only on this package, never on a specific provider package.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	dialer := minio.NewDialer(cfg)
//
//	store, err := dialer.Dial(ctx)
//	if err != nil { ... }
//	defer store.Close()
//
//	page, err := store.ListObjects(ctx, "media", filestore.ListRequest{Prefix: "uploads/"})
package filestore

import (
	"context"
	"io"
)

// Store is one client session against a storage backend.
// Every method issues exactly one backend call and returns errors
// tagged with an errs.ErrKind.
type Store interface {
	// ListObjects returns a single page of the listing described by req.
	ListObjects(ctx context.Context, bucket string, req ListRequest) (*ListPage, error)

	// PutObject creates or fully replaces the object at key.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts PutOptions) error

	// GetObject opens a streaming handle to the object at key.
	// The caller MUST call Object.Close() after reading.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// StatObject returns metadata for the object at key without downloading its content.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// DeleteObject removes the object at key. Deleting a missing key succeeds.
	DeleteObject(ctx context.Context, bucket, key string) error

	// DeleteObjects removes up to MaxDeleteBatch keys in one call.
	DeleteObjects(ctx context.Context, bucket string, keys []string) error

	// Close releases the session.
	Close() error
}

// Dialer opens a new Store session. Sessions are not shared between operations.
type Dialer interface {
	Dial(ctx context.Context) (Store, error)
}

// DialFunc adapts an ordinary function to the Dialer interface.
type DialFunc func(ctx context.Context) (Store, error)

// Dial calls f(ctx).
func (f DialFunc) Dial(ctx context.Context) (Store, error) {
	return f(ctx)
}
