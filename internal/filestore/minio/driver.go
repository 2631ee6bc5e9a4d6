// Package minio provides a MinIO implementation of filestore.Store.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	dialer := minio.NewDialer(cfg)
//
//	store, err := dialer.Dial(ctx)
//	if err != nil { ... }
//	defer store.Close()
package minio

import (
	"context"
	"io"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// amzACLHeader is passed through PutObjectOptions.UserMetadata verbatim.
const amzACLHeader = "x-amz-acl"

// Driver is a MinIO implementation of filestore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	core   *miniogo.Core
}

// New creates a Driver for cfg. No network I/O happens until the first call,
// and failed calls are not retried.
func New(cfg *filestore.Config) (*Driver, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:      credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:     cfg.UseSSL,
		Region:     cfg.Region,
		MaxRetries: 1,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to create minio client", err)
	}

	return &Driver{
		client: client,
		core:   &miniogo.Core{Client: client},
	}, nil
}

// NewDialer returns a filestore.Dialer that builds a fresh Driver per session.
func NewDialer(cfg *filestore.Config) filestore.Dialer {
	return filestore.DialFunc(func(ctx context.Context) (filestore.Store, error) {
		if err := ctx.Err(); err != nil {
			return nil, mapError(err, "dial canceled")
		}
		return New(cfg)
	})
}

// --- filestore.Store implementation ---

// Close is a no-op for MinIO; the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// ListObjects issues one V1 list call. Core.ListObjects takes no context,
// so cancellation is only observed before the request is sent.
func (d *Driver) ListObjects(ctx context.Context, bucket string, req filestore.ListRequest) (*filestore.ListPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapError(err, "failed to list objects")
	}

	res, err := d.core.ListObjects(bucket, req.Prefix, req.Marker, req.Delimiter, req.MaxKeys)
	if err != nil {
		return nil, mapError(err, "failed to list objects")
	}

	page := &filestore.ListPage{
		Objects:        make([]filestore.ObjectInfo, 0, len(res.Contents)),
		CommonPrefixes: make([]string, 0, len(res.CommonPrefixes)),
		IsTruncated:    res.IsTruncated,
		NextMarker:     res.NextMarker,
	}
	for _, obj := range res.Contents {
		page.Objects = append(page.Objects, filestore.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})
	}
	for _, p := range res.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, p.Prefix)
	}

	if page.IsTruncated && page.NextMarker == "" {
		page.NextMarker = lastEntry(page)
	}
	return page, nil
}

// PutObject uploads r as a single object.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts filestore.PutOptions) error {
	putOpts := miniogo.PutObjectOptions{ContentType: opts.ContentType}
	if opts.ACL != "" {
		putOpts.UserMetadata = map[string]string{amzACLHeader: opts.ACL}
	}

	if _, err := d.client.PutObject(ctx, bucket, key, r, size, putOpts); err != nil {
		return mapError(err, "failed to put object")
	}
	return nil
}

// GetObject opens a streaming handle to the object at key inside bucket.
// The caller MUST call Object.Close() after reading.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	obj, err := d.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	// GetObject is lazy; Stat forces the request so a missing key fails here.
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapError(err, "failed to stat object after get")
	}

	return &object{
		ReadCloser: obj,
		info: &filestore.ObjectInfo{
			Key:          key,
			Size:         stat.Size,
			ContentType:  stat.ContentType,
			ETag:         stat.ETag,
			LastModified: stat.LastModified,
		},
	}, nil
}

// StatObject returns metadata for the object at key inside bucket
// without downloading its content.
func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	stat, err := d.client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}

	return &filestore.ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
	}, nil
}

// DeleteObject removes a single object. S3 semantics make this idempotent.
func (d *Driver) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := d.client.RemoveObject(ctx, bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError(err, "failed to delete object")
	}
	return nil
}

// DeleteObjects removes keys with one multi-object delete request.
// The first per-key failure reported by the server is returned.
func (d *Driver) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	if len(keys) > filestore.MaxDeleteBatch {
		return errs.Newf(errs.ErrKindInvalidInput, "cannot delete %d keys in one call", len(keys))
	}

	objectsCh := make(chan miniogo.ObjectInfo, len(keys))
	for _, k := range keys {
		objectsCh <- miniogo.ObjectInfo{Key: k}
	}
	close(objectsCh)

	var first error
	for rerr := range d.client.RemoveObjects(ctx, bucket, objectsCh, miniogo.RemoveObjectsOptions{}) {
		if first == nil && rerr.Err != nil {
			first = mapError(rerr.Err, "failed to delete object "+rerr.ObjectName)
		}
	}
	return first
}

// --- internal types ---

// object wraps a MinIO GetObject response and exposes filestore.Object.
type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}

// lastEntry returns the lexically greatest entry on a page, which is the
// marker V1 listings expect when the server omits NextMarker.
func lastEntry(page *filestore.ListPage) string {
	var last string
	if n := len(page.Objects); n > 0 {
		last = page.Objects[n-1].Key
	}
	if n := len(page.CommonPrefixes); n > 0 && page.CommonPrefixes[n-1] > last {
		last = page.CommonPrefixes[n-1]
	}
	return last
}
