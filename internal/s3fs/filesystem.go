// Package s3fs presents an object storage bucket as a hierarchical
// filesystem. Directories do not exist in the bucket; they are emulated
// with key prefixes and delimiter listings.
//
// Every operation dials its own storage session and closes it before
// returning. A FileSystem holds only immutable configuration and is safe
// for concurrent use.
//
// Content is fully buffered in memory on upload and download, so object
// size is bounded by available memory.
package s3fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/logger"
	"github.com/koustreak/bucketfs/internal/metrics"
)

// FileSystem implements the host filesystem operations over one bucket.
type FileSystem struct {
	cfg     BucketConfig
	dialer  filestore.Dialer
	log     *logger.Logger
	metrics *metrics.Collector
	timeout time.Duration
}

// Option configures a FileSystem.
type Option func(*FileSystem)

// WithLogger sets the logger used for per-operation debug logs.
func WithLogger(l *logger.Logger) Option {
	return func(fs *FileSystem) {
		if l != nil {
			fs.log = l
		}
	}
}

// WithMetrics records every operation in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(fs *FileSystem) { fs.metrics = c }
}

// WithOperationTimeout bounds each operation, including every page of a
// listing, by d. Zero means no limit beyond the caller's context.
func WithOperationTimeout(d time.Duration) Option {
	return func(fs *FileSystem) { fs.timeout = d }
}

// New returns a FileSystem over the bucket in cfg, opening sessions with dialer.
func New(cfg BucketConfig, dialer filestore.Dialer, opts ...Option) *FileSystem {
	fs := &FileSystem{
		cfg:    cfg,
		dialer: dialer,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Config returns the bucket configuration.
func (fs *FileSystem) Config() BucketConfig {
	return fs.cfg
}

// GetDirectories lists the pseudo-directories directly under path.
// Every returned entry is a full key prefix ending in exactly one "/": a
// prefix the store already reports as "a/" comes back as "a/", not "a//".
func (fs *FileSystem) GetDirectories(ctx context.Context, p string) ([]string, error) {
	prefix := fs.cfg.ResolveBucketPath(p)

	var dirs []string
	err := fs.withStore(ctx, "GetDirectories", prefix, func(ctx context.Context, st filestore.Store) error {
		prefixes, err := collectPrefixes(ctx, fs.pager(st, filestore.ListRequest{
			Prefix:    prefix,
			Delimiter: Delimiter,
		}))
		if err != nil {
			return err
		}
		dirs = make([]string, len(prefixes))
		for i, cp := range prefixes {
			dirs[i] = withTrailingDelimiter(cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

// DirectoryExists reports whether at least one object lives under path.
// It issues a single list call capped at one key.
func (fs *FileSystem) DirectoryExists(ctx context.Context, p string) (bool, error) {
	prefix := fs.cfg.ResolveBucketPath(p)

	var exists bool
	err := fs.withStore(ctx, "DirectoryExists", prefix, func(ctx context.Context, st filestore.Store) error {
		page, err := st.ListObjects(ctx, fs.cfg.bucketName, filestore.ListRequest{
			Prefix:  prefix,
			MaxKeys: 1,
		})
		if err != nil {
			return err
		}
		fs.metrics.PageListed()
		exists = len(page.Objects) > 0
		return nil
	})
	return exists, err
}

// DeleteDirectory deletes every object whose key starts with the resolved
// path. The match is on the literal prefix: "docs" also removes "docs-old/x".
// recursive is accepted for interface compatibility and has no effect; the
// whole prefix is always removed.
func (fs *FileSystem) DeleteDirectory(ctx context.Context, p string, recursive bool) error {
	prefix := fs.cfg.ResolveBucketPath(p)

	return fs.withStore(ctx, "DeleteDirectory", prefix, func(ctx context.Context, st filestore.Store) error {
		keys, err := collectKeys(ctx, fs.pager(st, filestore.ListRequest{Prefix: prefix}))
		if err != nil {
			return err
		}

		for start := 0; start < len(keys); start += filestore.MaxDeleteBatch {
			end := min(start+filestore.MaxDeleteBatch, len(keys))
			if err := st.DeleteObjects(ctx, fs.cfg.bucketName, keys[start:end]); err != nil {
				return err
			}
		}

		fs.log.With().
			Str("prefix", prefix).
			Int("deleted", len(keys)).
			Bool("recursive", recursive).
			Logger().
			Debug("directory deleted")
		return nil
	})
}

// RemoveDirectory is DeleteDirectory with recursive set to false.
func (fs *FileSystem) RemoveDirectory(ctx context.Context, p string) error {
	return fs.DeleteDirectory(ctx, p, false)
}

// AddFile stores the full content of r at path as a public-read binary
// object. When overrideIfExists is false and the object already exists the
// call fails with ErrKindAlreadyExists. The existence check and the write
// are separate requests, so two concurrent writers may both succeed.
func (fs *FileSystem) AddFile(ctx context.Context, p string, r io.Reader, overrideIfExists bool) error {
	key := fs.cfg.ResolveBucketPath(p)

	data, err := io.ReadAll(r)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to read file content", err)
	}

	return fs.withStore(ctx, "AddFile", key, func(ctx context.Context, st filestore.Store) error {
		if !overrideIfExists {
			_, err := st.StatObject(ctx, fs.cfg.bucketName, key)
			switch {
			case err == nil:
				return errs.Newf(errs.ErrKindAlreadyExists, "object %q already exists", key)
			case !errs.IsNotFound(err):
				return err
			}
		}

		return st.PutObject(ctx, fs.cfg.bucketName, key, bytes.NewReader(data), int64(len(data)), filestore.PutOptions{
			ContentType: filestore.ContentTypeBinary,
			ACL:         filestore.ACLPublicRead,
		})
	})
}

// PutFile is AddFile with overrideIfExists set to true.
func (fs *FileSystem) PutFile(ctx context.Context, p string, r io.Reader) error {
	return fs.AddFile(ctx, p, r, true)
}

// GetFiles lists the object keys directly under path whose base name
// matches filter (path.Match syntax). An empty filter or "*" matches all.
func (fs *FileSystem) GetFiles(ctx context.Context, p, filter string) ([]string, error) {
	match, err := compileFilter(filter)
	if err != nil {
		return nil, err
	}
	prefix := fs.cfg.ResolveBucketPath(p)

	var files []string
	err = fs.withStore(ctx, "GetFiles", prefix, func(ctx context.Context, st filestore.Store) error {
		keys, err := collectKeys(ctx, fs.pager(st, filestore.ListRequest{
			Prefix:    prefix,
			Delimiter: Delimiter,
		}))
		if err != nil {
			return err
		}
		for _, k := range keys {
			if match(k) {
				files = append(files, k)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// ListFiles is GetFiles without a filter.
func (fs *FileSystem) ListFiles(ctx context.Context, p string) ([]string, error) {
	return fs.GetFiles(ctx, p, "")
}

// OpenFile downloads the object at path into memory and returns a seekable reader.
func (fs *FileSystem) OpenFile(ctx context.Context, p string) (io.ReadSeeker, error) {
	key := fs.cfg.ResolveBucketPath(p)

	var data []byte
	err := fs.withStore(ctx, "OpenFile", key, func(ctx context.Context, st filestore.Store) error {
		obj, err := st.GetObject(ctx, fs.cfg.bucketName, key)
		if err != nil {
			return err
		}
		defer obj.Close()

		data, err = io.ReadAll(obj)
		if err != nil {
			return errs.Wrap(errs.ErrKindBackend, "failed to read object body", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// DeleteFile deletes the object at path. Deleting a missing object succeeds.
func (fs *FileSystem) DeleteFile(ctx context.Context, p string) error {
	key := fs.cfg.ResolveBucketPath(p)

	return fs.withStore(ctx, "DeleteFile", key, func(ctx context.Context, st filestore.Store) error {
		return st.DeleteObject(ctx, fs.cfg.bucketName, key)
	})
}

// FileExists reports whether an object exists at path using a metadata
// request. Not-found is answered with false; any other failure is returned.
func (fs *FileSystem) FileExists(ctx context.Context, p string) (bool, error) {
	key := fs.cfg.ResolveBucketPath(p)

	var exists bool
	err := fs.withStore(ctx, "FileExists", key, func(ctx context.Context, st filestore.Store) error {
		_, err := st.StatObject(ctx, fs.cfg.bucketName, key)
		switch {
		case err == nil:
			exists = true
			return nil
		case errs.IsNotFound(err):
			return nil
		default:
			return err
		}
	})
	return exists, err
}

// IsRoot reports whether path names the filesystem root. DeleteDirectory on
// the root removes everything under the bucket prefix.
func (fs *FileSystem) IsRoot(p string) bool {
	return fs.cfg.IsRoot(p)
}

// GetURL returns the public URL of the object at path.
func (fs *FileSystem) GetURL(p string) string {
	return fs.cfg.GetURL(p)
}

// GetFullPath is GetURL; the bucket host is the filesystem root.
func (fs *FileSystem) GetFullPath(p string) string {
	return fs.cfg.GetURL(p)
}

// GetRelativePath returns absolute URLs unchanged and builds one otherwise.
func (fs *FileSystem) GetRelativePath(fullPathOrURL string) string {
	return fs.cfg.GetRelativePath(fullPathOrURL)
}

// GetLastModified returns the modification time of the object at path.
func (fs *FileSystem) GetLastModified(ctx context.Context, p string) (time.Time, error) {
	key := fs.cfg.ResolveBucketPath(p)

	var modified time.Time
	err := fs.withStore(ctx, "GetLastModified", key, func(ctx context.Context, st filestore.Store) error {
		info, err := st.StatObject(ctx, fs.cfg.bucketName, key)
		if err != nil {
			return err
		}
		modified = info.LastModified
		return nil
	})
	return modified, err
}

// GetCreated returns the same value as GetLastModified. Object stores keep
// no creation time; an overwritten object reports its latest write.
func (fs *FileSystem) GetCreated(ctx context.Context, p string) (time.Time, error) {
	return fs.GetLastModified(ctx, p)
}

// --- internals ---

// withStore runs fn against a freshly dialed session and closes it on every
// path out. It is the single place failures are classified: errors that
// carry no kind are tagged as backend errors, context errors as canceled.
func (fs *FileSystem) withStore(ctx context.Context, op, key string, fn func(context.Context, filestore.Store) error) (err error) {
	start := time.Now()
	if fs.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fs.timeout)
		defer cancel()
	}

	defer func() {
		err = classify(op, err)
		fs.metrics.Observe(op, start, err)
		fs.log.Operation(op, key, time.Since(start), err, errs.IsNotFound(err))
	}()

	st, err := fs.dialer.Dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(ctx, st)
}

func (fs *FileSystem) pager(st filestore.Store, req filestore.ListRequest) *Pager {
	p := NewPager(st, fs.cfg.bucketName, req)
	p.onPage = func(*filestore.ListPage) { fs.metrics.PageListed() }
	return p
}

func classify(op string, err error) error {
	switch {
	case err == nil, errs.KindOf(err) != errs.ErrKindUnknown:
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.ErrKindCanceled, op+" canceled", err)
	default:
		return errs.Wrap(errs.ErrKindBackend, op+" failed", err)
	}
}

func withTrailingDelimiter(prefix string) string {
	if strings.HasSuffix(prefix, Delimiter) {
		return prefix
	}
	return prefix + Delimiter
}

func compileFilter(filter string) (func(key string) bool, error) {
	if filter == "" || filter == "*" {
		return func(string) bool { return true }, nil
	}
	if _, err := path.Match(filter, ""); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid file filter "+filter, err)
	}
	return func(key string) bool {
		ok, _ := path.Match(filter, path.Base(key))
		return ok
	}, nil
}
