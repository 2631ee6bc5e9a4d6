// Package memstore is an in-memory filestore provider. It follows S3 V1
// listing semantics (lexical order, delimiter grouping, marker paging) and
// is used by tests and by the CLI's "memory" provider for local runs.
package memstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
)

// DefaultPageSize mirrors the S3 default of 1000 keys per list page.
const DefaultPageSize = 1000

// Call records one backend call for assertions in tests.
type Call struct {
	Op     string
	Bucket string
	Key    string
	Keys   []string
	List   filestore.ListRequest
}

type entry struct {
	data []byte
	info filestore.ObjectInfo
	acl  string
}

// Store holds objects for any number of buckets.
type Store struct {
	mu       sync.Mutex
	buckets  map[string]map[string]*entry
	pageSize int
	now      func() time.Time
	calls    []Call
	opened   int
	closed   int

	// FailOn, when set, is consulted before every call; a non-nil error is returned as-is.
	FailOn func(c Call) error
}

// New returns an empty Store with the given buckets created.
func New(buckets ...string) *Store {
	s := &Store{
		buckets:  make(map[string]map[string]*entry),
		pageSize: DefaultPageSize,
		now:      time.Now,
	}
	for _, b := range buckets {
		s.buckets[b] = make(map[string]*entry)
	}
	return s
}

// SetPageSize caps every page at n entries (keys + common prefixes).
func (s *Store) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// SetClock replaces the time source used for LastModified.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Put stores data directly, bypassing the call log.
func (s *Store) Put(bucket, key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(bucket, key, data, filestore.PutOptions{})
}

// Keys returns every key in bucket in lexical order.
func (s *Store) Keys(bucket string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedKeysLocked(bucket)
}

// ACL returns the canned ACL an object was written with.
func (s *Store) ACL(bucket, key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.buckets[bucket][key]; ok {
		return e.acl
	}
	return ""
}

// Calls returns the recorded calls of the given op ("" for all).
func (s *Store) Calls(op string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Sessions reports how many sessions were dialed and how many were closed.
func (s *Store) Sessions() (opened, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened, s.closed
}

// Dialer returns a filestore.Dialer handing out sessions over this Store.
func (s *Store) Dialer() filestore.Dialer {
	return filestore.DialFunc(func(ctx context.Context) (filestore.Store, error) {
		if err := ctx.Err(); err != nil {
			return nil, errs.Wrap(errs.ErrKindCanceled, "dial canceled", err)
		}
		s.mu.Lock()
		s.opened++
		s.mu.Unlock()
		return &session{store: s}, nil
	})
}

// --- internals shared by sessions ---

func (s *Store) record(ctx context.Context, c Call) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.ErrKindCanceled, c.Op+" canceled", err)
	}
	s.mu.Lock()
	s.calls = append(s.calls, c)
	fail := s.FailOn
	s.mu.Unlock()

	if fail != nil {
		return fail(c)
	}
	return nil
}

func (s *Store) bucketLocked(name string) (map[string]*entry, error) {
	b, ok := s.buckets[name]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "bucket %q does not exist", name)
	}
	return b, nil
}

func (s *Store) sortedKeysLocked(bucket string) []string {
	b := s.buckets[bucket]
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) putLocked(bucket, key string, data []byte, opts filestore.PutOptions) {
	b, ok := s.buckets[bucket]
	if !ok {
		b = make(map[string]*entry)
		s.buckets[bucket] = b
	}
	now := s.now().UTC().Truncate(time.Second)
	b[key] = &entry{
		data: data,
		acl:  opts.ACL,
		info: filestore.ObjectInfo{
			Key:          key,
			Size:         int64(len(data)),
			ContentType:  opts.ContentType,
			LastModified: now,
		},
	}
}

func (s *Store) list(bucket string, req filestore.ListRequest) (*filestore.ListPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucketLocked(bucket)
	if err != nil {
		return nil, err
	}

	limit := s.pageSize
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if req.MaxKeys > 0 && req.MaxKeys < limit {
		limit = req.MaxKeys
	}

	page := &filestore.ListPage{}
	seen := make(map[string]bool)
	count := 0
	var last string

	for _, key := range s.sortedKeysLocked(bucket) {
		if !strings.HasPrefix(key, req.Prefix) || key <= req.Marker {
			continue
		}

		prefix := ""
		if req.Delimiter != "" {
			rest := key[len(req.Prefix):]
			if i := strings.Index(rest, req.Delimiter); i >= 0 {
				prefix = req.Prefix + rest[:i+len(req.Delimiter)]
			}
		}
		if prefix != "" && seen[prefix] {
			continue
		}
		// a common prefix sorts at or before the marker when the marker is inside it
		if prefix != "" && prefix <= req.Marker {
			continue
		}

		if count == limit {
			page.IsTruncated = true
			page.NextMarker = last
			break
		}

		if prefix != "" {
			seen[prefix] = true
			page.CommonPrefixes = append(page.CommonPrefixes, prefix)
			last = prefix
		} else {
			page.Objects = append(page.Objects, b[key].info)
			last = key
		}
		count++
	}
	return page, nil
}

// session is one dialed filestore.Store over a shared Store.
type session struct {
	store  *Store
	mu     sync.Mutex
	closed bool
}

func (c *session) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errs.New(errs.ErrKindBackend, "session is closed")
	}
	return nil
}

func (c *session) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.store.mu.Lock()
	c.store.closed++
	c.store.mu.Unlock()
	return nil
}

func (c *session) ListObjects(ctx context.Context, bucket string, req filestore.ListRequest) (*filestore.ListPage, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if err := c.store.record(ctx, Call{Op: "ListObjects", Bucket: bucket, List: req}); err != nil {
		return nil, err
	}
	return c.store.list(bucket, req)
}

func (c *session) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts filestore.PutOptions) error {
	if err := c.check(); err != nil {
		return err
	}
	if err := c.store.record(ctx, Call{Op: "PutObject", Bucket: bucket, Key: key}); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return errs.Wrap(errs.ErrKindBackend, "failed to read upload body", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return errs.Newf(errs.ErrKindInvalidInput, "content length %d does not match body of %d bytes", size, len(data))
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if _, err := c.store.bucketLocked(bucket); err != nil {
		return err
	}
	c.store.putLocked(bucket, key, data, opts)
	return nil
}

func (c *session) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if err := c.store.record(ctx, Call{Op: "GetObject", Bucket: bucket, Key: key}); err != nil {
		return nil, err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	e, err := c.store.lookupLocked(bucket, key)
	if err != nil {
		return nil, err
	}
	info := e.info
	return &object{Reader: bytes.NewReader(e.data), info: &info}, nil
}

func (c *session) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if err := c.store.record(ctx, Call{Op: "StatObject", Bucket: bucket, Key: key}); err != nil {
		return nil, err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	e, err := c.store.lookupLocked(bucket, key)
	if err != nil {
		return nil, err
	}
	info := e.info
	return &info, nil
}

func (c *session) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := c.check(); err != nil {
		return err
	}
	if err := c.store.record(ctx, Call{Op: "DeleteObject", Bucket: bucket, Key: key}); err != nil {
		return err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	b, err := c.store.bucketLocked(bucket)
	if err != nil {
		return err
	}
	delete(b, key)
	return nil
}

func (c *session) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	if err := c.check(); err != nil {
		return err
	}
	if len(keys) > filestore.MaxDeleteBatch {
		return errs.Newf(errs.ErrKindInvalidInput, "cannot delete %d keys in one call", len(keys))
	}
	if err := c.store.record(ctx, Call{Op: "DeleteObjects", Bucket: bucket, Keys: append([]string(nil), keys...)}); err != nil {
		return err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	b, err := c.store.bucketLocked(bucket)
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(b, k)
	}
	return nil
}

func (s *Store) lookupLocked(bucket, key string) (*entry, error) {
	b, err := s.bucketLocked(bucket)
	if err != nil {
		return nil, err
	}
	e, ok := b[key]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "key %q does not exist", key)
	}
	return e, nil
}

type object struct {
	*bytes.Reader
	info *filestore.ObjectInfo
}

func (o *object) Close() error { return nil }

func (o *object) Info() *filestore.ObjectInfo { return o.info }
