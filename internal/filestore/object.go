package filestore

import (
	"io"
	"time"
)

// ContentTypeBinary is the content type written for every uploaded object.
const ContentTypeBinary = "application/octet-stream"

// ACLPublicRead is the canned ACL that makes an object readable by anyone.
const ACLPublicRead = "public-read"

// MaxDeleteBatch is the most keys a single DeleteObjects call may carry.
const MaxDeleteBatch = 1000

// ObjectInfo describes a single object stored in a bucket.
type ObjectInfo struct {
	// Key is the full object key within the bucket (e.g. "media/photo.jpg").
	Key string

	// Size is the byte size of the object. -1 if unknown.
	Size int64

	// ContentType is the MIME type (e.g. "image/jpeg").
	ContentType string

	// ETag is the object's entity tag, as returned by the backend.
	ETag string

	// LastModified is when the object was last written.
	LastModified time.Time
}

// Object is a streaming handle to an object's content.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// ListRequest describes one page-sized list call.
type ListRequest struct {
	// Prefix restricts results to keys starting with this string.
	Prefix string

	// Delimiter groups keys sharing the next path segment into CommonPrefixes.
	// Empty lists every key under Prefix.
	Delimiter string

	// Marker is the continuation marker from the previous page. "" starts at the beginning.
	Marker string

	// MaxKeys caps the page size. 0 means use the backend default.
	MaxKeys int
}

// ListPage is the result of exactly one list call.
type ListPage struct {
	// Objects are the objects on this page, in backend order.
	Objects []ObjectInfo

	// CommonPrefixes are the pseudo-directories on this page (delimiter listings only).
	CommonPrefixes []string

	// IsTruncated reports whether another page follows.
	IsTruncated bool

	// NextMarker is the marker to send with the next request when IsTruncated is set.
	NextMarker string
}

// Keys returns the object keys on the page.
func (p *ListPage) Keys() []string {
	keys := make([]string, len(p.Objects))
	for i, o := range p.Objects {
		keys[i] = o.Key
	}
	return keys
}

// PutOptions controls how PutObject stores the object.
type PutOptions struct {
	// ContentType is the MIME type stored with the object.
	ContentType string

	// ACL is a canned access control list (e.g. ACLPublicRead). Empty keeps the bucket default.
	ACL string
}
