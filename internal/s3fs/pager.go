package s3fs

import (
	"context"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
)

// Pager walks a truncated listing one page at a time.
//
// The first NextPage call sends the request as given; every following call
// carries the marker returned by the previous page. The pager is exhausted
// after the first page that is not truncated or after the first error, and
// cannot be restarted.
//
//	p := NewPager(store, bucket, filestore.ListRequest{Prefix: "media/"})
//	for p.HasMorePages() {
//	    page, err := p.NextPage(ctx)
//	    if err != nil { ... }
//	}
type Pager struct {
	store  filestore.Store
	bucket string
	req    filestore.ListRequest
	done   bool
	pages  int

	onPage func(*filestore.ListPage)
}

// NewPager returns a Pager for req against bucket.
func NewPager(store filestore.Store, bucket string, req filestore.ListRequest) *Pager {
	return &Pager{store: store, bucket: bucket, req: req}
}

// HasMorePages reports whether NextPage may be called again.
func (p *Pager) HasMorePages() bool {
	return !p.done
}

// Pages returns how many pages have been fetched so far.
func (p *Pager) Pages() int {
	return p.pages
}

// NextPage issues the next list call.
func (p *Pager) NextPage(ctx context.Context) (*filestore.ListPage, error) {
	if p.done {
		return nil, errs.New(errs.ErrKindInvalidInput, "no more pages")
	}
	if err := ctx.Err(); err != nil {
		p.done = true
		return nil, errs.Wrap(errs.ErrKindCanceled, "listing canceled", err)
	}

	page, err := p.store.ListObjects(ctx, p.bucket, p.req)
	if err != nil {
		p.done = true
		return nil, err
	}
	p.pages++
	if p.onPage != nil {
		p.onPage(page)
	}

	if !page.IsTruncated {
		p.done = true
		return page, nil
	}

	// A truncated page must move the marker forward, otherwise the next
	// call would return the same page forever.
	if page.NextMarker == "" || page.NextMarker == p.req.Marker {
		p.done = true
		return nil, errs.Newf(errs.ErrKindBackend, "truncated listing of %q did not advance past marker %q", p.req.Prefix, p.req.Marker)
	}
	p.req.Marker = page.NextMarker
	return page, nil
}

// forEachPage drains p, handing every page to fn in order.
func forEachPage(ctx context.Context, p *Pager, fn func(*filestore.ListPage)) error {
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return err
		}
		fn(page)
	}
	return nil
}

// collectKeys returns every object key across all pages.
func collectKeys(ctx context.Context, p *Pager) ([]string, error) {
	var keys []string
	err := forEachPage(ctx, p, func(page *filestore.ListPage) {
		for _, o := range page.Objects {
			keys = append(keys, o.Key)
		}
	})
	return keys, err
}

// collectPrefixes returns every common prefix across all pages.
func collectPrefixes(ctx context.Context, p *Pager) ([]string, error) {
	var prefixes []string
	err := forEachPage(ctx, p, func(page *filestore.ListPage) {
		prefixes = append(prefixes, page.CommonPrefixes...)
	})
	return prefixes, err
}
