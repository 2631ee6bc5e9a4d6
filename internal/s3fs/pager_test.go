package s3fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/filestore/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedStore answers ListObjects with a fixed sequence of pages.
type scriptedStore struct {
	pages   []*filestore.ListPage
	err     error
	errAt   int
	markers []string
}

func (s *scriptedStore) ListObjects(_ context.Context, _ string, req filestore.ListRequest) (*filestore.ListPage, error) {
	s.markers = append(s.markers, req.Marker)
	n := len(s.markers) - 1
	if s.err != nil && n == s.errAt {
		return nil, s.err
	}
	if n >= len(s.pages) {
		return nil, fmt.Errorf("unexpected list call %d", n)
	}
	return s.pages[n], nil
}

func (s *scriptedStore) PutObject(context.Context, string, string, io.Reader, int64, filestore.PutOptions) error {
	return nil
}

func (s *scriptedStore) GetObject(context.Context, string, string) (filestore.Object, error) {
	return nil, nil
}

func (s *scriptedStore) StatObject(context.Context, string, string) (*filestore.ObjectInfo, error) {
	return nil, nil
}

func (s *scriptedStore) DeleteObject(context.Context, string, string) error    { return nil }
func (s *scriptedStore) DeleteObjects(context.Context, string, []string) error { return nil }
func (s *scriptedStore) Close() error                                          { return nil }

func objects(keys ...string) []filestore.ObjectInfo {
	out := make([]filestore.ObjectInfo, len(keys))
	for i, k := range keys {
		out[i] = filestore.ObjectInfo{Key: k}
	}
	return out
}

func TestPager_FollowsMarkers(t *testing.T) {
	st := &scriptedStore{pages: []*filestore.ListPage{
		{Objects: objects("a", "b"), IsTruncated: true, NextMarker: "b"},
		{Objects: objects("c", "d"), IsTruncated: true, NextMarker: "d"},
		{Objects: objects("e")},
	}}

	p := NewPager(st, "bucket", filestore.ListRequest{Prefix: "media/"})
	keys, err := collectKeys(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, keys)
	assert.Equal(t, []string{"", "b", "d"}, st.markers)
	assert.Equal(t, 3, p.Pages())
	assert.False(t, p.HasMorePages())
}

func TestPager_SinglePage(t *testing.T) {
	st := &scriptedStore{pages: []*filestore.ListPage{
		{CommonPrefixes: []string{"media/a/", "media/b/"}},
	}}

	p := NewPager(st, "bucket", filestore.ListRequest{Prefix: "media/", Delimiter: "/"})
	require.True(t, p.HasMorePages())

	prefixes, err := collectPrefixes(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"media/a/", "media/b/"}, prefixes)
	assert.Len(t, st.markers, 1)
}

func TestPager_ErrorStopsIteration(t *testing.T) {
	boom := errs.New(errs.ErrKindBackend, "boom")
	st := &scriptedStore{
		pages: []*filestore.ListPage{
			{Objects: objects("a"), IsTruncated: true, NextMarker: "a"},
		},
		err:   boom,
		errAt: 1,
	}

	p := NewPager(st, "bucket", filestore.ListRequest{})
	_, err := collectKeys(context.Background(), p)
	assert.ErrorIs(t, err, boom)
	assert.False(t, p.HasMorePages())
	assert.Len(t, st.markers, 2)

	_, err = p.NextPage(context.Background())
	assert.True(t, errs.IsInvalidInput(err))
}

func TestPager_CanceledContext(t *testing.T) {
	st := &scriptedStore{pages: []*filestore.ListPage{{Objects: objects("a")}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPager(st, "bucket", filestore.ListRequest{})
	_, err := p.NextPage(ctx)
	assert.True(t, errs.IsCanceled(err))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, st.markers)
	assert.False(t, p.HasMorePages())
}

func TestPager_MarkerMustAdvance(t *testing.T) {
	tests := []struct {
		name string
		page *filestore.ListPage
	}{
		{"empty marker", &filestore.ListPage{Objects: objects("a"), IsTruncated: true}},
		{"same marker", &filestore.ListPage{Objects: objects("a"), IsTruncated: true, NextMarker: "start"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &scriptedStore{pages: []*filestore.ListPage{tt.page}}
			p := NewPager(st, "bucket", filestore.ListRequest{Marker: "start"})

			_, err := p.NextPage(context.Background())
			assert.True(t, errs.IsBackend(err))
			assert.False(t, p.HasMorePages())
		})
	}
}

func TestPager_AgainstMemstore(t *testing.T) {
	mem := memstore.New("bucket")
	mem.SetPageSize(3)
	var want []string
	for i := 0; i < 10; i++ {
		k := fmt.Sprintf("media/%02d.jpg", i)
		mem.Put("bucket", k, []byte("x"))
		want = append(want, k)
	}
	mem.Put("bucket", "other/z.jpg", []byte("x"))

	st, err := mem.Dialer().Dial(context.Background())
	require.NoError(t, err)
	defer st.Close()

	var seen int
	p := NewPager(st, "bucket", filestore.ListRequest{Prefix: "media/"})
	p.onPage = func(*filestore.ListPage) { seen++ }

	keys, err := collectKeys(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, want, keys)
	assert.Equal(t, 4, p.Pages())
	assert.Equal(t, 4, seen)
	assert.Len(t, mem.Calls("ListObjects"), 4)
}
