// Package s3 provides an AWS S3 implementation of filestore.Store built on
// aws-sdk-go-v2. It also works against S3-compatible services when an
// endpoint is configured.
package s3

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
)

// API is the subset of *s3.Client the driver calls.
type API interface {
	ListObjects(ctx context.Context, in *awss3.ListObjectsInput, optFns ...func(*awss3.Options)) (*awss3.ListObjectsOutput, error)
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *awss3.DeleteObjectsInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectsOutput, error)
}

// Driver is an S3 implementation of filestore.Store.
type Driver struct {
	api        API
	httpClient *http.Client
}

// defaultRegion signs requests to a custom endpoint when no region is set.
const defaultRegion = "us-east-1"

// New builds a Driver from cfg with static credentials. Failed calls are not
// retried.
func New(cfg *filestore.Config) *Driver {
	httpClient := &http.Client{}

	region := cfg.Region
	if region == "" && cfg.Endpoint != "" {
		region = defaultRegion
	}

	awsCfg := aws.Config{
		Region:     region,
		HTTPClient: httpClient,
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.Retryer = aws.NopRetryer{}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg))
			o.UsePathStyle = true
		}
	})

	return &Driver{api: client, httpClient: httpClient}
}

// NewWithAPI wraps an existing client, e.g. one built with custom retry settings.
func NewWithAPI(api API) *Driver {
	return &Driver{api: api}
}

// NewDialer returns a filestore.Dialer that builds a fresh Driver, and with it
// a fresh HTTP client, per session.
func NewDialer(cfg *filestore.Config) filestore.Dialer {
	return filestore.DialFunc(func(ctx context.Context) (filestore.Store, error) {
		if err := ctx.Err(); err != nil {
			return nil, mapError(err, "dial canceled")
		}
		return New(cfg), nil
	})
}

// Close drops idle connections held by the session's HTTP client.
func (d *Driver) Close() error {
	if d.httpClient != nil {
		d.httpClient.CloseIdleConnections()
	}
	return nil
}

// ListObjects issues one V1 list call.
func (d *Driver) ListObjects(ctx context.Context, bucket string, req filestore.ListRequest) (*filestore.ListPage, error) {
	in := &awss3.ListObjectsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(req.Prefix),
	}
	if req.Delimiter != "" {
		in.Delimiter = aws.String(req.Delimiter)
	}
	if req.Marker != "" {
		in.Marker = aws.String(req.Marker)
	}
	if req.MaxKeys > 0 {
		in.MaxKeys = aws.Int32(int32(req.MaxKeys))
	}

	out, err := d.api.ListObjects(ctx, in)
	if err != nil {
		return nil, mapError(err, "failed to list objects")
	}

	page := &filestore.ListPage{
		Objects:        make([]filestore.ObjectInfo, 0, len(out.Contents)),
		CommonPrefixes: make([]string, 0, len(out.CommonPrefixes)),
		IsTruncated:    aws.ToBool(out.IsTruncated),
		NextMarker:     aws.ToString(out.NextMarker),
	}
	for _, obj := range out.Contents {
		page.Objects = append(page.Objects, filestore.ObjectInfo{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			ETag:         aws.ToString(obj.ETag),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	for _, p := range out.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, aws.ToString(p.Prefix))
	}

	// NextMarker is only returned for delimiter listings.
	if page.IsTruncated && page.NextMarker == "" {
		page.NextMarker = lastEntry(page)
	}
	return page, nil
}

// PutObject uploads r as a single object.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts filestore.PutOptions) error {
	in := &awss3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if opts.ACL != "" {
		in.ACL = types.ObjectCannedACL(opts.ACL)
	}

	if _, err := d.api.PutObject(ctx, in); err != nil {
		return mapError(err, "failed to put object")
	}
	return nil
}

// GetObject opens a streaming handle to the object at key.
// The caller MUST call Object.Close() after reading.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	out, err := d.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	return &object{
		ReadCloser: out.Body,
		info: &filestore.ObjectInfo{
			Key:          key,
			Size:         sizeOrUnknown(out.ContentLength),
			ContentType:  aws.ToString(out.ContentType),
			ETag:         aws.ToString(out.ETag),
			LastModified: aws.ToTime(out.LastModified),
		},
	}, nil
}

// StatObject issues a HEAD request for key.
func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	out, err := d.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}

	return &filestore.ObjectInfo{
		Key:          key,
		Size:         sizeOrUnknown(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         aws.ToString(out.ETag),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// DeleteObject removes a single object. S3 answers 204 for missing keys too.
func (d *Driver) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := d.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError(err, "failed to delete object")
	}
	return nil
}

// DeleteObjects removes keys with one quiet multi-object delete request.
// Per-key failures come back in the response body; the first one is returned.
func (d *Driver) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	if len(keys) > filestore.MaxDeleteBatch {
		return errs.Newf(errs.ErrKindInvalidInput, "cannot delete %d keys in one call", len(keys))
	}

	ids := make([]types.ObjectIdentifier, len(keys))
	for i, k := range keys {
		ids[i] = types.ObjectIdentifier{Key: aws.String(k)}
	}

	out, err := d.api.DeleteObjects(ctx, &awss3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{
			Objects: ids,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return mapError(err, "failed to delete objects")
	}

	if len(out.Errors) > 0 {
		e := out.Errors[0]
		return errs.Newf(errs.ErrKindBackend, "failed to delete object %s: %s %s",
			aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message))
	}
	return nil
}

// --- internal helpers ---

type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}

func sizeOrUnknown(n *int64) int64 {
	if n == nil {
		return -1
	}
	return *n
}

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

// endpointURL turns a host:port endpoint into a URL the SDK accepts.
func endpointURL(cfg *filestore.Config) string {
	if strings.HasPrefix(cfg.Endpoint, "http://") || strings.HasPrefix(cfg.Endpoint, "https://") {
		return cfg.Endpoint
	}
	if cfg.UseSSL {
		return "https://" + cfg.Endpoint
	}
	return "http://" + cfg.Endpoint
}
