package s3fs

import (
	"strings"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
)

// Delimiter separates path segments in virtual paths and object keys.
const Delimiter = "/"

// BucketOptions are the raw, caller-supplied bucket settings.
type BucketOptions struct {
	BucketName     string
	BucketHostName string
	BucketPrefix   string
	Region         string
	AccessKey      string
	SecretKey      string
}

// BucketConfig is the normalized, immutable bucket configuration.
// The host name always ends in "/" and carries a scheme; the prefix is
// either empty or ends in exactly one "/" with no leading "/".
type BucketConfig struct {
	bucketName     string
	bucketHostName string
	bucketPrefix   string
	region         string
	accessKey      string
	secretKey      string
}

// NewBucketConfig validates and normalizes opts. Bucket name and host name
// are required; everything else may be empty.
func NewBucketConfig(opts BucketOptions) (BucketConfig, error) {
	if opts.BucketName == "" {
		return BucketConfig{}, errs.New(errs.ErrKindConfiguration, "bucket name is required")
	}
	if opts.BucketHostName == "" {
		return BucketConfig{}, errs.New(errs.ErrKindConfiguration, "bucket host name is required")
	}

	return BucketConfig{
		bucketName:     opts.BucketName,
		bucketHostName: ParseBucketHostName(opts.BucketHostName),
		bucketPrefix:   ParseBucketPrefix(opts.BucketPrefix),
		region:         opts.Region,
		accessKey:      opts.AccessKey,
		secretKey:      opts.SecretKey,
	}, nil
}

func (c BucketConfig) BucketName() string     { return c.bucketName }
func (c BucketConfig) BucketHostName() string { return c.bucketHostName }
func (c BucketConfig) BucketPrefix() string   { return c.bucketPrefix }
func (c BucketConfig) Region() string         { return c.region }
func (c BucketConfig) AccessKey() string      { return c.accessKey }
func (c BucketConfig) SecretKey() string      { return c.secretKey }

// StoreConfig returns the connection settings for provider at endpoint,
// signed with the bucket's region and credentials.
func (c BucketConfig) StoreConfig(provider filestore.Provider, endpoint string, useSSL bool) *filestore.Config {
	return &filestore.Config{
		Provider:  provider,
		Endpoint:  endpoint,
		AccessKey: c.accessKey,
		SecretKey: c.secretKey,
		UseSSL:    useSSL,
		Region:    c.region,
	}
}

// ParseBucketHostName appends a trailing "/" and prepends "http://" when the
// value does not already start with "http". The scheme test is a plain
// prefix check, so a host such as "httpbin.local" is taken as-is.
func ParseBucketHostName(hostname string) string {
	ret := hostname
	if !strings.HasSuffix(ret, Delimiter) {
		ret += Delimiter
	}
	if !strings.HasPrefix(ret, "http") {
		ret = "http://" + ret
	}
	return ret
}

// ParseBucketPrefix normalizes a key prefix: backslashes become "/", a
// single leading "/" is dropped and a trailing "/" is enforced. Empty and
// "/" both normalize to "".
func ParseBucketPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	prefix = strings.ReplaceAll(prefix, `\`, Delimiter)
	if prefix == Delimiter {
		return ""
	}
	prefix = strings.TrimPrefix(prefix, Delimiter)
	if !strings.HasSuffix(prefix, Delimiter) {
		prefix += Delimiter
	}
	return prefix
}
