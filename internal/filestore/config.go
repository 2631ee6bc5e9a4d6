package filestore

import (
	"github.com/koustreak/bucketfs/internal/errs"
)

// Provider identifies the object storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
	ProviderS3    Provider = "s3"
)

// Config holds all settings needed to open a session against a storage backend.
type Config struct {
	// Provider is the storage backend (e.g. ProviderMinIO).
	Provider Provider

	// Endpoint is the host:port (MinIO) or base URL (S3) of the storage server.
	// Leave empty for AWS S3 to use the regional endpoint.
	Endpoint string

	// AccessKey is the access key ID. Empty means anonymous access.
	AccessKey string

	// SecretKey is the secret access key.
	SecretKey string

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool

	// Region is the signing region. May be empty for MinIO.
	Region string
}

// DefaultConfig returns a sensible local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    false,
	}
}

// Validate checks the fields every provider needs.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderMinIO:
		if c.Endpoint == "" {
			return errs.New(errs.ErrKindConfiguration, "minio endpoint is required")
		}
	case ProviderS3:
		if c.Endpoint == "" && c.Region == "" {
			return errs.New(errs.ErrKindConfiguration, "s3 requires a region or an endpoint")
		}
	default:
		return errs.Newf(errs.ErrKindConfiguration, "unknown storage provider %q", c.Provider)
	}
	return nil
}
