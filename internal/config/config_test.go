package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/s3fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
bucket:
  name: site-media
  host_name: cdn.example.com
  prefix: /media
storage:
  provider: s3
  region: eu-west-1
  access_key: AKIA
  secret_key: secret
  operation_timeout: 15s
server:
  addr: ":9090"
  max_upload_bytes: 1048576
log:
  level: debug
  format: console
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bucketfs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "minio", cfg.Storage.Provider)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Zero(t, cfg.Storage.OperationTimeout)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeFile(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "site-media", cfg.Bucket.Name)
	assert.Equal(t, "cdn.example.com", cfg.Bucket.HostName)
	assert.Equal(t, "/media", cfg.Bucket.Prefix)
	assert.Equal(t, "s3", cfg.Storage.Provider)
	assert.Equal(t, 15*time.Second, cfg.Storage.OperationTimeout)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, int64(1048576), cfg.Server.MaxUpload)
	assert.Equal(t, "console", cfg.Log.Format)

	// untouched sections keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("BUCKETFS_BUCKET_NAME", "from-env")
	t.Setenv("BUCKETFS_STORAGE_USE_SSL", "true")
	t.Setenv("BUCKETFS_SERVER_READ_TIMEOUT", "5s")

	cfg, err := Load(writeFile(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Bucket.Name)
	assert.True(t, cfg.Storage.UseSSL)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errs.IsConfiguration(err))

	_, err = Load(writeFile(t, "bucket: [unterminated"))
	assert.True(t, errs.IsConfiguration(err))
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BUCKETFS_STORAGE_PROVIDER":          "memory",
		"BUCKETFS_BUCKET_PREFIX":             "uploads",
		"BUCKETFS_LOG_LEVEL":                 "warn",
		"BUCKETFS_STORAGE_OPERATION_TIMEOUT": "250ms",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, ProviderMemory, cfg.Storage.Provider)
	assert.Equal(t, "uploads", cfg.Bucket.Prefix)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 250*time.Millisecond, cfg.Storage.OperationTimeout)
	assert.Equal(t, "localhost:9000", cfg.Storage.Endpoint)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"BUCKETFS_STORAGE_USE_SSL":           "maybe",
		"BUCKETFS_STORAGE_OPERATION_TIMEOUT": "soon",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			err := cfg.applyEnv(func(k string) (string, bool) {
				if k == name {
					return value, true
				}
				return "", false
			})
			assert.True(t, errs.IsConfiguration(err))
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Bucket.Name = "site-media"
		cfg.Bucket.HostName = "cdn.test"
		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing bucket name", func(c *Config) { c.Bucket.Name = "" }},
		{"missing host name", func(c *Config) { c.Bucket.HostName = "" }},
		{"negative timeout", func(c *Config) { c.Storage.OperationTimeout = -time.Second }},
		{"unknown provider", func(c *Config) { c.Storage.Provider = "ftp" }},
		{"minio without endpoint", func(c *Config) { c.Storage.Endpoint = "" }},
		{"s3 without region or endpoint", func(c *Config) {
			c.Storage.Provider = "s3"
			c.Storage.Endpoint = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.True(t, errs.IsConfiguration(cfg.Validate()))
		})
	}

	mem := valid()
	mem.Storage.Provider = ProviderMemory
	mem.Storage.Endpoint = ""
	assert.NoError(t, mem.Validate())
}

func TestConversions(t *testing.T) {
	cfg, err := Load(writeFile(t, sampleYAML))
	require.NoError(t, err)

	opts := cfg.BucketOptions()
	assert.Equal(t, "site-media", opts.BucketName)
	assert.Equal(t, "eu-west-1", opts.Region)

	bucket, err := s3fs.NewBucketConfig(opts)
	require.NoError(t, err)
	sc := cfg.StoreConfig(bucket)
	assert.Equal(t, filestore.ProviderS3, sc.Provider)
	assert.Equal(t, "AKIA", sc.AccessKey)
	assert.Equal(t, "eu-west-1", sc.Region)

	lc := cfg.LoggerConfig()
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "console", lc.Format)
	assert.NotNil(t, lc.Output)
}
