// Package config loads bucketfs settings from an optional YAML file, an
// optional .env file and BUCKETFS_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/logger"
	"github.com/koustreak/bucketfs/internal/s3fs"
	"go.yaml.in/yaml/v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BUCKETFS_"

// Config is the full application configuration.
type Config struct {
	Bucket  BucketConfig  `yaml:"bucket"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// BucketConfig describes the bucket presented as a filesystem.
type BucketConfig struct {
	Name     string `yaml:"name"`
	HostName string `yaml:"host_name"`
	Prefix   string `yaml:"prefix"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Provider  string `yaml:"provider"` // minio, s3 or memory
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`

	// OperationTimeout bounds each filesystem operation. Zero disables it.
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxUpload    int64         `yaml:"max_upload_bytes"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ProviderMemory selects the in-memory store. It is meant for local runs.
const ProviderMemory = "memory"

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Provider: string(filestore.ProviderMinIO),
			Endpoint: "localhost:9000",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			MaxUpload:    64 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then a .env file in the working directory
// if one exists, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to read config file "+path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to parse config file "+path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to load .env", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"BUCKET_NAME":        &c.Bucket.Name,
		"BUCKET_HOST_NAME":   &c.Bucket.HostName,
		"BUCKET_PREFIX":      &c.Bucket.Prefix,
		"STORAGE_PROVIDER":   &c.Storage.Provider,
		"STORAGE_ENDPOINT":   &c.Storage.Endpoint,
		"STORAGE_REGION":     &c.Storage.Region,
		"STORAGE_ACCESS_KEY": &c.Storage.AccessKey,
		"STORAGE_SECRET_KEY": &c.Storage.SecretKey,
		"SERVER_ADDR":        &c.Server.Addr,
		"LOG_LEVEL":          &c.Log.Level,
		"LOG_FORMAT":         &c.Log.Format,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := lookup(EnvPrefix + "STORAGE_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errs.Wrap(errs.ErrKindConfiguration, "invalid "+EnvPrefix+"STORAGE_USE_SSL", err)
		}
		c.Storage.UseSSL = b
	}

	durations := map[string]*time.Duration{
		"STORAGE_OPERATION_TIMEOUT": &c.Storage.OperationTimeout,
		"SERVER_READ_TIMEOUT":       &c.Server.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":      &c.Server.WriteTimeout,
	}
	for name, dst := range durations {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return errs.Wrap(errs.ErrKindConfiguration, "invalid "+EnvPrefix+name, err)
		}
		*dst = d
	}
	return nil
}

// Validate checks the settings needed to start serving.
func (c *Config) Validate() error {
	if c.Bucket.Name == "" {
		return errs.New(errs.ErrKindConfiguration, "bucket.name is required")
	}
	if c.Bucket.HostName == "" {
		return errs.New(errs.ErrKindConfiguration, "bucket.host_name is required")
	}
	if c.Storage.OperationTimeout < 0 {
		return errs.New(errs.ErrKindConfiguration, "storage.operation_timeout must not be negative")
	}
	if c.Storage.Provider == ProviderMemory {
		return nil
	}
	bucket, err := s3fs.NewBucketConfig(c.BucketOptions())
	if err != nil {
		return err
	}
	return c.StoreConfig(bucket).Validate()
}

// BucketOptions converts the bucket section for s3fs.NewBucketConfig.
func (c *Config) BucketOptions() s3fs.BucketOptions {
	return s3fs.BucketOptions{
		BucketName:     c.Bucket.Name,
		BucketHostName: c.Bucket.HostName,
		BucketPrefix:   c.Bucket.Prefix,
		Region:         c.Storage.Region,
		AccessKey:      c.Storage.AccessKey,
		SecretKey:      c.Storage.SecretKey,
	}
}

// StoreConfig converts the storage section to a filestore.Config. Region and
// credentials come from bucket, which BucketOptions fills from this section.
func (c *Config) StoreConfig(bucket s3fs.BucketConfig) *filestore.Config {
	return bucket.StoreConfig(filestore.Provider(c.Storage.Provider), c.Storage.Endpoint, c.Storage.UseSSL)
}

// LoggerConfig converts the log section to a logger.Config writing to stderr.
func (c *Config) LoggerConfig() *logger.Config {
	lc := logger.DefaultConfig()
	if c.Log.Level != "" {
		lc.Level = c.Log.Level
	}
	if c.Log.Format != "" {
		lc.Format = c.Log.Format
	}
	return lc
}
