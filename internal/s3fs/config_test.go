package s3fs

import (
	"testing"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBucketHostName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"cdn.example.com", "http://cdn.example.com/"},
		{"cdn.example.com/", "http://cdn.example.com/"},
		{"https://cdn.example.com/", "https://cdn.example.com/"},
		{"https://cdn.example.com", "https://cdn.example.com/"},
		{"http://media.s3.amazonaws.com", "http://media.s3.amazonaws.com/"},
		// the scheme test is a plain "http" prefix check
		{"httpbin.local", "httpbin.local/"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBucketHostName(tt.in))
		})
	}
}

func TestParseBucketPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{`\`, ""},
		{"media", "media/"},
		{"media/", "media/"},
		{"/media", "media/"},
		{`\media\2024`, "media/2024/"},
		{"a/b/c/", "a/b/c/"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBucketPrefix(tt.in))
		})
	}
}

func TestNewBucketConfig(t *testing.T) {
	cfg, err := NewBucketConfig(BucketOptions{
		BucketName:     "site-media",
		BucketHostName: "cdn.test",
		BucketPrefix:   "/uploads",
		Region:         "eu-west-1",
		AccessKey:      "AKIA",
		SecretKey:      "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "site-media", cfg.BucketName())
	assert.Equal(t, "http://cdn.test/", cfg.BucketHostName())
	assert.Equal(t, "uploads/", cfg.BucketPrefix())
	assert.Equal(t, "eu-west-1", cfg.Region())
	assert.Equal(t, "AKIA", cfg.AccessKey())
	assert.Equal(t, "secret", cfg.SecretKey())
}

func TestBucketConfig_StoreConfig(t *testing.T) {
	cfg, err := NewBucketConfig(BucketOptions{
		BucketName:     "site-media",
		BucketHostName: "cdn.test",
		Region:         "eu-west-1",
		AccessKey:      "AKIA",
		SecretKey:      "secret",
	})
	require.NoError(t, err)

	sc := cfg.StoreConfig(filestore.ProviderS3, "s3.local:9000", true)
	assert.Equal(t, &filestore.Config{
		Provider:  filestore.ProviderS3,
		Endpoint:  "s3.local:9000",
		AccessKey: "AKIA",
		SecretKey: "secret",
		UseSSL:    true,
		Region:    "eu-west-1",
	}, sc)
	assert.NoError(t, sc.Validate())
}

func TestNewBucketConfig_RequiredFields(t *testing.T) {
	_, err := NewBucketConfig(BucketOptions{BucketHostName: "cdn.test"})
	assert.True(t, errs.IsConfiguration(err))

	_, err = NewBucketConfig(BucketOptions{BucketName: "site-media"})
	assert.True(t, errs.IsConfiguration(err))

	_, err = NewBucketConfig(BucketOptions{BucketName: "site-media", BucketHostName: "cdn.test"})
	assert.NoError(t, err)
}
