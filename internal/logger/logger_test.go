package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuffered(level string) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(&Config{Level: level, Format: "json", Output: buf}), buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json config", config: &Config{Level: "debug", Format: "json", Output: io.Discard}},
		{name: "console config", config: &Config{Level: "info", Format: "console", Output: io.Discard}},
		{name: "nil output", config: &Config{Level: "warn"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, New(tt.config))
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	logger, buf := newBuffered("info")

	logger.Info("bucket mounted")

	entry := decode(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "bucket mounted", entry["message"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_WithFields(t *testing.T) {
	logger, buf := newBuffered("info")

	child := logger.With().
		Str("bucket", "media").
		Int("page", 3).
		Bool("truncated", true).
		Logger()
	child.Info("page listed")

	entry := decode(t, buf)
	assert.Equal(t, "media", entry["bucket"])
	assert.Equal(t, float64(3), entry["page"])
	assert.Equal(t, true, entry["truncated"])
}

func TestLogger_Operation(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		notFound  bool
		wantLevel string
	}{
		{name: "success", wantLevel: "debug"},
		{name: "not found", err: errors.New("missing"), notFound: true, wantLevel: "debug"},
		{name: "backend failure", err: errors.New("throttled"), wantLevel: "warn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBuffered("debug")

			logger.Operation("FileExists", "media/a.jpg", 5*time.Millisecond, tt.err, tt.notFound)

			entry := decode(t, buf)
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "FileExists", entry["op"])
			assert.Equal(t, "media/a.jpg", entry["key"])
			if tt.notFound {
				assert.Equal(t, true, entry["not_found"])
			}
		})
	}
}

func TestLogger_Request(t *testing.T) {
	logger, buf := newBuffered("info")

	logger.Request("GET", "/file", 502, time.Millisecond, "req-1")

	entry := decode(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, float64(502), entry["status"])
	assert.Equal(t, "req-1", entry["request_id"])
}

func TestLogger_ErrorWithFields(t *testing.T) {
	logger, buf := newBuffered("error")

	logger.ErrorWith("failed to list", errors.New("connection reset"), map[string]interface{}{
		"bucket": "media",
	})

	entry := decode(t, buf)
	assert.Equal(t, "connection reset", entry["error"])
	assert.Equal(t, "media", entry["bucket"])
}

func TestLogger_Context(t *testing.T) {
	logger, buf := newBuffered("info")

	ctx := logger.WithContext(context.Background())
	FromContext(ctx).Info("from context")

	assert.Equal(t, "from context", decode(t, buf)["message"])

	// no logger stored: discard silently
	FromContext(context.Background()).Info("dropped")
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFunc  func(*Logger)
		expected bool
	}{
		{"debug level logs debug", "debug", func(l *Logger) { l.Debug("m") }, true},
		{"info level skips debug", "info", func(l *Logger) { l.Debug("m") }, false},
		{"error level logs error", "error", func(l *Logger) { l.Error("m") }, true},
		{"error level skips info", "error", func(l *Logger) { l.Info("m") }, false},
		{"disabled skips error", "off", func(l *Logger) { l.Error("m") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBuffered(tt.level)
			tt.logFunc(logger)

			if tt.expected {
				assert.NotEmpty(t, buf.String(), "expected log output")
			} else {
				assert.Empty(t, buf.String(), "expected no log output")
			}
		})
	}
}

func BenchmarkLogger_Operation(b *testing.B) {
	logger := New(&Config{Level: "debug", Format: "json", Output: io.Discard})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Operation("GetFiles", "media/", time.Millisecond, nil, false)
	}
}
