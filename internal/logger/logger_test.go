package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Success(t *testing.T) {
	logger := New("test-package")

	assert.NotNil(t, logger)
	assert.IsType(t, &SlogLogger{}, logger)
}

func TestNewWithConfig_Formats(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatText} {
		logger := NewWithConfig(Config{
			Name:   "test-service",
			Format: format,
			Level:  slog.LevelDebug,
		})

		assert.NotNil(t, logger)
		assert.IsType(t, &SlogLogger{}, logger)
	}
}

func TestErr_ReturnsOriginalError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithConfig(Config{Name: "test", Format: FormatJSON, Writer: &buf})

	original := errors.New("boom")
	err := logger.Err("something failed", original, "key", "value")

	assert.Equal(t, original, err)
	assert.Contains(t, buf.String(), "something failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestErrorWithType_WrapsSentinel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithConfig(Config{Name: "test", Format: FormatJSON, Writer: &buf})

	sentinel := errors.New("invalid state")
	err := logger.ErrorWithType(sentinel, "job is not open")

	assert.True(t, errors.Is(err, sentinel))
	assert.Contains(t, err.Error(), "job is not open")
}

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "trace-123")
	assert.Equal(t, "trace-123", TraceIDFromContext(ctx))

	var buf bytes.Buffer
	logger := NewWithConfig(Config{Name: "test", Format: FormatText, Writer: &buf})
	logger.TraceFromContext(ctx).Info("hello")

	assert.True(t, strings.Contains(buf.String(), "trace-123"))
}

func TestTraceFromContext_NoTraceID(t *testing.T) {
	logger := New("test")
	same := logger.TraceFromContext(context.Background())

	assert.Equal(t, logger, same)
}
