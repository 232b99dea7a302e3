package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopLogger(t *testing.T) {
	logger := &NoopLogger{}

	// Should not panic
	logger.Debug("debug", "key", "value")
	logger.Info("info", "key", "value")
	logger.Warn("warn", "key", "value")
	logger.Error("error", "key", "value")
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := NewSlogAdapter(slog.New(handler))

	adapter.Debug("debug message", "sql", "SELECT 1")
	adapter.Info("info message", "duration_ms", 3)
	adapter.Warn("warn message")
	adapter.Error("error message", "error", "boom")

	out := buf.String()
	assert.Contains(t, out, "debug message")
	assert.Contains(t, out, "SELECT 1")
	assert.Contains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
	assert.Contains(t, out, "boom")
}

func TestLoggerInterface(t *testing.T) {
	// Both implementations satisfy the interface.
	var _ Logger = (*NoopLogger)(nil)
	var _ Logger = (*SlogAdapter)(nil)
}
