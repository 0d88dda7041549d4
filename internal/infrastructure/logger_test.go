package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"fennixdash/internal/config"
)

func decodeLines(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line %q", line)
		out = append(out, entry)
	}
	return out
}

func TestInitializeLogger_File(t *testing.T) {
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	logFile := filepath.Join(t.TempDir(), "logs", "fennixdash.log")
	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    "info",
		Output:   "file",
		FilePath: logFile,
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Same(t, logger, GetLogger())

	logger.Info("sheet fetched", "sheet", "Ventas")
	logger.Debug("hidden")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	entries := decodeLines(t, string(content))
	require.Len(t, entries, 1)
	assert.Equal(t, "sheet fetched", entries[0]["msg"])
	assert.Equal(t, "Ventas", entries[0]["sheet"])
	assert.Equal(t, "INFO", entries[0]["level"])
}

func TestInitializeLogger_Once(t *testing.T) {
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	first, err := InitializeLogger(config.LoggingConfig{Level: "info", Output: "console"})
	require.NoError(t, err)
	second, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "console"})
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestInitializeLogger_BadPath(t *testing.T) {
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, err := InitializeLogger(config.LoggingConfig{
		Level:    "info",
		Output:   "file",
		FilePath: filepath.Join(blocker, "nested", "app.log"),
	})
	assert.Error(t, err)
	assert.Panics(t, func() {
		ResetLoggerForTesting()
		MustInitializeLogger(config.LoggingConfig{Output: "file", FilePath: filepath.Join(blocker, "x", "y.log")})
	})
}

func TestGetLogger_DefaultsBeforeInit(t *testing.T) {
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)
	assert.NotNil(t, GetLogger())
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"INFO":    "INFO",
		"warn":    "WARN",
		"warning": "WARN",
		"error":   "ERROR",
		"other":   "INFO",
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in).String(), in)
	}
}

func TestTraceHandler_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "debug"}, &buf)

	ctx := WithTraceID(context.Background(), "req-123")
	logger.InfoContext(ctx, "with id")
	logger.InfoContext(context.Background(), "without id")
	logger.With("component", "sheets").WithGroup("fetch").InfoContext(ctx, "grouped", "sheet", "Ventas")

	entries := decodeLines(t, buf.String())
	require.Len(t, entries, 3)
	assert.Equal(t, "req-123", entries[0]["trace_id"])
	assert.NotContains(t, entries[1], "trace_id")
	assert.Equal(t, "sheets", entries[2]["component"])
	assert.Equal(t, map[string]any{"sheet": "Ventas", "trace_id": "req-123"}, entries[2]["fetch"])
}

func TestTraceHandler_SpanFallback(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "info"}, &buf)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	logger.InfoContext(ctx, "inside span")

	entries := decodeLines(t, buf.String())
	require.Len(t, entries, 1)
	assert.Equal(t, span.SpanContext().TraceID().String(), entries[0]["trace_id"])
}

func TestTraceIDContext(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
	//nolint:staticcheck // nil context is handled on purpose
	assert.Empty(t, GetTraceID(nil))

	ctx, id := EnsureTraceID(context.Background())
	assert.Len(t, id, 36)
	assert.Equal(t, id, GetTraceID(ctx))

	same, again := EnsureTraceID(ctx)
	assert.Equal(t, id, again)
	assert.Equal(t, ctx, same)
}

func TestLoggerHelpers(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(config.LoggingConfig{Level: "info"}, &buf)

	WithError(WithComponent(base, "exporter"), errors.New("disk full")).Info("write failed")
	assert.Same(t, base, WithError(base, nil))

	entries := decodeLines(t, buf.String())
	require.Len(t, entries, 1)
	assert.Equal(t, "exporter", entries[0]["component"])
	assert.Equal(t, "disk full", entries[0]["error"])
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, config.DefaultLogLevel, cfg.Level)
	assert.Equal(t, config.DefaultLogFile, cfg.FilePath)
}
