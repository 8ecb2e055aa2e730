package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), "ParseLevel(%q)", tt.input)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", slog.LevelInfo)
	logger.Info("test message", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "text", slog.LevelInfo)
	logger.Info("test message", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "msg=\"test message\"")
	assert.Contains(t, out, "key=value")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "text", slog.LevelWarn)
	logger.Info("should not appear")
	logger.Debug("should not appear either")
	assert.Zero(t, buf.Len())

	logger.Warn("should appear")
	assert.NotZero(t, buf.Len())
}

func TestContextHandler_AddsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "text", slog.LevelDebug)

	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithRequestID(ctx, "req-2")
	logger.InfoContext(ctx, "with ids", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "run_id=run-1")
	assert.Contains(t, out, "request_id=req-2")
	assert.Contains(t, out, "key=value")
}

func TestContextHandler_NoIDsWhenMissing(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "text", slog.LevelDebug)

	logger.InfoContext(context.Background(), "plain")
	logger.InfoContext(WithRunID(context.Background(), ""), "empty")

	assert.NotContains(t, buf.String(), "run_id")
	assert.NotContains(t, buf.String(), "request_id")
}

func TestContextHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "text", slog.LevelDebug).With("component", "pipeline").WithGroup("g")

	logger.InfoContext(WithRunID(context.Background(), "run-3"), "grouped", "k", "v")

	out := buf.String()
	assert.Contains(t, out, "component=pipeline")
	assert.Contains(t, out, "g.k=v")
	assert.Contains(t, out, "run_id=run-3")
}

func TestIDAccessors(t *testing.T) {
	_, ok := RunID(context.Background())
	assert.False(t, ok)

	id, ok := RequestID(WithRequestID(context.Background(), "abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
}
