package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestValidLevel(t *testing.T) {
	assert.True(t, ValidLevel("Warn"))
	assert.False(t, ValidLevel("loud"))
	assert.False(t, ValidLevel(""))
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown", "entity", "Steve")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "entity=Steve")
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "debug", Format: FormatJSON, Output: &buf})

	logger.Debug("hello", "n", 3)

	line := strings.TrimSpace(buf.String())
	require.True(t, gjson.Valid(line), "not JSON: %s", line)
	assert.Equal(t, "hello", gjson.Get(line, "msg").String())
	assert.Equal(t, int64(3), gjson.Get(line, "n").Int())
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))

	FromContext(ctx).Info("via context")
	assert.True(t, strings.Contains(buf.String(), "via context"))
}

func TestFromContextDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
