package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelString(t *testing.T) {
	testCases := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LevelOff, "OFF"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("Debug")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("compiler").
		With("template", "index.html").
		Warn(context.Background(), errors.New("boom"), "skipped node", "kind", "comment")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "skipped node", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "compiler", entry["component"])
	assert.Equal(t, "index.html", entry["template"])
	assert.Equal(t, "comment", entry["kind"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})

	logger.Debug(context.Background(), "hidden debug")
	logger.Info(context.Background(), "hidden info")
	logger.Error(context.Background(), nil, "visible error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible error")
}

func TestNopDiscards(t *testing.T) {
	logger := Nop()
	assert.NotPanics(t, func() {
		logger.Error(context.Background(), errors.New("x"), "ignored")
		logger.With("k", "v").WithComponent("c").Info(context.Background(), "ignored")
	})
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Output: &buf})

	op := StartOperation(logger, "compile")
	op.End(context.Background())

	out := buf.String()
	assert.Contains(t, out, "Operation completed")
	assert.Contains(t, out, "operation=compile")
	assert.True(t, strings.Contains(out, "duration_ms="))
}
