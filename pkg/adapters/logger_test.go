// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tracking.
//
// go-tracking is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package adapters

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

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"debug": DebugLevel, "INFO": InfoLevel, "": InfoLevel,
		"warning": WarnLevel, "warn": WarnLevel, "error": ErrorLevel,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: "info", Output: &buf})
	require.NoError(t, err)
	ctx := context.Background()

	logger.Debug(ctx, "hidden")
	logger.WithFields(F("tracking_key", "build-1")).Info(ctx, "sealed", F("entries", 3))
	logger.Error(ctx, "failed", Err(errors.New("boom")))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "sealed", lines[0]["msg"])
	assert.Equal(t, "build-1", lines[0]["tracking_key"])
	assert.Equal(t, float64(3), lines[0]["entries"])
	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])

	buf.Reset()
	logger.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, logger.GetLevel())
	logger.Debug(ctx, "visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestSlogTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Format: "text", Output: &buf})
	require.NoError(t, err)
	logger.Warn(context.Background(), "guard denied", F("store", "maven:hosted:x"))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "store=maven:hosted:x")
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Backend: "zerolog", Level: "warn", Output: &buf})
	require.NoError(t, err)
	ctx := context.Background()

	logger.Info(ctx, "hidden")
	logger.WithFields(F("component", "cleanup")).Warn(ctx, "cleanup failed", F("folders", 2))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "cleanup failed", lines[0]["message"])
	assert.Equal(t, "cleanup", lines[0]["component"])
	assert.Equal(t, WarnLevel, logger.GetLevel())
}

func TestNewLoggerRejectsUnknown(t *testing.T) {
	_, err := NewLogger(Config{Backend: "log4j"})
	assert.Error(t, err)
	_, err = NewLogger(Config{Format: "xml"})
	assert.Error(t, err)
	_, err = NewLogger(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()
	ctx := context.Background()
	logger.Debug(ctx, "x")
	logger.Info(ctx, "x")
	logger.Warn(ctx, "x")
	logger.Error(ctx, "x")
	assert.Same(t, logger, logger.WithFields(F("a", 1)))
	logger.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, logger.GetLevel())
}
