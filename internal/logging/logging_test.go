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
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{" warning ", slog.LevelWarn, true},
		{"Error", slog.LevelError, true},
		{"", slog.LevelInfo, false},
		{"verbose", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat("yaml"))
	assert.Equal(t, FormatText, ParseFormat(""))
}

func TestNewWithoutLevelIsSilent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})
	logger.Error("boom")
	assert.Empty(t, buf.String())
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	level := slog.LevelInfo
	logger := New(Config{Level: &level, Format: FormatJSON, Output: &buf})

	logger.Debug("hidden")
	logger.Info("template added", "name", "a.txt")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "template added", record["msg"])
	assert.Equal(t, "a.txt", record["name"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	level := slog.LevelDebug
	New(Config{Level: &level, Output: &buf}).Debug("env created")
	assert.Contains(t, buf.String(), "msg=\"env created\"")
}
