package cabi

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/logging"
)

func lookupFrom(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(lookupFrom(nil))
	assert.Nil(t, cfg.Level)
	assert.Equal(t, logging.FormatText, cfg.Format)

	cfg = LoadConfig(lookupFrom(map[string]string{EnvLogLevel: "DEBUG", EnvLogFormat: "json"}))
	require.NotNil(t, cfg.Level)
	assert.Equal(t, slog.LevelDebug, *cfg.Level)
	assert.Equal(t, logging.FormatJSON, cfg.Format)

	cfg = LoadConfig(lookupFrom(map[string]string{EnvLogLevel: "loud", EnvLogFormat: "xml"}))
	assert.Nil(t, cfg.Level)
	assert.Equal(t, logging.FormatText, cfg.Format)
}

func TestLoggerDefaultsToSilent(t *testing.T) {
	require.NotNil(t, Logger())
	prev := Logger()
	SetLogger(nil)
	t.Cleanup(func() { SetLogger(prev) })
	assert.False(t, Logger().Enabled(t.Context(), slog.LevelError))
}
