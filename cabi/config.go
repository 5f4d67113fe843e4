package cabi

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/logging"
)

// Environment variables read by LoadConfig.
const (
	EnvLogLevel  = "MINIJINJA_LOG_LEVEL"
	EnvLogFormat = "MINIJINJA_LOG_FORMAT"
)

// LoadConfig builds the logging configuration from lookup, which is normally
// os.LookupEnv. Unknown values fall back to the defaults: logging disabled,
// text format.
func LoadConfig(lookup func(string) (string, bool)) logging.Config {
	var cfg logging.Config
	if s, ok := lookup(EnvLogLevel); ok {
		if level, ok := logging.ParseLevel(s); ok {
			cfg.Level = &level
		}
	}
	cfg.Format = logging.FormatText
	if s, ok := lookup(EnvLogFormat); ok {
		cfg.Format = logging.ParseFormat(s)
	}
	return cfg
}

var (
	loggerOnce sync.Once
	logger     atomic.Pointer[slog.Logger]
)

// Logger returns the process-wide logger, configured from the environment on
// first use.
func Logger() *slog.Logger {
	loggerOnce.Do(func() {
		logger.CompareAndSwap(nil, logging.New(LoadConfig(os.LookupEnv)))
	})
	return logger.Load()
}

// SetLogger replaces the process-wide logger. Environments created earlier
// keep the logger they started with.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = logging.Nop()
	}
	logger.Store(l)
}
