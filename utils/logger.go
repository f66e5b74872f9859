package utils

import (
	"os"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
)

var (
	loggerMu     sync.RWMutex
	globalLogger logr.Logger = logr.Discard()
)

// NewLogger builds a console logger with the given verbosity level.
// V(0) messages are always printed, V(1) and V(2) only when enabled.
func NewLogger(verbosity int) logr.Logger {
	if verbosity < 0 {
		verbosity = 0
	}
	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"
	zerologr.SetMaxV(verbosity)

	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	zl := zerolog.New(cw).With().Timestamp().Logger()
	return zerologr.New(&zl)
}

// SetLogger stores the logger returned by Log().
func SetLogger(l logr.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	globalLogger = l
}

// SetVerbosity adjusts the maximum enabled V level at runtime.
func SetVerbosity(v int) {
	if v < 0 {
		v = 0
	}
	zerologr.SetMaxV(v)
}

// Log returns the shared logger for packages without an injected one.
func Log() logr.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return globalLogger
}
