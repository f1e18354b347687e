package rxcore

import (
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

var (
	loggersMu      sync.RWMutex
	defaultLoggers = newDefaultLoggers()
)

func newDefaultLoggers() ldlog.Loggers {
	loggers := ldlog.NewDefaultLoggers()
	loggers.SetMinLevel(ldlog.Warn)
	loggers.SetPrefix("[rxcore]")
	return loggers
}

// SetDefaultLoggers replaces the loggers used by schedulers created without
// WithLoggers and by Safe observers.
func SetDefaultLoggers(loggers ldlog.Loggers) {
	loggersMu.Lock()
	defaultLoggers = loggers
	loggersMu.Unlock()
}

// DefaultLoggers returns the package-wide loggers.
func DefaultLoggers() ldlog.Loggers {
	loggersMu.RLock()
	defer loggersMu.RUnlock()
	return defaultLoggers
}
