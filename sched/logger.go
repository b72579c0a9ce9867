package sched

import "github.com/go-glx/tasks/internal/logging"

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

func fallbackLogger() Logger {
	return logging.Discard()
}
