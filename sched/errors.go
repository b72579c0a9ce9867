package sched

import (
	"errors"

	"github.com/go-glx/tasks/sched/internal/dispatch"
)

var (
	ErrNilAction       = errors.New("action is nil")
	ErrUnhashableKey   = errors.New("action identity is not comparable")
	ErrInvalidInterval = errors.New("interval must be positive")
	ErrBackgroundFull  = dispatch.ErrBackgroundFull
	ErrClosed          = errors.New("scheduler is closed")
	ErrPanic           = dispatch.ErrPanic
)
