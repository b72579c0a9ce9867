package queue

import (
	"sync/atomic"
	"time"
)

const (
	KindImmediate Kind = iota
	KindTimed
	KindRecurring
	KindAsync
)

type (
	Kind uint8

	Task struct {
		Kind     Kind
		ID       string        // set for tasks reachable through a handle
		Name     string        // human readable, only for logs
		Key      any           // identity for duplicate suppression, nil means unique
		Due      time.Duration // absolute, in clock units; unused for immediate and async
		Interval time.Duration // re-arm delay, recurring only
		Seq      uint64        // submission order, tie-breaker
		Run      func() error

		cancelled atomic.Bool
	}
)

func (k Kind) String() string {
	switch k {
	case KindImmediate:
		return "immediate"
	case KindTimed:
		return "timed"
	case KindRecurring:
		return "recurring"
	case KindAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Cancel marks the task as removed. Queues drop cancelled tasks
// the next time they meet them. Safe to call from any goroutine.
func (t *Task) Cancel() {
	t.cancelled.Store(true)
}

func (t *Task) Cancelled() bool {
	return t.cancelled.Load()
}

// IsDue reports whether the task may run at now.
// Immediate tasks are always due.
func (t *Task) IsDue(now time.Duration) bool {
	if t.Kind == KindImmediate || t.Kind == KindAsync {
		return true
	}

	return t.Due <= now
}

// Rearm schedules the next run of a recurring task relative to
// the moment it actually fired.
func (t *Task) Rearm(firedAt time.Duration) {
	t.Due = firedAt + t.Interval
}
