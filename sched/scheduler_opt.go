package sched

import (
	"github.com/go-glx/tasks/clock"
	"github.com/go-glx/tasks/config"
)

type (
	Option = func(*Scheduler)

	// FailureHook observes every failed invocation, both on the tick
	// path and on background workers. It must be safe for concurrent use.
	FailureHook = func(f Failure)
)

func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

func WithLogger(l Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBudget sets the per tick limits as is, without clamping.
// Zero fields mean unlimited.
func WithBudget(b Budget) Option {
	return func(s *Scheduler) {
		s.tickBudget = b
	}
}

// WithSettings applies clamped user settings: budget, dispatch
// logging and background pool size.
func WithSettings(settings config.Settings) Option {
	return func(s *Scheduler) {
		settings = settings.Clamped()

		s.tickBudget = Budget{
			MaxWallTime:   settings.MaxTickTime,
			MaxCount:      settings.MaxTasksPerTick,
			ThrottleTimed: settings.ThrottleTimed,
		}
		s.logDispatch = settings.LogDispatch
		s.background.MaxWorkers = settings.BackgroundWorkers
		s.background.QueueSize = settings.BackgroundQueue
	}
}

func WithDispatchLog(enabled bool) Option {
	return func(s *Scheduler) {
		s.logDispatch = enabled
	}
}

func WithFailureHook(hook FailureHook) Option {
	return func(s *Scheduler) {
		s.onFailure = hook
	}
}

// WithBackground sizes the async worker pool. Niceness is added to the
// nice value of worker threads (linux only), 0 leaves it untouched.
func WithBackground(workers, queueSize, niceness int) Option {
	return func(s *Scheduler) {
		s.background.MaxWorkers = workers
		s.background.QueueSize = queueSize
		s.background.Niceness = niceness
	}
}
