package frame

import (
	"time"

	"github.com/go-glx/tasks/sched"
)

type (
	ExecutorInitializer = func(*Executor)

	// RecurringTask is registered on the scheduler for the
	// lifetime of Execute.
	RecurringTask struct {
		Action sched.Action
		Every  time.Duration
	}
)

func WithFrameErrorHandleBehavior(behavior ErrBehavior) ExecutorInitializer {
	return func(e *Executor) {
		e.frameErrBehavior = behavior
	}
}

func WithTargetFPS(targetFPS int) ExecutorInitializer {
	return func(e *Executor) {
		if targetFPS <= 0 {
			return
		}

		e.limitFPS = targetFPS
		e.limitDuration = time.Second / time.Duration(targetFPS)
	}
}

func WithLogger(logger sched.Logger) ExecutorInitializer {
	return func(e *Executor) {
		e.logger = logger
	}
}

func WithTask(task RecurringTask) ExecutorInitializer {
	return func(e *Executor) {
		e.tasks = append(e.tasks, task)
	}
}

// WithStats is called after every frame with fresh frame stats.
func WithStats(fn func(Stats)) ExecutorInitializer {
	return func(e *Executor) {
		e.onStats = fn
	}
}
