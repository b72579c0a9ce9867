package dispatch

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/go-glx/tasks/sched/internal/queue"
)

var ErrPanic = errors.New("task panicked")

type (
	// FailureFn receives every task that failed to run.
	FailureFn = func(task *queue.Task, err error)
)

// invoke runs the task and turns a panic into an error.
func invoke(task *queue.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrPanic, r, debug.Stack())
		}
	}()

	return task.Run()
}
