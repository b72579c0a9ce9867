package frame

import (
	"context"
	"fmt"
	"time"

	"github.com/go-glx/tasks/sched"
)

const (
	defaultLimitFPS = 60

	// tasks budget for frames that already overran the limit
	minTasksBudget = time.Microsecond * 500
)

type (
	Executor struct {
		logger           sched.Logger
		scheduler        *sched.Scheduler
		frameErrBehavior ErrBehavior
		limitFPS         int
		limitDuration    time.Duration
		tasks            []RecurringTask
		onStats          statsFn

		// state
		currentFrameID uint64
		execute        timeRange
		frame          timeRange
		tasksTime      timeRange
		fpsCounter     fpsCounter
		lastFrameAt    time.Time
	}

	mainFn  = func() error
	statsFn = func(Stats)
)

func NewExecutor(scheduler *sched.Scheduler, initializers ...ExecutorInitializer) *Executor {
	e := &Executor{
		logger:           &fallbackLogger{},
		scheduler:        scheduler,
		frameErrBehavior: ErrBehaviorExit,
		limitFPS:         defaultLimitFPS,
		limitDuration:    time.Second / time.Duration(defaultLimitFPS),
		onStats:          func(Stats) {},
	}

	for _, init := range initializers {
		init(e)
	}

	return e
}

// Execute runs fn once per frame until ctx is done or fn fails
// (depending on error behavior). Spare frame time is given to the
// scheduler, the rest of the frame is slept away.
func (e *Executor) Execute(ctx context.Context, fn mainFn) error {
	handles, err := e.registerTasks()
	if err != nil {
		return err
	}

	defer func() {
		for _, h := range handles {
			h.Cancel()
		}
	}()

	e.execute.start()
	e.currentFrameID = 0
	e.fpsCounter = fpsCounter{}
	e.lastFrameAt = e.execute.from

	for ctx.Err() == nil {
		e.currentFrameID++

		e.frame.start()
		err := fn()
		e.frame.finish()

		if err != nil {
			if next := e.handleError(err); next != nil {
				return next
			}
		}

		report := e.runTasks()
		throttle := e.throttle(ctx)

		e.onStats(e.stats(report, throttle))
	}

	return nil
}

func (e *Executor) registerTasks() ([]*sched.Handle, error) {
	handles := make([]*sched.Handle, 0, len(e.tasks))

	for _, task := range e.tasks {
		h, err := e.scheduler.RunEvery(task.Action, task.Every)
		if err != nil {
			for _, registered := range handles {
				registered.Cancel()
			}

			return nil, fmt.Errorf("register frame task: %w", err)
		}

		handles = append(handles, h)
	}

	return handles, nil
}

// runTasks ticks the scheduler with the frame's spare time,
// bounded by the scheduler's own budget.
func (e *Executor) runTasks() sched.Report {
	budget := e.scheduler.Budget()

	spare := e.limitDuration - e.frame.duration()
	if spare < minTasksBudget {
		spare = minTasksBudget
	}

	if budget.MaxWallTime <= 0 || spare < budget.MaxWallTime {
		budget.MaxWallTime = spare
	}

	e.tasksTime.start()
	report := e.scheduler.TickWithin(budget)
	e.tasksTime.finish()

	return report
}

// throttle sleeps until the frame time limit is reached.
func (e *Executor) throttle(ctx context.Context) time.Duration {
	left := e.limitDuration - time.Since(e.frame.from)
	if left <= 0 {
		return 0
	}

	sleepFrom := time.Now()
	timer := time.NewTimer(left)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return time.Since(sleepFrom)
	case <-timer.C:
		return left
	}
}

func (e *Executor) handleError(err error) error {
	err = fmt.Errorf("error on %d frame: %w", e.currentFrameID, err)

	if e.frameErrBehavior == ErrBehaviorExit {
		return err
	}

	if e.frameErrBehavior == ErrBehaviorLog {
		e.logger.Error("frame failed", "err", err)
		return nil
	}

	return nil
}
