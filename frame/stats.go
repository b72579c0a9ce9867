package frame

import (
	"time"

	"github.com/go-glx/tasks/sched"
)

type Timings struct {
	StartAt  time.Time
	Duration time.Duration
}

type Stats struct {
	CurrentFrame uint64
	CurrentFPS   int
	DeltaTime    float64 // seconds since previous frame

	FrameFreeTime    time.Duration
	FrameTargetFPS   int
	FramePossibleFPS int
	FrameTimeLimit   time.Duration
	ThrottleTime     time.Duration

	Execute Timings
	Frame   Timings
	Tasks   Timings

	TasksReport sched.Report
	Pending     int
}

func (e *Executor) stats(report sched.Report, throttle time.Duration) Stats {
	now := time.Now()

	busy := e.frame.duration() + e.tasksTime.duration()
	possibleFPS := 0
	if busy > 0 {
		possibleFPS = int(time.Second / busy)
	}

	s := Stats{
		CurrentFrame: e.currentFrameID,
		CurrentFPS:   e.fpsCounter.frame(now),
		DeltaTime:    now.Sub(e.lastFrameAt).Seconds(),

		FrameFreeTime:    e.limitDuration - e.frame.duration(),
		FrameTargetFPS:   e.limitFPS,
		FramePossibleFPS: possibleFPS,
		FrameTimeLimit:   e.limitDuration,
		ThrottleTime:     throttle,

		Execute: Timings{
			StartAt:  e.execute.from,
			Duration: now.Sub(e.execute.from),
		},
		Frame: e.frame.timings(),
		Tasks: e.tasksTime.timings(),

		TasksReport: report,
		Pending:     e.scheduler.PendingCount(),
	}

	e.lastFrameAt = now
	return s
}
