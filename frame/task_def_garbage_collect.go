package frame

import (
	"runtime"
	"time"

	"github.com/go-glx/tasks/sched"
)

// NewDefaultTaskGarbageCollect forces a GC cycle every five seconds,
// from the frame loop goroutine, inside the tasks budget.
func NewDefaultTaskGarbageCollect() RecurringTask {
	return RecurringTask{
		Action: sched.Func(func() error {
			runtime.GC()
			runtime.Gosched()
			return nil
		}).Named("frame.gc"),
		Every: time.Second * 5,
	}
}
