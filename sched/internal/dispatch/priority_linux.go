//go:build linux

package dispatch

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// lowerThreadPriority raises the nice value of the calling OS thread.
// On linux PRIO_PROCESS with a thread id targets just that thread.
func lowerThreadPriority(delta int) error {
	tid := unix.Gettid()

	current, err := unix.Getpriority(unix.PRIO_PROCESS, tid)
	if err != nil {
		return fmt.Errorf("get priority of thread %d: %w", tid, err)
	}

	// kernel returns 20-nice to keep the value positive
	nice := 20 - current + delta
	if nice > 19 {
		nice = 19
	}

	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, nice); err != nil {
		return fmt.Errorf("set priority %d of thread %d: %w", nice, tid, err)
	}

	return nil
}
