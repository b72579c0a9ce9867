package dispatch

import (
	"time"

	"github.com/go-glx/tasks/clock"
	"github.com/go-glx/tasks/sched/internal/queue"
)

const (
	StopNone StopReason = iota
	StopWallTime
	StopCount
)

type (
	StopReason uint8

	// Budget bounds the queued work drained in one tick.
	// Zero values mean unlimited.
	Budget struct {
		MaxWallTime   time.Duration
		MaxCount      int
		ThrottleTimed bool // count cap also applies to the timed pass
	}

	TierReport struct {
		Invoked int
		Failed  int
	}

	Report struct {
		Recurring TierReport
		Timed     TierReport
		Immediate TierReport
		Elapsed   time.Duration
		Stopped   StopReason
	}

	Tick struct {
		clock     clock.Clock
		onFailure FailureFn
		onInvoke  func(task *queue.Task, took time.Duration)
	}

	tickState struct {
		budget  Budget
		horizon uint64 // last task submitted before the tick started
		startAt time.Duration
		count   int
		report  Report
	}
)

func (r StopReason) String() string {
	switch r {
	case StopWallTime:
		return "wall-time"
	case StopCount:
		return "count"
	default:
		return "none"
	}
}

// Invoked is the total number of tasks run in the tick.
func (r Report) Invoked() int {
	return r.Recurring.Invoked + r.Timed.Invoked + r.Immediate.Invoked
}

func (r Report) Failed() int {
	return r.Recurring.Failed + r.Timed.Failed + r.Immediate.Failed
}

func NewTick(clk clock.Clock, onFailure FailureFn, onInvoke func(*queue.Task, time.Duration)) *Tick {
	if onFailure == nil {
		onFailure = func(*queue.Task, error) {}
	}

	if onInvoke == nil {
		onInvoke = func(*queue.Task, time.Duration) {}
	}

	return &Tick{
		clock:     clk,
		onFailure: onFailure,
		onInvoke:  onInvoke,
	}
}

// Drain runs queued work in fixed tier order: recurring, timed, immediate.
// Limits are checked between invocations only, a running task is never
// interrupted. Tasks submitted while the tick runs wait for the next one.
func (t *Tick) Drain(queues *queue.Set, budget Budget) Report {
	st := &tickState{
		budget:  budget,
		horizon: queues.Horizon(),
		startAt: t.clock.Now(),
	}

	t.drainRecurring(queues, st)

	if st.report.Stopped == StopNone {
		t.drainTimed(queues, st)
	}

	if st.report.Stopped == StopNone {
		t.drainImmediate(queues, st)
	}

	st.report.Elapsed = t.clock.Now() - st.startAt
	return st.report
}

func (t *Tick) drainRecurring(queues *queue.Set, st *tickState) {
	now := t.clock.Now()

	for _, task := range queues.DueRecurring(now) {
		if task.Cancelled() {
			continue
		}

		if t.wallExhausted(st) {
			st.report.Stopped = StopWallTime
			queues.RecurringStoppedAt(task)
			return
		}

		firedAt := t.clock.Now()
		failed := t.run(task)
		task.Rearm(firedAt)

		st.report.Recurring.Invoked++
		if failed {
			st.report.Recurring.Failed++
		}
	}

	queues.RecurringStoppedAt(nil)
}

func (t *Tick) drainTimed(queues *queue.Set, st *tickState) {
	for {
		if t.wallExhausted(st) {
			st.report.Stopped = StopWallTime
			return
		}

		if st.budget.ThrottleTimed && t.countExhausted(st) {
			st.report.Stopped = StopCount
			return
		}

		task := queues.PopTimed(t.clock.Now(), st.horizon)
		if task == nil {
			return
		}

		st.count++
		st.report.Timed.Invoked++
		if t.run(task) {
			st.report.Timed.Failed++
		}
	}
}

func (t *Tick) drainImmediate(queues *queue.Set, st *tickState) {
	for {
		if t.wallExhausted(st) {
			st.report.Stopped = StopWallTime
			return
		}

		if t.countExhausted(st) {
			st.report.Stopped = StopCount
			return
		}

		task := queues.PopImmediate(st.horizon)
		if task == nil {
			return
		}

		st.count++
		st.report.Immediate.Invoked++
		if t.run(task) {
			st.report.Immediate.Failed++
		}
	}
}

// run invokes the task and reports whether it failed.
func (t *Tick) run(task *queue.Task) bool {
	startAt := t.clock.Now()
	err := invoke(task)
	t.onInvoke(task, t.clock.Now()-startAt)

	if err != nil {
		t.onFailure(task, err)
		return true
	}

	return false
}

func (t *Tick) wallExhausted(st *tickState) bool {
	if st.budget.MaxWallTime <= 0 {
		return false
	}

	return t.clock.Now()-st.startAt >= st.budget.MaxWallTime
}

func (t *Tick) countExhausted(st *tickState) bool {
	if st.budget.MaxCount <= 0 {
		return false
	}

	return st.count >= st.budget.MaxCount
}
