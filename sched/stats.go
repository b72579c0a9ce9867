package sched

import (
	"sync/atomic"

	"github.com/go-glx/tasks/sched/internal/dispatch"
)

type (
	Budget     = dispatch.Budget
	Report     = dispatch.Report
	TierReport = dispatch.TierReport
	StopReason = dispatch.StopReason
)

const (
	StopNone     = dispatch.StopNone
	StopWallTime = dispatch.StopWallTime
	StopCount    = dispatch.StopCount
)

// Stats is a snapshot of counters collected since the scheduler was created.
type Stats struct {
	Ticks      uint64
	Invoked    uint64
	Failed     uint64
	Duplicates uint64 // immediate submissions dropped as duplicates
	Async      uint64 // tasks handed to background workers
	AsyncFail  uint64

	Pending   int // timed + immediate backlog
	Recurring int // armed recurring tasks
	Workers   int // live background workers

	LastTick Report
}

type counters struct {
	ticks      atomic.Uint64
	invoked    atomic.Uint64
	failed     atomic.Uint64
	duplicates atomic.Uint64
	async      atomic.Uint64
	asyncFail  atomic.Uint64

	lastTick atomic.Pointer[Report]
}

func (c *counters) recordTick(r Report) {
	c.ticks.Add(1)
	c.invoked.Add(uint64(r.Invoked()))
	c.failed.Add(uint64(r.Failed()))
	c.lastTick.Store(&r)
}
