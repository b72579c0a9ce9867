package sched

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-glx/tasks/clock"
	"github.com/go-glx/tasks/config"
	"github.com/go-glx/tasks/sched/internal/dispatch"
	"github.com/go-glx/tasks/sched/internal/queue"
)

const defaultNiceness = 10

type (
	// Scheduler decouples requesting work from running it.
	//
	// Submission methods may be called from any goroutine. Tick must be
	// called from a single goroutine, normally the frame loop, once per
	// frame. Tasks run on the ticking goroutine, except async ones.
	Scheduler struct {
		clock       clock.Clock
		logger      Logger
		tickBudget  Budget
		logDispatch bool
		onFailure   FailureHook
		background  dispatch.BackgroundConfig

		queues  *queue.Set
		drainer *dispatch.Tick
		async   *dispatch.Background
		counter counters

		closeOnce sync.Once
		closed    atomic.Bool
	}

	// Failure describes one failed invocation.
	Failure struct {
		Kind string
		Name string
		ID   string
		Err  error
	}
)

// New creates a scheduler. Without options it uses the monotonic
// clock and the budget of config.Default().
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  clock.NewMonotonic(),
		logger: fallbackLogger(),
		queues: queue.NewSet(),
		background: dispatch.BackgroundConfig{
			Niceness: defaultNiceness,
		},
	}

	WithSettings(config.Default())(s)

	for _, opt := range opts {
		opt(s)
	}

	s.drainer = dispatch.NewTick(s.clock, s.handleFailure, s.logInvoke)
	s.async = dispatch.NewBackground(s.background, s.handleFailure, func(err error) {
		s.logger.Error("background worker priority not lowered", "err", err)
	})

	return s
}

// RunLater queues the action for the first tick with spare budget.
// An identical action still waiting in the queue makes this a no-op.
// Only actions with an identity collapse: those built by Keyed or
// Method*. Func actions are always queued.
func (s *Scheduler) RunLater(a Action) error {
	task, err := s.newTask(queue.KindImmediate, a)
	if err != nil {
		return err
	}

	if !s.queues.Push(task) {
		s.counter.duplicates.Add(1)
		s.logScheduled(task, "duplicate", true)
		return nil
	}

	s.logScheduled(task, "duplicate", false)
	return nil
}

// RunAt queues the action to run once delay has passed.
// Zero or negative delays are due on the next tick, still in timed order.
func (s *Scheduler) RunAt(a Action, delay time.Duration) error {
	task, err := s.newTask(queue.KindTimed, a)
	if err != nil {
		return err
	}

	task.Due = dueAfter(s.clock.Now(), delay)
	s.queues.Push(task)

	s.logScheduled(task, "due", task.Due)
	return nil
}

// RunEvery runs the action every interval, measured from the moment it
// last ran. The first run is one interval from now.
func (s *Scheduler) RunEvery(a Action, interval time.Duration) (*Handle, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidInterval, interval)
	}

	task, err := s.newTask(queue.KindRecurring, a)
	if err != nil {
		return nil, err
	}

	task.Interval = interval
	task.Due = dueAfter(s.clock.Now(), interval)
	handle := newHandle(task)
	s.queues.Push(task)

	s.logScheduled(task, "interval", interval)
	return handle, nil
}

// RunAsync hands the action to a background worker before returning.
// The tick budget does not apply, and the result is only observable
// through the failure hook.
func (s *Scheduler) RunAsync(a Action) error {
	task, err := s.newTask(queue.KindAsync, a)
	if err != nil {
		return err
	}

	if err := s.async.Launch(task); err != nil {
		if errors.Is(err, dispatch.ErrBackgroundClosed) {
			return ErrClosed
		}

		return fmt.Errorf("run async %s: %w", task.Name, err)
	}

	s.counter.async.Add(1)
	s.logScheduled(task, "workers", s.async.Workers())
	return nil
}

// Tick drains queued work within the configured budget.
func (s *Scheduler) Tick() Report {
	return s.TickWithin(s.tickBudget)
}

// TickWithin drains queued work within b instead of the configured budget.
func (s *Scheduler) TickWithin(b Budget) Report {
	report := s.drainer.Drain(s.queues, b)
	s.counter.recordTick(report)

	if s.logDispatch && report.Invoked() > 0 {
		s.logger.Debug("tick",
			"invoked", report.Invoked(),
			"failed", report.Failed(),
			"elapsed", report.Elapsed,
			"stopped", report.Stopped.String(),
		)
	}

	return report
}

// PendingCount is the backlog of timed and immediate tasks.
func (s *Scheduler) PendingCount() int {
	return s.queues.Pending()
}

// Budget returns the configured per tick budget.
func (s *Scheduler) Budget() Budget {
	return s.tickBudget
}

// Stats returns counters collected since New and the last tick report.
func (s *Scheduler) Stats() Stats {
	st := Stats{
		Ticks:      s.counter.ticks.Load(),
		Invoked:    s.counter.invoked.Load(),
		Failed:     s.counter.failed.Load(),
		Duplicates: s.counter.duplicates.Load(),
		Async:      s.counter.async.Load(),
		AsyncFail:  s.counter.asyncFail.Load(),
		Pending:    s.queues.Pending(),
		Recurring:  s.queues.RecurringLen(),
		Workers:    s.async.Workers(),
	}

	if last := s.counter.lastTick.Load(); last != nil {
		st.LastTick = *last
	}

	return st
}

// Close rejects further submissions and stops the background workers.
// Work already running is not interrupted.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.async.Close()
	})
}

// dueAfter adds d to now, saturating instead of wrapping around.
func dueAfter(now, d time.Duration) time.Duration {
	if d > 0 && now > math.MaxInt64-d {
		return math.MaxInt64
	}

	if d < 0 && now < math.MinInt64-d {
		return math.MinInt64
	}

	return now + d
}

func (s *Scheduler) newTask(kind queue.Kind, a Action) (*queue.Task, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	if a.err != nil {
		return nil, fmt.Errorf("bind %s task: %w", kind, a.err)
	}

	if a.run == nil {
		return nil, fmt.Errorf("bind %s task: %w", kind, ErrNilAction)
	}

	return &queue.Task{
		Kind: kind,
		Name: a.name,
		Key:  a.key,
		Run:  a.run,
	}, nil
}

func (s *Scheduler) handleFailure(task *queue.Task, err error) {
	if task.Kind == queue.KindAsync {
		s.counter.asyncFail.Add(1)
	}

	s.logger.Error("task failed",
		"kind", task.Kind.String(),
		"task", task.Name,
		"id", task.ID,
		"err", err,
	)

	if s.onFailure != nil {
		s.onFailure(Failure{
			Kind: task.Kind.String(),
			Name: task.Name,
			ID:   task.ID,
			Err:  err,
		})
	}
}

func (s *Scheduler) logScheduled(task *queue.Task, key string, value any) {
	if !s.logDispatch {
		return
	}

	s.logger.Debug("task scheduled",
		"kind", task.Kind.String(),
		"task", task.Name,
		"seq", task.Seq,
		key, value,
	)
}

func (s *Scheduler) logInvoke(task *queue.Task, took time.Duration) {
	if !s.logDispatch {
		return
	}

	s.logger.Debug("task dispatched",
		"kind", task.Kind.String(),
		"task", task.Name,
		"took", took,
	)
}
