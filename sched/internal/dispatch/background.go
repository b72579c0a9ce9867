package dispatch

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/go-glx/tasks/sched/internal/queue"
)

const (
	defaultIdleTimeout = time.Second * 5
	defaultNiceness    = 10
)

var (
	ErrBackgroundFull   = errors.New("background queue is full")
	ErrBackgroundClosed = errors.New("background dispatcher is closed")
)

type (
	BackgroundConfig struct {
		MaxWorkers  int
		QueueSize   int
		IdleTimeout time.Duration
		Niceness    int // added to the worker thread nice value, 0 keeps the default
	}

	// Background runs fire-and-forget tasks on a bounded set of
	// low priority workers. Workers are started on demand and
	// retire after being idle.
	Background struct {
		cfg       BackgroundConfig
		tasks     chan *queue.Task
		done      chan struct{}
		onFailure FailureFn
		onPrioErr func(err error)

		mu      sync.Mutex
		workers int
		closed  bool
	}
)

func NewBackground(cfg BackgroundConfig, onFailure FailureFn, onPrioErr func(error)) *Background {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.GOMAXPROCS(0)
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.MaxWorkers
	}

	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}

	if onFailure == nil {
		onFailure = func(*queue.Task, error) {}
	}

	if onPrioErr == nil {
		onPrioErr = func(error) {}
	}

	return &Background{
		cfg:       cfg,
		tasks:     make(chan *queue.Task, cfg.QueueSize),
		done:      make(chan struct{}),
		onFailure: onFailure,
		onPrioErr: onPrioErr,
	}
}

// Launch hands the task to a worker and returns without waiting.
// It never blocks: a saturated queue is reported as ErrBackgroundFull.
func (b *Background) Launch(task *queue.Task) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBackgroundClosed
	}

	select {
	case b.tasks <- task:
	default:
		return ErrBackgroundFull
	}

	if b.workers < b.cfg.MaxWorkers {
		b.workers++
		go b.work()
	}

	return nil
}

// Workers is the number of live worker goroutines.
func (b *Background) Workers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.workers
}

// Close stops accepting tasks. Queued tasks that have not started are
// dropped, running tasks are left to finish on their own.
func (b *Background) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	close(b.done)
}

func (b *Background) work() {
	// the thread dies with the goroutine, so the lowered
	// priority never leaks into the runtime thread pool
	runtime.LockOSThread()

	if b.cfg.Niceness != 0 {
		if err := lowerThreadPriority(b.cfg.Niceness); err != nil {
			b.onPrioErr(err)
		}
	}

	idle := time.NewTimer(b.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-b.done:
			b.retire(true)
			return
		case task := <-b.tasks:
			b.run(task)
			resetTimer(idle, b.cfg.IdleTimeout)
		case <-idle.C:
			if b.retire(false) {
				return
			}

			idle.Reset(b.cfg.IdleTimeout)
		}
	}
}

func (b *Background) run(task *queue.Task) {
	if task.Cancelled() {
		return
	}

	if err := invoke(task); err != nil {
		b.onFailure(task, err)
	}
}

// retire decrements the worker count, unless work is still pending.
func (b *Background) retire(force bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !force && len(b.tasks) > 0 {
		return false
	}

	b.workers--
	return true
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}

	t.Reset(d)
}
