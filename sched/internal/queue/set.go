package queue

import (
	"sync"
	"time"
)

// Set owns the three tick queues and serialises every access to them.
// The lock is never held while a task runs, so running tasks may
// submit new work.
type Set struct {
	mu        sync.Mutex
	immediate *Immediate
	timed     *Timed
	recurring *Recurring
	lastSeq   uint64
}

func NewSet() *Set {
	return &Set{
		immediate: NewImmediate(),
		timed:     NewTimed(),
		recurring: NewRecurring(),
	}
}

// Push assigns the next sequence number and routes the task to the
// queue matching its kind. It returns false when an immediate
// duplicate was dropped.
func (s *Set) Push(task *Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeq++
	task.Seq = s.lastSeq

	switch task.Kind {
	case KindImmediate:
		return s.immediate.Push(task)
	case KindTimed:
		s.timed.Push(task)
	case KindRecurring:
		s.recurring.Add(task)
	default:
		return false
	}

	return true
}

func (s *Set) DueRecurring(now time.Duration) []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.recurring.Collect(now)
}

func (s *Set) RecurringStoppedAt(task *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recurring.StoppedAt(task)
}

// Horizon is the sequence number of the last submitted task.
// Tasks submitted after it was read have a greater Seq.
func (s *Set) Horizon() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastSeq
}

func (s *Set) PopTimed(now time.Duration, horizon uint64) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.timed.PopDue(now, horizon)
}

func (s *Set) PopImmediate(horizon uint64) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.immediate.PopUpTo(horizon)
}

// Pending is the backlog: timed plus immediate tasks.
func (s *Set) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.timed.Len() + s.immediate.Len()
}

func (s *Set) RecurringLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.recurring.Len()
}
