package queue

import "math"

// Immediate is a FIFO queue holding at most one copy of every keyed task.
type Immediate struct {
	tasks  []*Task
	head   int
	queued map[any]struct{}
}

func NewImmediate() *Immediate {
	return &Immediate{
		queued: make(map[any]struct{}),
	}
}

// Push appends the task, unless a task with the same key is
// still waiting in the queue. Returns false when dropped.
func (q *Immediate) Push(task *Task) bool {
	if task.Key != nil {
		if _, exist := q.queued[task.Key]; exist {
			return false
		}

		q.queued[task.Key] = struct{}{}
	}

	q.tasks = append(q.tasks, task)
	return true
}

// Pop removes and returns the oldest task, or nil when empty.
func (q *Immediate) Pop() *Task {
	return q.PopUpTo(math.MaxUint64)
}

// PopUpTo is Pop limited to tasks submitted with Seq <= horizon.
// Returns nil when the oldest task is newer than horizon.
func (q *Immediate) PopUpTo(horizon uint64) *Task {
	for q.head < len(q.tasks) {
		task := q.tasks[q.head]
		if !task.Cancelled() && task.Seq > horizon {
			return nil
		}

		q.tasks[q.head] = nil
		q.head++

		if task.Key != nil {
			delete(q.queued, task.Key)
		}

		q.compact()

		if task.Cancelled() {
			continue
		}

		return task
	}

	return nil
}

func (q *Immediate) Len() int {
	return len(q.tasks) - q.head
}

// compact releases the consumed prefix once it dominates the backing array.
func (q *Immediate) compact() {
	if q.head == len(q.tasks) {
		q.tasks = q.tasks[:0]
		q.head = 0
		return
	}

	if q.head > 32 && q.head*2 > len(q.tasks) {
		n := copy(q.tasks, q.tasks[q.head:])
		for i := n; i < len(q.tasks); i++ {
			q.tasks[i] = nil
		}

		q.tasks = q.tasks[:n]
		q.head = 0
	}
}
