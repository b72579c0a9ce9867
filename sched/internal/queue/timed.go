package queue

import (
	"sort"
	"time"
)

// Timed keeps tasks ordered by due time, then by submission order.
type Timed struct {
	tasks []*Task
}

func NewTimed() *Timed {
	return &Timed{}
}

func (q *Timed) Push(task *Task) {
	// first position that must come after the task
	pos := sort.Search(len(q.tasks), func(i int) bool {
		return less(task, q.tasks[i])
	})

	q.tasks = append(q.tasks, nil)
	copy(q.tasks[pos+1:], q.tasks[pos:])
	q.tasks[pos] = task
}

// PopDue removes and returns the first task due at now that was
// submitted with Seq <= horizon. Newer tasks keep their place.
// It returns nil when no such task is due yet.
func (q *Timed) PopDue(now time.Duration, horizon uint64) *Task {
	for pos := 0; pos < len(q.tasks); {
		task := q.tasks[pos]
		if task.Cancelled() {
			q.removeAt(pos)
			continue
		}

		if !task.IsDue(now) {
			return nil
		}

		if task.Seq > horizon {
			pos++
			continue
		}

		q.removeAt(pos)
		return task
	}

	return nil
}

// Peek returns the head task without removing it.
func (q *Timed) Peek() *Task {
	if len(q.tasks) == 0 {
		return nil
	}

	return q.tasks[0]
}

func (q *Timed) Len() int {
	return len(q.tasks)
}

func (q *Timed) removeAt(pos int) {
	copy(q.tasks[pos:], q.tasks[pos+1:])
	q.tasks[len(q.tasks)-1] = nil
	q.tasks = q.tasks[:len(q.tasks)-1]
}

func less(a, b *Task) bool {
	if a.Due != b.Due {
		return a.Due < b.Due
	}

	return a.Seq < b.Seq
}
