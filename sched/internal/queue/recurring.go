package queue

import "time"

// Recurring holds tasks that are visited once per pass.
//
// A pass may be cut short by the caller (wall budget). The next pass
// starts at the first task the interrupted pass did not reach, so no
// task is starved by the ones in front of it.
type Recurring struct {
	tasks  []*Task
	cursor int
}

func NewRecurring() *Recurring {
	return &Recurring{}
}

func (q *Recurring) Add(task *Task) {
	q.tasks = append(q.tasks, task)
}

func (q *Recurring) Len() int {
	return len(q.tasks)
}

// Collect drops cancelled tasks and returns the tasks due at now,
// in visiting order starting from the cursor.
func (q *Recurring) Collect(now time.Duration) []*Task {
	q.sweep()

	total := len(q.tasks)
	if total == 0 {
		return nil
	}

	due := make([]*Task, 0, total)
	start := q.cursor % total

	for i := 0; i < total; i++ {
		task := q.tasks[(start+i)%total]
		if task.Cancelled() || !task.IsDue(now) {
			continue
		}

		due = append(due, task)
	}

	return due
}

// StoppedAt records that the current pass ended before task was run.
// A nil task means the pass was completed.
func (q *Recurring) StoppedAt(task *Task) {
	q.cursor = 0
	if task == nil {
		return
	}

	for pos, t := range q.tasks {
		if t == task {
			q.cursor = pos
			return
		}
	}
}

func (q *Recurring) sweep() {
	alive := q.tasks[:0]
	removedBefore := 0

	for pos, task := range q.tasks {
		if task.Cancelled() {
			if pos < q.cursor {
				removedBefore++
			}

			continue
		}

		alive = append(alive, task)
	}

	for i := len(alive); i < len(q.tasks); i++ {
		q.tasks[i] = nil
	}

	q.tasks = alive
	q.cursor -= removedBefore
}
