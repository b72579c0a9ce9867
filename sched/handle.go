package sched

import (
	"github.com/google/uuid"

	"github.com/go-glx/tasks/sched/internal/queue"
)

// Handle controls a recurring task.
type Handle struct {
	id   uuid.UUID
	task *queue.Task
}

func newHandle(task *queue.Task) *Handle {
	id := uuid.New()
	task.ID = id.String()

	return &Handle{
		id:   id,
		task: task,
	}
}

// ID identifies the recurring task in logs.
func (h *Handle) ID() uuid.UUID {
	return h.id
}

// Cancel stops future runs. A run already in progress completes.
// Safe to call more than once and from any goroutine.
func (h *Handle) Cancel() {
	h.task.Cancel()
}

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool {
	return h.task.Cancelled()
}
