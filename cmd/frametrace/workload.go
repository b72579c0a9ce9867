package main

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/go-glx/tasks/sched"
)

type (
	workloadConfig struct {
		chunks           int
		rebuildsPerFrame int
		rebuildCost      time.Duration
		generateCost     time.Duration
		generateEvery    int
	}

	// workload mimics a voxel world: chunks ask for mesh rebuilds
	// on the frame loop, terrain is generated in background.
	workload struct {
		cfg       workloadConfig
		scheduler *sched.Scheduler
		logger    sched.Logger
		chunks    []*chunk
		frames    int
		handles   []*sched.Handle

		meshes  atomic.Int64
		terrain atomic.Int64
		saves   atomic.Int64
	}

	chunk struct {
		x, z int
		w    *workload
	}
)

func newWorkload(s *sched.Scheduler, cfg workloadConfig, logger sched.Logger) *workload {
	w := &workload{
		cfg:       cfg,
		scheduler: s,
		logger:    logger,
	}

	side := 1
	for side*side < cfg.chunks {
		side++
	}

	for i := 0; i < cfg.chunks; i++ {
		w.chunks = append(w.chunks, &chunk{x: i % side, z: i / side, w: w})
	}

	return w
}

func (w *workload) start() error {
	autosave, err := w.scheduler.RunEvery(sched.Func(func() error {
		w.saves.Add(1)
		return nil
	}).Named("world.autosave"), time.Millisecond*500)
	if err != nil {
		return err
	}

	w.handles = append(w.handles, autosave)
	return nil
}

func (w *workload) stop() {
	for _, h := range w.handles {
		h.Cancel()
	}
}

// frame is called once per rendered frame.
func (w *workload) frame() error {
	w.frames++

	for i := 0; i < w.cfg.rebuildsPerFrame && len(w.chunks) > 0; i++ {
		c := w.chunks[rand.Intn(len(w.chunks))]

		// the same chunk asked twice before the rebuild runs is rebuilt once
		if err := w.scheduler.RunLater(sched.Method(c, (*chunk).rebuildMesh)); err != nil {
			return err
		}
	}

	if w.cfg.generateEvery > 0 && w.frames%w.cfg.generateEvery == 0 {
		c := w.chunks[rand.Intn(len(w.chunks))]
		err := w.scheduler.RunAsync(sched.Method1(c, (*chunk).generate, w.cfg.generateCost))
		if err != nil {
			w.logger.Error("terrain generation not started", "err", err)
		}

		// upload once generation had time to finish
		err = w.scheduler.RunAt(sched.Method(c, (*chunk).rebuildMesh), w.cfg.generateCost*2)
		if err != nil {
			return err
		}
	}

	return nil
}

func (w *workload) rebuilt() int64 {
	return w.meshes.Load()
}

func (w *workload) generated() int64 {
	return w.terrain.Load()
}

func (c *chunk) rebuildMesh() error {
	busyWait(c.w.cfg.rebuildCost)
	c.w.meshes.Add(1)
	return nil
}

func (c *chunk) generate(cost time.Duration) error {
	busyWait(cost)
	c.w.terrain.Add(1)
	return nil
}

// busyWait burns CPU instead of sleeping, like real meshing would.
func busyWait(d time.Duration) {
	for start := time.Now(); time.Since(start) < d; {
	}
}
