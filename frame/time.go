package frame

import "time"

type (
	timeRange struct {
		from time.Time
		to   time.Time
	}

	fpsCounter struct {
		windowStart time.Time
		frames      int
		current     int
	}
)

func (tr *timeRange) start() {
	tr.from = time.Now()
}

func (tr *timeRange) finish() {
	tr.to = time.Now()
}

func (tr *timeRange) duration() time.Duration {
	return tr.to.Sub(tr.from)
}

func (tr *timeRange) timings() Timings {
	return Timings{
		StartAt:  tr.from,
		Duration: tr.duration(),
	}
}

// frame counts a frame ending at now and returns frames
// completed during the last full second.
func (c *fpsCounter) frame(now time.Time) int {
	if c.windowStart.IsZero() {
		c.windowStart = now
	}

	c.frames++

	if elapsed := now.Sub(c.windowStart); elapsed >= time.Second {
		c.current = c.frames
		c.frames = 0
		c.windowStart = now
	}

	return c.current
}
