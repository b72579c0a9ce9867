package clock

import (
	"sync"
	"time"
)

// Clock supplies monotonic time as an offset from the clock's own epoch.
// Values never decrease.
type Clock interface {
	Now() time.Duration
}

type Monotonic struct {
	start time.Time
}

// NewMonotonic returns a clock backed by the runtime monotonic reading.
// Its epoch is the moment of creation.
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

func (m *Monotonic) Now() time.Duration {
	return time.Since(m.start)
}

// Manual is a clock that moves only when told to.
// Useful for unit tests and replaying recorded timelines.
type Manual struct {
	mu  sync.Mutex
	now time.Duration
}

func NewManual(start time.Duration) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.now
}

// Set moves the clock to t. Moving backwards is ignored.
func (m *Manual) Set(t time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t > m.now {
		m.now = t
	}
}

// Advance moves the clock forward by d. Negative values are ignored.
func (m *Manual) Advance(d time.Duration) {
	if d <= 0 {
		return
	}

	m.mu.Lock()
	m.now += d
	m.mu.Unlock()
}
