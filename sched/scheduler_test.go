package sched

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-glx/tasks/clock"
	"github.com/go-glx/tasks/config"
)

type testRecorder struct {
	mu       sync.Mutex
	executed []string
	failures []Failure
}

func (r *testRecorder) action(name string) Action {
	return Func(func() error {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.executed = append(r.executed, name)
		return nil
	}).Named(name)
}

func (r *testRecorder) keyed(name string) Action {
	return Keyed(name, func() error {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.executed = append(r.executed, name)
		return nil
	})
}

func (r *testRecorder) failing(name string) Action {
	return Func(func() error {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.executed = append(r.executed, name)
		return errors.New(name + " failed")
	}).Named(name)
}

func (r *testRecorder) hook(f Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failures = append(r.failures, f)
}

func (r *testRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string{}, r.executed...)
}

func newTestScheduler(t *testing.T, opts ...Option) (*Scheduler, *clock.Manual, *testRecorder) {
	t.Helper()

	clk := clock.NewManual(0)
	rec := &testRecorder{}

	s := New(append([]Option{
		WithClock(clk),
		WithFailureHook(rec.hook),
		WithBackground(2, 16, 0),
	}, opts...)...)
	t.Cleanup(s.Close)

	return s, clk, rec
}

func TestScheduler_immediateFIFO(t *testing.T) {
	s, _, rec := newTestScheduler(t)

	require.NoError(t, s.RunLater(rec.action("a")))
	require.NoError(t, s.RunLater(rec.action("b")))

	s.Tick()
	assert.Equal(t, []string{"a", "b"}, rec.names())
}

func TestScheduler_timedOrder(t *testing.T) {
	s, clk, rec := newTestScheduler(t)

	require.NoError(t, s.RunAt(rec.action("due10"), 10))
	require.NoError(t, s.RunAt(rec.action("due5-first"), 5))
	require.NoError(t, s.RunAt(rec.action("due5-second"), 5))

	clk.Set(4)
	s.Tick()
	assert.Empty(t, rec.names())

	clk.Set(11)
	s.Tick()
	assert.Equal(t, []string{"due5-first", "due5-second", "due10"}, rec.names())
}

func TestScheduler_negativeDelayStaysTimed(t *testing.T) {
	s, _, rec := newTestScheduler(t)

	require.NoError(t, s.RunLater(rec.action("immediate")))
	require.NoError(t, s.RunAt(rec.action("late"), -time.Second))
	require.NoError(t, s.RunAt(rec.action("now"), 0))

	s.Tick()
	assert.Equal(t, []string{"late", "now", "immediate"}, rec.names())
}

func TestScheduler_tierPrecedence(t *testing.T) {
	s, clk, rec := newTestScheduler(t)

	require.NoError(t, s.RunLater(rec.action("immediate")))
	require.NoError(t, s.RunAt(rec.action("timed"), 10))
	_, err := s.RunEvery(rec.action("recurring"), 10)
	require.NoError(t, err)

	clk.Set(10)
	s.Tick()
	assert.Equal(t, []string{"recurring", "timed", "immediate"}, rec.names())
}

func TestScheduler_countBudget(t *testing.T) {
	s, _, rec := newTestScheduler(t, WithBudget(Budget{MaxCount: 2}))

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, s.RunLater(rec.action(name)))
	}

	expected := [][]string{
		{"a", "b"},
		{"a", "b", "c", "d"},
		{"a", "b", "c", "d", "e"},
	}

	for i, want := range expected {
		report := s.Tick()
		assert.Equal(t, want, rec.names(), "tick %d", i+1)
		assert.LessOrEqual(t, report.Immediate.Invoked, 2)
	}

	assert.Equal(t, 0, s.PendingCount())
}

func TestScheduler_wallBudget(t *testing.T) {
	s, clk, rec := newTestScheduler(t, WithBudget(Budget{MaxWallTime: time.Millisecond}))

	for _, name := range []string{"a", "b", "c"} {
		name := name
		require.NoError(t, s.RunLater(Func(func() error {
			rec.mu.Lock()
			rec.executed = append(rec.executed, name)
			rec.mu.Unlock()

			clk.Advance(time.Millisecond)
			return nil
		})))
	}

	report := s.Tick()
	assert.Equal(t, StopWallTime, report.Stopped)
	assert.Equal(t, []string{"a"}, rec.names())
	assert.Equal(t, 2, s.PendingCount())
}

func TestScheduler_recurringDrift(t *testing.T) {
	s, clk, _ := newTestScheduler(t)

	fired := make([]time.Duration, 0)
	_, err := s.RunEvery(Func(func() error {
		fired = append(fired, clk.Now())
		return nil
	}), 100)
	require.NoError(t, err)

	clk.Set(100)
	s.Tick()

	// stalled for five intervals
	clk.Set(600)
	s.Tick()
	s.Tick()

	clk.Set(699)
	s.Tick()

	clk.Set(700)
	s.Tick()

	assert.Equal(t, []time.Duration{100, 600, 700}, fired)
}

func TestScheduler_duplicateSuppression(t *testing.T) {
	s, _, rec := newTestScheduler(t)
	chunk := &testChunk{}

	require.NoError(t, s.RunLater(Method(chunk, (*testChunk).Rebuild)))
	assert.Equal(t, 1, s.PendingCount())

	require.NoError(t, s.RunLater(Method(chunk, (*testChunk).Rebuild)))
	assert.Equal(t, 1, s.PendingCount())

	require.NoError(t, s.RunLater(rec.keyed("save")))
	require.NoError(t, s.RunLater(rec.keyed("save")))
	assert.Equal(t, 2, s.PendingCount())
	assert.Equal(t, uint64(2), s.Stats().Duplicates)

	s.Tick()
	assert.Equal(t, 1, chunk.rebuilt)
	assert.Equal(t, []string{"save"}, rec.names())

	// fired, so it is accepted again
	require.NoError(t, s.RunLater(Method(chunk, (*testChunk).Rebuild)))
	assert.Equal(t, 1, s.PendingCount())
}

func TestScheduler_failureIsolation(t *testing.T) {
	s, _, rec := newTestScheduler(t)

	require.NoError(t, s.RunLater(rec.action("a")))
	require.NoError(t, s.RunLater(rec.failing("b")))
	require.NoError(t, s.RunLater(rec.action("c")))

	report := s.Tick()

	assert.Equal(t, []string{"a", "b", "c"}, rec.names())
	assert.Equal(t, 1, report.Failed())
	require.Len(t, rec.failures, 1)
	assert.Equal(t, "b", rec.failures[0].Name)
	assert.Equal(t, "immediate", rec.failures[0].Kind)
	assert.EqualError(t, rec.failures[0].Err, "b failed")
}

func TestScheduler_failingRecurringKeepsRunning(t *testing.T) {
	s, clk, rec := newTestScheduler(t)

	handle, err := s.RunEvery(rec.failing("housekeeping"), 10)
	require.NoError(t, err)

	for now := time.Duration(10); now <= 30; now += 10 {
		clk.Set(now)
		s.Tick()
	}

	assert.Len(t, rec.names(), 3)
	require.Len(t, rec.failures, 3)
	assert.Equal(t, handle.ID().String(), rec.failures[0].ID)
	assert.Equal(t, 1, s.Stats().Recurring)
}

func TestScheduler_cancelRecurring(t *testing.T) {
	s, clk, rec := newTestScheduler(t)

	handle, err := s.RunEvery(rec.action("tick"), 10)
	require.NoError(t, err)

	clk.Set(10)
	s.Tick()

	handle.Cancel()
	handle.Cancel()
	assert.True(t, handle.Cancelled())

	clk.Set(20)
	s.Tick()

	assert.Equal(t, []string{"tick"}, rec.names())
	assert.Equal(t, 0, s.Stats().Recurring)
}

func TestScheduler_asyncIsolation(t *testing.T) {
	s, clk, rec := newTestScheduler(t)

	block := make(chan struct{})
	defer close(block)

	started := make(chan struct{})
	require.NoError(t, s.RunAsync(Func(func() error {
		close(started)
		<-block
		return nil
	})))
	<-started

	require.NoError(t, s.RunLater(rec.action("immediate")))
	require.NoError(t, s.RunAt(rec.action("timed"), 5))
	clk.Set(5)

	done := make(chan struct{})
	go func() {
		s.Tick()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tick blocked by async task")
	}

	assert.Equal(t, []string{"timed", "immediate"}, rec.names())
	assert.Equal(t, uint64(1), s.Stats().Async)
}

func TestScheduler_asyncFailureReported(t *testing.T) {
	s, _, rec := newTestScheduler(t)

	require.NoError(t, s.RunAsync(Func(func() error {
		panic("generator crashed")
	}).Named("generate")))

	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()

		return len(rec.failures) == 1
	}, time.Second, time.Millisecond*5)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	assert.Equal(t, "async", rec.failures[0].Kind)
	assert.ErrorIs(t, rec.failures[0].Err, ErrPanic)
}

func TestScheduler_submissionErrors(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	assert.ErrorIs(t, s.RunLater(Func(nil)), ErrNilAction)
	assert.ErrorIs(t, s.RunAt(Action{}, time.Second), ErrNilAction)
	assert.ErrorIs(t, s.RunAsync(Keyed(nil, func() error { return nil })), ErrUnhashableKey)

	_, err := s.RunEvery(Func(func() error { return nil }), 0)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	assert.Equal(t, 0, s.PendingCount())

	s.Close()
	assert.ErrorIs(t, s.RunLater(Func(func() error { return nil })), ErrClosed)
	assert.ErrorIs(t, s.RunAsync(Func(func() error { return nil })), ErrClosed)
}

func TestScheduler_pendingCountExcludesRecurring(t *testing.T) {
	s, _, rec := newTestScheduler(t)

	require.NoError(t, s.RunLater(rec.action("a")))
	require.NoError(t, s.RunAt(rec.action("b"), time.Hour))
	_, err := s.RunEvery(rec.action("c"), time.Second)
	require.NoError(t, err)

	assert.Equal(t, 2, s.PendingCount())
}

func TestScheduler_settings(t *testing.T) {
	settings := config.Default()
	settings.SetMaxTasksPerTick(1)
	settings.ThrottleTimed = false

	s, _, _ := newTestScheduler(t, WithSettings(settings))

	assert.Equal(t, Budget{
		MaxWallTime:   settings.MaxTickTime,
		MaxCount:      config.MinTasksPerTick,
		ThrottleTimed: false,
	}, s.Budget())
}

func TestScheduler_stats(t *testing.T) {
	s, _, rec := newTestScheduler(t)

	require.NoError(t, s.RunLater(rec.action("a")))
	require.NoError(t, s.RunLater(rec.failing("b")))

	s.Tick()
	s.Tick()

	st := s.Stats()
	assert.Equal(t, uint64(2), st.Ticks)
	assert.Equal(t, uint64(2), st.Invoked)
	assert.Equal(t, uint64(1), st.Failed)
	assert.Equal(t, 0, st.LastTick.Invoked())
}

func TestScheduler_defaultBudget(t *testing.T) {
	s := New()
	t.Cleanup(s.Close)

	def := config.Default()
	assert.Equal(t, Budget{
		MaxWallTime:   def.MaxTickTime,
		MaxCount:      def.MaxTasksPerTick,
		ThrottleTimed: def.ThrottleTimed,
	}, s.Budget())
}

func TestScheduler_resubmitRunsNextTick(t *testing.T) {
	s := New()
	t.Cleanup(s.Close)

	runs := 0
	var rebuild Action
	rebuild = Keyed("rebuild", func() error {
		runs++
		return s.RunLater(rebuild)
	})
	require.NoError(t, s.RunLater(rebuild))

	for i := 1; i <= 3; i++ {
		report := s.Tick()
		assert.Equal(t, 1, report.Immediate.Invoked)
		assert.Equal(t, i, runs)
	}

	assert.Equal(t, 1, s.PendingCount())
}

func TestScheduler_zeroDelayFromTimedRunsNextTick(t *testing.T) {
	s, _, rec := newTestScheduler(t)

	require.NoError(t, s.RunAt(Func(func() error {
		rec.mu.Lock()
		rec.executed = append(rec.executed, "first")
		rec.mu.Unlock()

		return s.RunAt(rec.action("follow-up"), 0)
	}), 0))

	s.Tick()
	assert.Equal(t, []string{"first"}, rec.names())
	assert.Equal(t, 1, s.PendingCount())

	s.Tick()
	assert.Equal(t, []string{"first", "follow-up"}, rec.names())
}

func TestScheduler_hugeDelaySaturates(t *testing.T) {
	s, clk, rec := newTestScheduler(t)
	clk.Set(time.Hour)

	require.NoError(t, s.RunAt(rec.action("never"), time.Duration(math.MaxInt64)))
	_, err := s.RunEvery(rec.action("never-recurring"), time.Duration(math.MaxInt64))
	require.NoError(t, err)

	clk.Set(time.Hour * 24 * 365)
	s.Tick()

	assert.Empty(t, rec.names())
	assert.Equal(t, 1, s.PendingCount())
}

func TestDueAfter(t *testing.T) {
	tests := []struct {
		name string
		now  time.Duration
		d    time.Duration
		want time.Duration
	}{
		{name: "plain", now: 10, d: 5, want: 15},
		{name: "negative delay", now: 10, d: -20, want: -10},
		{name: "saturates up", now: time.Hour, d: math.MaxInt64, want: math.MaxInt64},
		{name: "saturates down", now: -time.Hour, d: math.MinInt64, want: math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dueAfter(tt.now, tt.d))
		})
	}
}
