package supervisor

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vergepresence/internal/traffic"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stats struct {
	monitors  int
	maxActive int
	overlap   bool
	badTicks  int
	ticks     int
	started   int
	stopped   int
}

// recorder tracks live monitors and overlapping refreshes across generations.
type recorder struct {
	mu       sync.Mutex
	stats    stats
	inFlight int
	err      error
}

func (r *recorder) Run(ctx context.Context) {
	r.mu.Lock()
	r.stats.monitors++
	r.stats.started++
	if r.stats.monitors > r.stats.maxActive {
		r.stats.maxActive = r.stats.monitors
	}
	r.mu.Unlock()

	<-ctx.Done()

	r.mu.Lock()
	r.stats.monitors--
	r.stats.stopped++
	r.mu.Unlock()
}

func (r *recorder) Refresh(ctx context.Context) error {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > 1 {
		r.stats.overlap = true
	}
	// a tick must never see a monitor from another generation
	if r.stats.monitors > 1 {
		r.stats.badTicks++
	}
	r.stats.ticks++
	err := r.err
	r.mu.Unlock()

	time.Sleep(time.Millisecond)

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()
	return err
}

func (r *recorder) snapshot() stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func newTestSupervisor(enabled *atomic.Bool) (*Supervisor, *recorder, *traffic.Rate) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	rec := &recorder{}
	rate := &traffic.Rate{}
	s := New(rec, rec, func(context.Context) bool { return enabled.Load() }, rate, logger)
	s.SetInterval(5 * time.Millisecond)
	return s, rec, rate
}

func TestStartTwiceLeavesOneGeneration(t *testing.T) {
	enabled := &atomic.Bool{}
	enabled.Store(true)
	s, rec, _ := newTestSupervisor(enabled)
	defer s.Stop()

	s.Start()
	require.Eventually(t, func() bool { return rec.snapshot().ticks >= 3 }, 2*time.Second, time.Millisecond)
	s.Start()

	// the first generation is fully gone once Start returns
	assert.Equal(t, 1, rec.snapshot().stopped)

	require.Eventually(t, func() bool { return rec.snapshot().ticks >= 6 }, 2*time.Second, time.Millisecond)

	snap := rec.snapshot()
	assert.Equal(t, 2, snap.started)
	assert.Equal(t, 1, snap.maxActive)
	assert.False(t, snap.overlap)
	assert.Zero(t, snap.badTicks)
	assert.Equal(t, uint64(2), s.Generation())
	assert.True(t, s.Running())
}

func TestStopResetsRateOnly(t *testing.T) {
	enabled := &atomic.Bool{}
	enabled.Store(true)
	s, rec, rate := newTestSupervisor(enabled)

	s.Start()
	rate.Store(100, 200)
	s.Stop()

	up, down := rate.Load()
	assert.Zero(t, up)
	assert.Zero(t, down)
	assert.False(t, s.Running())
	assert.Equal(t, 0, rec.snapshot().monitors)

	// idempotent
	s.Stop()
	assert.False(t, s.Running())
}

func TestLoopExitsWhenDisabled(t *testing.T) {
	enabled := &atomic.Bool{}
	enabled.Store(true)
	s, rec, _ := newTestSupervisor(enabled)
	defer s.Stop()

	s.Start()
	require.Eventually(t, func() bool { return rec.snapshot().ticks >= 1 }, 2*time.Second, time.Millisecond)

	enabled.Store(false)
	require.Eventually(t, func() bool { return !s.Running() }, 2*time.Second, time.Millisecond)
	assert.Equal(t, 0, rec.snapshot().monitors, "monitor should be cancelled with its loop")

	// a self-terminated generation can be replaced
	enabled.Store(true)
	s.Start()
	assert.True(t, s.Running())
	assert.Equal(t, uint64(2), s.Generation())
}

func TestRefreshErrorsDoNotStopLoop(t *testing.T) {
	enabled := &atomic.Bool{}
	enabled.Store(true)
	s, rec, _ := newTestSupervisor(enabled)
	defer s.Stop()

	rec.mu.Lock()
	rec.err = errors.New("controller down")
	rec.mu.Unlock()

	s.Start()
	require.Eventually(t, func() bool { return rec.snapshot().ticks >= 5 }, 2*time.Second, time.Millisecond)
	assert.True(t, s.Running())
}

func TestConcurrentStartStop(t *testing.T) {
	enabled := &atomic.Bool{}
	enabled.Store(true)
	s, rec, _ := newTestSupervisor(enabled)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 0 {
				s.Stop()
			} else {
				s.Start()
			}
		}(i)
	}
	wg.Wait()
	s.Stop()

	snap := rec.snapshot()
	assert.Equal(t, 1, snap.maxActive)
	assert.Equal(t, 0, snap.monitors)
	assert.False(t, snap.overlap)
}
