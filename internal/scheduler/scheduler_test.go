package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/queue"
	"github.com/aleister1102/driftwatch/internal/worker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWatchStore struct {
	mu      sync.Mutex
	watches map[string]*models.Watch
}

func newFakeWatchStore(watches ...*models.Watch) *fakeWatchStore {
	st := &fakeWatchStore{watches: make(map[string]*models.Watch)}
	for _, w := range watches {
		st.watches[w.UUID] = w
	}
	return st
}

func (s *fakeWatchStore) GetWatch(uuid string) (*models.Watch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watches[uuid]
	if !ok {
		return nil, models.ErrWatchNotFound
	}
	clone := *w
	return &clone, nil
}

func (s *fakeWatchStore) ListWatches() ([]*models.Watch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Watch, 0, len(s.watches))
	for _, w := range s.watches {
		clone := *w
		out = append(out, &clone)
	}
	return out, nil
}

func (s *fakeWatchStore) CreateWatch(w *models.Watch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watches[w.UUID] = w
	return nil
}

func (s *fakeWatchStore) UpdateWatch(uuid string, update models.WatchUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watches[uuid]
	if !ok {
		return models.ErrWatchNotFound
	}
	update.ApplyTo(w)
	return nil
}

func (s *fakeWatchStore) DeleteWatch(uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watches, uuid)
	return nil
}

type overLimiter struct{ over bool }

func (l overLimiter) OverThreshold() bool { return l.over }

func watchCheckedAt(uuid string, lastChecked time.Time, intervalSecs int) *models.Watch {
	return &models.Watch{
		UUID:            uuid,
		URL:             "http://example.test/" + uuid,
		IntervalSeconds: intervalSecs,
		LastChecked:     lastChecked,
	}
}

func newTestEngine(cfg *config.GlobalConfig, st *fakeWatchStore) *Engine {
	return NewEngine(cfg, st, queue.NewPriorityQueue(), worker.NewRunningSet(), zerolog.Nop())
}

func TestDueWatchesExcludesPaused(t *testing.T) {
	now := time.Now()
	paused := watchCheckedAt("paused", now.Add(-time.Hour), 60)
	paused.Paused = true
	active := watchCheckedAt("active", now.Add(-time.Hour), 60)
	st := newFakeWatchStore(paused, active)

	ev := NewDueEvaluator(config.NewDefaultSchedulerConfig(), st, zerolog.Nop())
	watches, _ := st.ListWatches()
	due := ev.DueWatches(now, watches)

	require.Len(t, due, 1)
	assert.Equal(t, "active", due[0].UUID)
}

func TestDueWatchesExcludesNotYetDue(t *testing.T) {
	now := time.Now()
	st := newFakeWatchStore(
		watchCheckedAt("fresh", now.Add(-30*time.Second), 60),
		watchCheckedAt("stale", now.Add(-61*time.Second), 60),
	)

	ev := NewDueEvaluator(config.NewDefaultSchedulerConfig(), st, zerolog.Nop())
	watches, _ := st.ListWatches()
	due := ev.DueWatches(now, watches)

	require.Len(t, due, 1)
	assert.Equal(t, "stale", due[0].UUID)
}

func TestDueWatchesEnforcesMinimumFloor(t *testing.T) {
	now := time.Now()
	// Interval of 5s is below the 20s floor; at 10s elapsed the watch
	// must still be held back.
	st := newFakeWatchStore(watchCheckedAt("eager", now.Add(-10*time.Second), 5))

	ev := NewDueEvaluator(config.NewDefaultSchedulerConfig(), st, zerolog.Nop())
	watches, _ := st.ListWatches()
	assert.Empty(t, ev.DueWatches(now, watches))

	watches, _ = st.ListWatches()
	assert.Len(t, ev.DueWatches(now.Add(15*time.Second), watches), 1)
}

func TestDueWatchesAssignsJitterOnce(t *testing.T) {
	now := time.Now()
	w := watchCheckedAt("jittery", now.Add(-2*time.Hour), 3600)
	st := newFakeWatchStore(w)

	cfg := config.NewDefaultSchedulerConfig()
	cfg.JitterSeconds = 10
	ev := NewDueEvaluator(cfg, st, zerolog.Nop())

	watches, _ := st.ListWatches()
	ev.DueWatches(now, watches)

	stored, _ := st.GetWatch("jittery")
	first := stored.JitterSeconds
	assert.NotZero(t, first)
	assert.LessOrEqual(t, first, 10.0)
	assert.GreaterOrEqual(t, first, -10.0)

	// A second scan must not redraw.
	watches, _ = st.ListWatches()
	ev.DueWatches(now.Add(time.Second), watches)
	stored, _ = st.GetWatch("jittery")
	assert.Equal(t, first, stored.JitterSeconds)
}

func TestEngineDedupIsIdempotent(t *testing.T) {
	cfg := config.NewDefaultGlobalConfig()
	st := newFakeWatchStore(watchCheckedAt("a", time.Time{}, 60))
	engine := newTestEngine(cfg, st)
	w, _ := st.GetWatch("a")

	assert.True(t, engine.EnqueueScheduled(w, time.Now()))
	assert.False(t, engine.EnqueueScheduled(w, time.Now()))
	assert.False(t, engine.EnqueueManual("a"))
	assert.Equal(t, 1, engine.Queue().Len())

	// Simulate the worker claiming it: still not dispatchable.
	item, ok := engine.Queue().PopBlocking(time.Second)
	require.True(t, ok)
	engine.Running().Claim(item.UUID)
	assert.False(t, engine.CanDispatch("a"))
	assert.False(t, engine.EnqueueManual("a"))

	engine.Running().Release("a")
	assert.True(t, engine.CanDispatch("a"))
}

func TestEngineClearsJitterOnEnqueue(t *testing.T) {
	cfg := config.NewDefaultGlobalConfig()
	w := watchCheckedAt("a", time.Time{}, 60)
	w.JitterSeconds = 4.2
	st := newFakeWatchStore(w)
	engine := newTestEngine(cfg, st)

	require.True(t, engine.EnqueueScheduled(w, time.Now()))
	stored, _ := st.GetWatch("a")
	assert.Zero(t, stored.JitterSeconds)
}

func TestEngineProxyReuseSpacing(t *testing.T) {
	cfg := config.NewDefaultGlobalConfig()
	cfg.Proxies = []models.ProxyDescriptor{{Name: "shared", URL: "http://proxy.test:8080", ReuseTimeMinimum: 30}}
	cfg.DefaultProxy = "shared"

	now := time.Now()
	a := watchCheckedAt("a", now.Add(-time.Hour), 60)
	b := watchCheckedAt("b", now.Add(-time.Hour), 60)
	st := newFakeWatchStore(a, b)
	engine := newTestEngine(cfg, st)

	assert.True(t, engine.proxyReady(a, now))
	assert.False(t, engine.proxyReady(b, now.Add(10*time.Second)))
	assert.True(t, engine.proxyReady(b, now.Add(31*time.Second)))
}

func TestScanDispatchesDueWatch(t *testing.T) {
	now := time.Now()
	cfg := config.NewDefaultGlobalConfig()
	w := watchCheckedAt("a", now.Add(-61*time.Second), 60)
	st := newFakeWatchStore(w)
	engine := newTestEngine(cfg, st)

	s := NewScheduler(cfg, st, engine, nil, nil, nil, zerolog.Nop())
	s.Scan(now)

	item, ok := engine.Queue().PopBlocking(time.Second)
	require.True(t, ok)
	assert.Equal(t, "a", item.UUID)
	assert.Equal(t, now.Unix(), item.Priority)
}

func TestScanSkipsPausedAcrossCycles(t *testing.T) {
	now := time.Now()
	cfg := config.NewDefaultGlobalConfig()
	w := watchCheckedAt("b", now.Add(-time.Hour), 60)
	w.Paused = true
	st := newFakeWatchStore(w)
	engine := newTestEngine(cfg, st)

	s := NewScheduler(cfg, st, engine, nil, nil, nil, zerolog.Nop())
	for i := 0; i < 10; i++ {
		s.Scan(now.Add(time.Duration(i) * time.Second))
	}
	assert.Equal(t, 0, engine.Queue().Len())
}

func TestScanCeilingBlocksSchedulerItemsNotManual(t *testing.T) {
	now := time.Now()
	cfg := config.NewDefaultGlobalConfig()
	cfg.Scheduler.QueueCeiling = 2
	st := newFakeWatchStore(watchCheckedAt("due", now.Add(-time.Hour), 60))
	engine := newTestEngine(cfg, st)

	engine.Queue().Push(models.SchedulerItem("filler-1", now.Unix()))
	engine.Queue().Push(models.SchedulerItem("filler-2", now.Unix()))

	s := NewScheduler(cfg, st, engine, nil, nil, nil, zerolog.Nop())
	s.Scan(now)
	assert.False(t, engine.Queue().Contains("due"))

	// Manual rechecks bypass the ceiling.
	assert.True(t, engine.EnqueueManual("due"))
	assert.True(t, engine.Queue().Contains("due"))
}

func TestScanPausesUnderResourcePressure(t *testing.T) {
	now := time.Now()
	cfg := config.NewDefaultGlobalConfig()
	st := newFakeWatchStore(watchCheckedAt("due", now.Add(-time.Hour), 60))
	engine := newTestEngine(cfg, st)

	s := NewScheduler(cfg, st, engine, nil, nil, overLimiter{over: true}, zerolog.Nop())
	s.Scan(now)
	assert.Equal(t, 0, engine.Queue().Len())

	s = NewScheduler(cfg, st, engine, nil, nil, overLimiter{over: false}, zerolog.Nop())
	s.Scan(now)
	assert.Equal(t, 1, engine.Queue().Len())
}

func TestScanProxySpacingAcrossWatches(t *testing.T) {
	now := time.Now()
	cfg := config.NewDefaultGlobalConfig()
	cfg.Proxies = []models.ProxyDescriptor{{Name: "shared", URL: "http://proxy.test:8080", ReuseTimeMinimum: 30}}
	cfg.DefaultProxy = "shared"

	st := newFakeWatchStore(
		watchCheckedAt("a", now.Add(-time.Hour), 60),
		watchCheckedAt("b", now.Add(-time.Hour), 60),
	)
	engine := newTestEngine(cfg, st)
	s := NewScheduler(cfg, st, engine, nil, nil, nil, zerolog.Nop())

	s.Scan(now)
	assert.Equal(t, 1, engine.Queue().Len())

	// Ten seconds later the second watch is still held by proxy spacing.
	s.Scan(now.Add(10 * time.Second))
	assert.Equal(t, 1, engine.Queue().Len())

	s.Scan(now.Add(31 * time.Second))
	assert.Equal(t, 2, engine.Queue().Len())
}
