package scheduler

import (
	"time"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/queue"
	"github.com/aleister1102/driftwatch/internal/store"
	"github.com/aleister1102/driftwatch/internal/telemetry"
	"github.com/aleister1102/driftwatch/internal/worker"

	"github.com/rs/zerolog"
)

// Engine holds the mutable scheduling state shared between the ticker
// loop, the worker pool, and the pipeline: the check queue, the
// running-set, and the proxy-throttle table. It is constructed once and
// passed by reference; nothing here lives in a package-level variable.
//
// The proxy table is written only from the single scheduler loop, so it
// carries no lock.
type Engine struct {
	cfg     *config.GlobalConfig
	store   store.WatchStore
	queue   *queue.PriorityQueue
	running *worker.RunningSet
	logger  zerolog.Logger

	proxyLastUsed map[string]time.Time
}

// NewEngine constructs the shared scheduling state.
func NewEngine(cfg *config.GlobalConfig, st store.WatchStore, q *queue.PriorityQueue, running *worker.RunningSet, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:           cfg,
		store:         st,
		queue:         q,
		running:       running,
		logger:        logger.With().Str("component", "SchedulerEngine").Logger(),
		proxyLastUsed: make(map[string]time.Time),
	}
}

// Queue exposes the check queue for status reporting.
func (e *Engine) Queue() *queue.PriorityQueue { return e.queue }

// Running exposes the running-set for status reporting.
func (e *Engine) Running() *worker.RunningSet { return e.running }

// CanDispatch reports whether the UUID is neither queued nor running.
func (e *Engine) CanDispatch(uuid string) bool {
	return !e.queue.Contains(uuid) && !e.running.Contains(uuid)
}

// EnqueueScheduled pushes a scheduler-originated item. The watch's pending
// jitter is cleared so the next cycle draws a fresh one. Returns false when
// the UUID was already queued or running.
func (e *Engine) EnqueueScheduled(w *models.Watch, now time.Time) bool {
	if !e.CanDispatch(w.UUID) {
		return false
	}
	if w.JitterSeconds != 0 {
		if err := e.store.UpdateWatch(w.UUID, models.WatchUpdate{
			JitterSeconds: models.Float64Ptr(0),
		}); err != nil {
			e.logger.Warn().Err(err).Str("uuid", w.UUID).Msg("Failed to clear jitter")
		}
	}
	e.queue.Push(models.SchedulerItem(w.UUID, now.Unix()))
	telemetry.QueueDepth.Set(float64(e.queue.Len()))
	return true
}

// EnqueueManual pushes a user-originated item at immediate priority. It is
// exempt from the queue ceiling but still subject to dedup. Returns false
// when the UUID was already queued or running.
func (e *Engine) EnqueueManual(uuid string) bool {
	if !e.CanDispatch(uuid) {
		return false
	}
	e.queue.Push(models.ImmediateItem(uuid))
	telemetry.QueueDepth.Set(float64(e.queue.Len()))
	return true
}

// ResolveProxy picks the proxy for a watch: per-watch override, then the
// global default, then the first configured proxy. Read-only, safe from
// worker goroutines.
func (e *Engine) ResolveProxy(w *models.Watch) *models.ProxyDescriptor {
	if w != nil && w.ProxyName != "" {
		if p := e.cfg.ProxyByName(w.ProxyName); p != nil {
			return p
		}
	}
	if e.cfg.DefaultProxy != "" {
		if p := e.cfg.ProxyByName(e.cfg.DefaultProxy); p != nil {
			return p
		}
	}
	if len(e.cfg.Proxies) > 0 {
		return &e.cfg.Proxies[0]
	}
	return nil
}

// proxyReady reports whether the watch's proxy has cooled down since its
// last dispatch, and records the dispatch time when it has. Called only
// from the scheduler loop.
func (e *Engine) proxyReady(w *models.Watch, now time.Time) bool {
	p := e.ResolveProxy(w)
	if p == nil || p.ReuseTimeMinimum <= 0 {
		return true
	}
	last, seen := e.proxyLastUsed[p.Name]
	if seen && now.Sub(last) < time.Duration(p.ReuseTimeMinimum)*time.Second {
		return false
	}
	e.proxyLastUsed[p.Name] = now
	return true
}
