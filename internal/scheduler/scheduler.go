package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/notifier"
	"github.com/aleister1102/driftwatch/internal/store"
	"github.com/aleister1102/driftwatch/internal/telemetry"
	"github.com/aleister1102/driftwatch/internal/worker"

	"github.com/rs/zerolog"
)

// Backpressure reports whether the process is under resource pressure.
// The resource limiter implements it; a nil source means no limiting.
type Backpressure interface {
	OverThreshold() bool
}

// Scheduler is the top-level loop: it scans for due watches, applies
// dedup, proxy throttling, and backpressure, and feeds the check queue.
// It owns the worker pool and notification consumer lifecycles.
type Scheduler struct {
	cfg       *config.GlobalConfig
	store     store.WatchStore
	engine    *Engine
	evaluator *DueEvaluator
	pool      worker.Pool
	consumer  *notifier.Consumer
	limiter   Backpressure
	logger    zerolog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu     sync.Mutex
	active bool
}

// NewScheduler wires the scheduler loop.
func NewScheduler(
	cfg *config.GlobalConfig,
	st store.WatchStore,
	engine *Engine,
	pool worker.Pool,
	consumer *notifier.Consumer,
	limiter Backpressure,
	logger zerolog.Logger,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:        cfg,
		store:      st,
		engine:     engine,
		evaluator:  NewDueEvaluator(cfg.Scheduler, st, logger),
		pool:       pool,
		consumer:   consumer,
		limiter:    limiter,
		logger:     logger.With().Str("component", "Scheduler").Logger(),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Engine exposes the shared scheduling state for the API layer.
func (s *Scheduler) Engine() *Engine { return s.engine }

// Start launches the worker pool, the notification consumer, and the scan
// loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.mu.Unlock()

	s.pool.Start(s.cfg.Worker.Count)
	s.consumer.Start()

	s.wg.Add(1)
	go s.loop()
	s.logger.Info().
		Int("workers", s.cfg.Worker.Count).
		Str("strategy", s.cfg.Worker.PoolStrategy).
		Int("scan_interval_seconds", s.cfg.Scheduler.ScanIntervalSeconds).
		Msg("Scheduler started")
}

// Stop halts the scan loop and shuts down the pool and consumer. Graceful
// shutdown lets in-flight checks reach their finalizer first.
func (s *Scheduler) Stop(graceful bool) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.mu.Unlock()

	s.cancelFunc()
	s.wg.Wait()

	s.pool.Shutdown(graceful)
	s.consumer.Stop()
	s.engine.Queue().Close()
	s.logger.Info().Bool("graceful", graceful).Msg("Scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	interval := time.Duration(s.cfg.Scheduler.ScanIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Scan(time.Now())
		}
	}
}

// Scan runs one due-set evaluation and dispatch pass. Exported so manual
// triggers and tests can drive a cycle without waiting for the ticker.
func (s *Scheduler) Scan(now time.Time) {
	q := s.engine.Queue()
	defer telemetry.QueueDepth.Set(float64(q.Len()))

	// Scheduler-originated work respects the queue ceiling and the
	// resource limiter; user-originated items bypass both via
	// EnqueueManual.
	if q.Len() >= s.cfg.Scheduler.QueueCeiling {
		telemetry.BackpressureSkips.Inc()
		s.logger.Warn().Int("queue_len", q.Len()).Msg("Queue ceiling reached, pausing dispatch")
		return
	}
	if s.limiter != nil && s.limiter.OverThreshold() {
		telemetry.BackpressureSkips.Inc()
		s.logger.Warn().Msg("Resource limiter active, pausing dispatch")
		return
	}

	watches, err := s.store.ListWatches()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list watches")
		return
	}

	due := s.evaluator.DueWatches(now, watches)
	dispatched := 0
	for _, w := range due {
		if q.Len() >= s.cfg.Scheduler.QueueCeiling {
			telemetry.BackpressureSkips.Inc()
			break
		}
		if !s.engine.CanDispatch(w.UUID) {
			continue
		}
		if !s.engine.proxyReady(w, now) {
			continue
		}
		if s.engine.EnqueueScheduled(w, now) {
			dispatched++
		}
	}

	if dispatched > 0 {
		s.logger.Debug().Int("due", len(due)).Int("dispatched", dispatched).Msg("Scan complete")
	}
}
