package worker

import (
	"context"
	"runtime"
	"sync"

	"github.com/aleister1102/driftwatch/internal/queue"
	"github.com/aleister1102/driftwatch/internal/telemetry"

	"github.com/rs/zerolog"
)

// ThreadPool runs one long-lived goroutine per worker slot, each pinned
// to an OS thread. Workers repeatedly pop from the queue and run the
// check inline.
type ThreadPool struct {
	queue   *queue.PriorityQueue
	running *RunningSet
	check   CheckFunc
	logger  zerolog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu     sync.Mutex
	count  int
	retire chan struct{}
}

// NewThreadPool creates a thread-strategy pool.
func NewThreadPool(q *queue.PriorityQueue, running *RunningSet, check CheckFunc, logger zerolog.Logger) *ThreadPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &ThreadPool{
		queue:      q,
		running:    running,
		check:      check,
		logger:     logger.With().Str("component", "ThreadPool").Logger(),
		ctx:        ctx,
		cancelFunc: cancel,
		retire:     make(chan struct{}, 64),
	}
}

// Start launches n workers.
func (tp *ThreadPool) Start(n int) {
	for i := 0; i < n; i++ {
		tp.AddWorker()
	}
	tp.logger.Info().Int("workers", n).Msg("Thread pool started")
}

// AddWorker launches one more worker goroutine.
func (tp *ThreadPool) AddWorker() {
	tp.mu.Lock()
	tp.count++
	id := tp.count
	tp.mu.Unlock()

	tp.wg.Add(1)
	go tp.workerLoop(id)
}

// RemoveWorker retires one worker after its current check finishes.
func (tp *ThreadPool) RemoveWorker() {
	tp.mu.Lock()
	if tp.count == 0 {
		tp.mu.Unlock()
		return
	}
	tp.count--
	tp.mu.Unlock()

	select {
	case tp.retire <- struct{}{}:
	default:
	}
}

// WorkerCount returns the current worker count.
func (tp *ThreadPool) WorkerCount() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.count
}

// RunningUUIDs returns UUIDs with a check in flight.
func (tp *ThreadPool) RunningUUIDs() []string {
	return tp.running.Snapshot()
}

// IsRunning reports whether the UUID has a check in flight.
func (tp *ThreadPool) IsRunning(uuid string) bool {
	return tp.running.Contains(uuid)
}

// Shutdown stops all workers. Graceful shutdown waits for in-flight
// checks.
func (tp *ThreadPool) Shutdown(graceful bool) {
	tp.cancelFunc()
	if graceful {
		tp.wg.Wait()
	}
	tp.logger.Info().Bool("graceful", graceful).Msg("Thread pool stopped")
}

func (tp *ThreadPool) workerLoop(id int) {
	defer tp.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	log := tp.logger.With().Int("worker_id", id).Logger()
	log.Debug().Msg("Worker started")

	for {
		select {
		case <-tp.ctx.Done():
			log.Debug().Msg("Worker stopped")
			return
		case <-tp.retire:
			log.Debug().Msg("Worker retired")
			return
		default:
		}

		item, ok := tp.queue.PopBlocking(popTimeout)
		if !ok {
			continue
		}

		if !tp.running.Claim(item.UUID) {
			// Another worker already owns this UUID.
			continue
		}
		telemetry.RunningChecks.Inc()
		func() {
			defer func() {
				tp.running.Release(item.UUID)
				telemetry.RunningChecks.Dec()
			}()
			tp.check(tp.ctx, item)
		}()
	}
}
