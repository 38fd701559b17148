package worker

import (
	"context"
	"sync"

	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/queue"
	"github.com/aleister1102/driftwatch/internal/telemetry"

	"github.com/rs/zerolog"
)

// TaskPool runs a single dispatcher goroutine that pops queue items and
// spawns a short-lived goroutine per check, bounded by a resizable
// semaphore. Shrinking capacity never interrupts in-flight checks.
type TaskPool struct {
	queue   *queue.PriorityQueue
	running *RunningSet
	check   CheckFunc
	logger  zerolog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	dispatchWG sync.WaitGroup
	taskWG     sync.WaitGroup

	mu       sync.Mutex
	capacity int
	active   int
	slotFree chan struct{}
}

// NewTaskPool creates a task-strategy pool.
func NewTaskPool(q *queue.PriorityQueue, running *RunningSet, check CheckFunc, logger zerolog.Logger) *TaskPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskPool{
		queue:      q,
		running:    running,
		check:      check,
		logger:     logger.With().Str("component", "TaskPool").Logger(),
		ctx:        ctx,
		cancelFunc: cancel,
		slotFree:   make(chan struct{}, 1),
	}
}

// Start sets capacity and launches the dispatcher.
func (tp *TaskPool) Start(n int) {
	tp.mu.Lock()
	tp.capacity = n
	tp.mu.Unlock()

	tp.dispatchWG.Add(1)
	go tp.dispatchLoop()
	tp.logger.Info().Int("workers", n).Msg("Task pool started")
}

// AddWorker raises the semaphore capacity by one.
func (tp *TaskPool) AddWorker() {
	tp.mu.Lock()
	tp.capacity++
	tp.mu.Unlock()
	tp.notifySlot()
}

// RemoveWorker lowers the semaphore capacity by one. Active checks keep
// running; the dispatcher simply stops acquiring slots above the new
// capacity.
func (tp *TaskPool) RemoveWorker() {
	tp.mu.Lock()
	if tp.capacity > 0 {
		tp.capacity--
	}
	tp.mu.Unlock()
}

// WorkerCount returns the semaphore capacity.
func (tp *TaskPool) WorkerCount() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.capacity
}

// RunningUUIDs returns UUIDs with a check in flight.
func (tp *TaskPool) RunningUUIDs() []string {
	return tp.running.Snapshot()
}

// IsRunning reports whether the UUID has a check in flight.
func (tp *TaskPool) IsRunning(uuid string) bool {
	return tp.running.Contains(uuid)
}

// Shutdown stops the dispatcher. Graceful shutdown waits for in-flight
// checks.
func (tp *TaskPool) Shutdown(graceful bool) {
	tp.cancelFunc()
	tp.dispatchWG.Wait()
	if graceful {
		tp.taskWG.Wait()
	}
	tp.logger.Info().Bool("graceful", graceful).Msg("Task pool stopped")
}

func (tp *TaskPool) dispatchLoop() {
	defer tp.dispatchWG.Done()

	for {
		select {
		case <-tp.ctx.Done():
			return
		default:
		}

		item, ok := tp.queue.PopBlocking(popTimeout)
		if !ok {
			continue
		}

		if !tp.acquireSlot() {
			// Shutting down; the item is dropped and will be re-enqueued
			// on the next due scan.
			return
		}

		if !tp.running.Claim(item.UUID) {
			tp.releaseSlot()
			continue
		}

		tp.taskWG.Add(1)
		go tp.runTask(item)
	}
}

func (tp *TaskPool) runTask(item models.QueueItem) {
	defer tp.taskWG.Done()
	defer func() {
		tp.running.Release(item.UUID)
		tp.releaseSlot()
		telemetry.RunningChecks.Dec()
	}()
	telemetry.RunningChecks.Inc()
	tp.check(tp.ctx, item)
}

// acquireSlot blocks until a semaphore slot is available or the pool is
// shutting down.
func (tp *TaskPool) acquireSlot() bool {
	for {
		tp.mu.Lock()
		if tp.active < tp.capacity {
			tp.active++
			tp.mu.Unlock()
			return true
		}
		tp.mu.Unlock()

		select {
		case <-tp.ctx.Done():
			return false
		case <-tp.slotFree:
		}
	}
}

func (tp *TaskPool) releaseSlot() {
	tp.mu.Lock()
	if tp.active > 0 {
		tp.active--
	}
	tp.mu.Unlock()
	tp.notifySlot()
}

func (tp *TaskPool) notifySlot() {
	select {
	case tp.slotFree <- struct{}{}:
	default:
	}
}
