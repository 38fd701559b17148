package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/queue"

	"github.com/rs/zerolog"
)

// CheckFunc runs a single check for a watch UUID. The pool guarantees at
// most one invocation per UUID at any time.
type CheckFunc func(ctx context.Context, item models.QueueItem)

// Pool consumes queue items and runs checks with bounded concurrency.
// Two strategies implement it with identical external semantics.
type Pool interface {
	// Start launches n workers consuming from the queue.
	Start(n int)
	// AddWorker raises capacity by one.
	AddWorker()
	// RemoveWorker lowers capacity by one. In-flight checks always run
	// to completion.
	RemoveWorker()
	// WorkerCount returns current capacity.
	WorkerCount() int
	// RunningUUIDs returns the UUIDs with a check in flight.
	RunningUUIDs() []string
	// IsRunning reports whether a UUID has a check in flight.
	IsRunning(uuid string) bool
	// Shutdown stops consuming. When graceful, it waits for in-flight
	// checks to finish.
	Shutdown(graceful bool)
}

const (
	// StrategyThreads pins one long-lived goroutine per worker slot.
	StrategyThreads = "threads"
	// StrategyTasks spawns a short-lived goroutine per check under a
	// resizable semaphore.
	StrategyTasks = "tasks"
)

// popTimeout bounds how long an idle worker blocks on the queue before
// re-checking for shutdown.
const popTimeout = 500 * time.Millisecond

// NewPool builds a pool for the named strategy.
func NewPool(strategy string, q *queue.PriorityQueue, running *RunningSet, check CheckFunc, logger zerolog.Logger) (Pool, error) {
	switch strategy {
	case StrategyThreads:
		return NewThreadPool(q, running, check, logger), nil
	case StrategyTasks:
		return NewTaskPool(q, running, check, logger), nil
	default:
		return nil, fmt.Errorf("unknown pool strategy: %s", strategy)
	}
}
