package notifier

import (
	"sync"
	"time"

	"github.com/aleister1102/driftwatch/internal/models"
)

// DispatchQueue is the FIFO buffer between the check pipeline and the
// delivery consumer, so slow outbound delivery never blocks fetch
// throughput.
type DispatchQueue struct {
	jobs   chan models.NotificationJob
	mu     sync.Mutex
	closed bool
}

// NewDispatchQueue creates a queue with the given buffer size.
func NewDispatchQueue(size int) *DispatchQueue {
	if size <= 0 {
		size = 1
	}
	return &DispatchQueue{
		jobs: make(chan models.NotificationJob, size),
	}
}

// Push enqueues a job, dropping it when the buffer is full so the pipeline
// never blocks on delivery backlog. Returns false when dropped or closed.
func (q *DispatchQueue) Push(job models.NotificationJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.jobs <- job:
		return true
	default:
		return false
	}
}

// Pop dequeues the next job, waiting up to timeout. The second return is
// false on timeout or when the queue is closed and drained.
func (q *DispatchQueue) Pop(timeout time.Duration) (models.NotificationJob, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case job, ok := <-q.jobs:
		return job, ok
	case <-deadline.C:
		return models.NotificationJob{}, false
	}
}

// Len returns the number of buffered jobs.
func (q *DispatchQueue) Len() int {
	return len(q.jobs)
}

// Close stops accepting jobs; buffered jobs can still be popped.
func (q *DispatchQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
}

// DebugLog is a bounded in-memory ring of delivery outcomes surfaced for
// troubleshooting.
type DebugLog struct {
	mu      sync.Mutex
	entries []string
	limit   int
}

// NewDebugLog creates a log keeping at most limit lines.
func NewDebugLog(limit int) *DebugLog {
	if limit <= 0 {
		limit = 100
	}
	return &DebugLog{limit: limit}
}

// Append adds a line, evicting the oldest once over the limit.
func (d *DebugLog) Append(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, time.Now().UTC().Format(time.RFC3339)+" "+line)
	if len(d.entries) > d.limit {
		d.entries = d.entries[len(d.entries)-d.limit:]
	}
}

// Lines returns a copy of the retained lines, oldest first.
func (d *DebugLog) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.entries))
	copy(out, d.entries)
	return out
}
