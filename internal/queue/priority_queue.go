package queue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/aleister1102/driftwatch/internal/models"
)

// PriorityQueue is the pending-check queue shared between the scheduler
// (pusher) and the worker pool (poppers). Lower priority values pop first;
// items with equal priority pop in push order. The queue itself does not
// deduplicate; the scheduler consults Peek plus the pool's running set
// before pushing.
type PriorityQueue struct {
	mu     sync.Mutex
	items  itemHeap
	seq    uint64
	wake   chan struct{}
	closed bool
}

// NewPriorityQueue creates an empty queue.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{
		wake: make(chan struct{}, 1),
	}
}

// Push adds an item. Safe for concurrent use with PopBlocking.
func (q *PriorityQueue) Push(item models.QueueItem) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.seq++
	heap.Push(&q.items, heapEntry{item: item, seq: q.seq})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// PopBlocking removes and returns the highest-priority item, waiting up to
// timeout when the queue is empty. The second return is false when the wait
// expired or the queue was closed with nothing pending.
func (q *PriorityQueue) PopBlocking(timeout time.Duration) (models.QueueItem, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if q.items.Len() > 0 {
			entry := heap.Pop(&q.items).(heapEntry)
			remaining := q.items.Len()
			q.mu.Unlock()
			if remaining > 0 {
				// hand the wake token on so other waiting poppers
				// don't sit out their full timeout
				select {
				case q.wake <- struct{}{}:
				default:
				}
			}
			return entry.item, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return models.QueueItem{}, false
		}

		select {
		case <-q.wake:
			// re-check; another popper may have won the race
		case <-deadline.C:
			return models.QueueItem{}, false
		}
	}
}

// Peek returns a non-destructive snapshot of the pending UUIDs in dispatch
// order.
func (q *PriorityQueue) Peek() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	sorted := make(itemHeap, len(q.items))
	copy(sorted, q.items)

	uuids := make([]string, 0, len(sorted))
	for sorted.Len() > 0 {
		entry := heap.Pop(&sorted).(heapEntry)
		uuids = append(uuids, entry.item.UUID)
	}
	return uuids
}

// Contains reports whether a UUID has a live queue item.
func (q *PriorityQueue) Contains(uuid string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, entry := range q.items {
		if entry.item.UUID == uuid {
			return true
		}
	}
	return false
}

// Len returns the number of pending items.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close rejects further pushes and unblocks poppers once drained.
func (q *PriorityQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// heapEntry pairs an item with its push sequence so equal priorities stay
// stable.
type heapEntry struct {
	item models.QueueItem
	seq  uint64
}

type itemHeap []heapEntry

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].item.Priority != h[j].item.Priority {
		return h[i].item.Priority < h[j].item.Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(heapEntry)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}
