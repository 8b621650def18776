package sweep

import "sync"

// FinalizerQueue is the multi-producer/single-consumer queue of objects
// collected in a cycle whose type demands finalization. The sweep pass
// produces entries; the collector's finalizer thread consumes them
// under the same mutex discipline the collector merges under.
type FinalizerQueue struct {
	mu    sync.Mutex
	items []NodeRef
}

// NewFinalizerQueue returns an empty queue.
func NewFinalizerQueue() *FinalizerQueue {
	return &FinalizerQueue{}
}

// Append adds a garbage node awaiting finalization. Called only from the
// sweep pass on the GC thread.
func (q *FinalizerQueue) Append(n NodeRef) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
}

// Len reports the number of objects currently queued.
func (q *FinalizerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Take atomically drains the queue and returns its former contents;
// ownership of the returned slice transfers to the caller.
func (q *FinalizerQueue) Take() []NodeRef {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Merge appends another queue's contents into this one under lock, used
// when a newly constructed per-cycle queue must be folded into the
// collector's pending queue.
func (q *FinalizerQueue) Merge(other *FinalizerQueue) {
	items := other.Take()
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}
