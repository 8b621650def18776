// Package epoch implements the GC epoch coordination state machine: four
// monotonically increasing counters under one mutex and one condition
// variable, serializing scheduling, collection, and finalization across
// mutator threads and the two dedicated GC service threads.
package epoch

import (
	"fmt"
	"sync"
)

// Shutdown is the sentinel epoch value written to scheduled to signal
// that the GC thread (and, transitively, the finalizer thread) should
// terminate.
const Shutdown int64 = 1<<63 - 1

// Coordinator holds the four monotonic epoch counters that drive the GC
// collection protocol:
//
//	finalized ≤ finished ≤ started ≤ scheduled
//
// The zero value is not usable; construct with New.
type Coordinator struct {
	mu   sync.Mutex
	cond *sync.Cond

	scheduled int64
	started   int64
	finished  int64
	finalized int64
}

// New returns a coordinator with all counters at epoch 0.
func New() *Coordinator {
	c := &Coordinator{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Schedule coalesces a collection request: if no cycle is already queued
// ahead of the one currently running, it advances scheduled to
// started+1 and returns it. Concurrent callers racing here all observe
// the same returned epoch until the GC thread picks it up.
func (c *Coordinator) Schedule() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scheduled != Shutdown && c.scheduled <= c.started {
		c.scheduled = c.started + 1
		c.cond.Broadcast()
	}
	return c.scheduled
}

// RequestShutdown sets scheduled to the Shutdown sentinel and wakes every
// waiter. Any schedule request arriving afterward is absorbed silently —
// scheduled never regresses below Shutdown.
func (c *Coordinator) RequestShutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduled = Shutdown
	c.cond.Broadcast()
}

// Start records that the GC thread has begun epoch e.
func (c *Coordinator) Start(e int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assertMonotonic("started", c.started, e)
	c.started = e
	c.cond.Broadcast()
}

// Finish records that the stop-the-world and sweep work of epoch e is
// complete.
func (c *Coordinator) Finish(e int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assertMonotonic("finished", c.finished, e)
	c.finished = e
	c.cond.Broadcast()
}

// Finalized records that the finalizer queue produced by epoch e has
// been fully drained.
func (c *Coordinator) Finalized(e int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assertMonotonic("finalized", c.finalized, e)
	c.finalized = e
	c.cond.Broadcast()
}

// assertMonotonic panics on a counter regression: a regression here is
// a programmer bug in the caller, not a condition the coordinator can
// recover from. A counter already at the Shutdown sentinel is exempt and
// may be set to a lower epoch without panicking.
func (c *Coordinator) assertMonotonic(field string, old, next int64) {
	if next < old && old != Shutdown {
		panic(fmt.Sprintf("epoch: %s regressed from %d to %d", field, old, next))
	}
}

// WaitEpochFinished blocks until finished ≥ e.
func (c *Coordinator) WaitEpochFinished(e int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.finished < e {
		c.cond.Wait()
	}
}

// WaitEpochFinalized blocks until finalized ≥ e.
func (c *Coordinator) WaitEpochFinalized(e int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.finalized < e {
		c.cond.Wait()
	}
}

// WaitCurrentFinished snapshots the epoch the GC thread last started and
// blocks until it is finished, returning that epoch.
func (c *Coordinator) WaitCurrentFinished() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.started
	for c.finished < e {
		c.cond.Wait()
	}
	return e
}

// WaitScheduled blocks until a cycle is pending (scheduled > finished)
// and returns the epoch to run. This is the GC thread's main-loop wait;
// on shutdown it returns Shutdown.
func (c *Coordinator) WaitScheduled() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.scheduled <= c.finished {
		c.cond.Wait()
	}
	return c.scheduled
}

// WaitFinalizersRequired blocks until a finished cycle has outstanding
// finalization work (finished > finalized) and returns that epoch. On
// shutdown it returns Shutdown.
func (c *Coordinator) WaitFinalizersRequired() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.finished <= c.finalized {
		c.cond.Wait()
	}
	return c.finished
}

// Snapshot returns a consistent view of all four counters, for tests and
// observability (the CLI `stats` command, the TUI dashboard).
func (c *Coordinator) Snapshot() (scheduled, started, finished, finalized int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scheduled, c.started, c.finished, c.finalized
}
