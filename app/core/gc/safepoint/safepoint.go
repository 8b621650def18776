// Package safepoint implements the per-thread safepoint fast path and
// the cooperative thread-suspension protocol built on top of it. The
// fast path costs one relaxed load of a process-wide flag plus an
// atomic counter bump in the common case where no collection is
// pending.
package safepoint

import "sync/atomic"

// needSlowpath is the single process-wide flag: set before
// RequestThreadsSuspension, cleared after ResumeThreads. It is
// intentionally package-level rather than per-registry — the fast path
// compiles to one load of a fixed address instead of an indirection
// through a registry pointer. A process embeds at most one collector,
// so this is not a sharing hazard in practice.
var needSlowpath atomic.Bool

// SetSlowpathRequested is called by the GC thread around world-stop:
// true immediately before RequestThreadsSuspension, false immediately
// after ResumeThreads.
func SetSlowpathRequested(v bool) {
	needSlowpath.Store(v)
}

// SlowpathRequested reports the current value of the flag. Exposed
// mainly for tests; mutator code should go through the SafePoint*
// methods instead.
func SlowpathRequested() bool {
	return needSlowpath.Load()
}

// Safepoint weights: the regular safepoints add a small fixed weight,
// the allocation safepoint adds the allocated byte size.
const (
	weightPrologue = 1
	weightLoopBody = 1
	weightUnwind   = 1
)

// OnSafePointFunc is the scheduler hook invoked when a thread's
// accumulator crosses its configured threshold. total is the
// accumulator's value at the moment it crossed the threshold (before it
// is reset to zero); isAllocation distinguishes an allocation-safepoint
// overflow (total counts bytes) from a regular-safepoint overflow (total
// counts the small fixed per-safepoint cost).
type OnSafePointFunc func(td *ThreadData, total int64, isAllocation bool)

// ThreadData is the per-mutator-thread state the runtime's compiler or
// allocator consults at each safepoint entry point.
type ThreadData struct {
	ID       string
	registry *Registry

	regularCount     atomic.Int64
	regularThreshold atomic.Int64

	allocBytes     atomic.Int64
	allocThreshold atomic.Int64

	onSafePoint atomic.Pointer[OnSafePointFunc]

	// goroutineID binds to whichever goroutine first calls one of the
	// SafePoint* methods below, not necessarily the one that called
	// NewThreadData — a mutator's thread-local GC state is conventionally
	// bound to the thread that actually runs it. 0 means unbound; real
	// goroutine IDs start at 1.
	goroutineID atomic.Int64
}

// NewThreadData constructs a ThreadData and registers it with r. Callers
// must Unregister it (via r.Unregister) when the mutator thread exits.
func NewThreadData(id string, r *Registry) *ThreadData {
	td := &ThreadData{ID: id, registry: r}
	r.Register(td)
	return td
}

// SetOnSafePoint installs (or clears, with nil) the scheduler callback.
func (td *ThreadData) SetOnSafePoint(fn OnSafePointFunc) {
	if fn == nil {
		td.onSafePoint.Store(nil)
		return
	}
	td.onSafePoint.Store(&fn)
}

// ResetCounters reloads both accumulator thresholds from the current
// scheduler configuration and zeroes the accumulators. Called by the
// scheduler's OnPerformFullGC hook and by Collector.AttachThread.
func (td *ThreadData) ResetCounters(regularThreshold, allocThreshold int64) {
	td.regularCount.Store(0)
	td.allocBytes.Store(0)
	td.regularThreshold.Store(regularThreshold)
	td.allocThreshold.Store(allocThreshold)
}

// AllocatedBytes returns the thread's current (unreset) allocation
// accumulator, used by the WithTimer/OnSafepoints policies to fold a
// thread's pending bytes into the global allocated counter.
func (td *ThreadData) AllocatedBytes() int64 {
	return td.allocBytes.Load()
}

// SafePointFunctionPrologue is invoked by the compiler at every function
// prologue.
func (td *ThreadData) SafePointFunctionPrologue() { td.tick(weightPrologue, false) }

// SafePointLoopBody is invoked by the compiler at every loop back-edge.
func (td *ThreadData) SafePointLoopBody() { td.tick(weightLoopBody, false) }

// SafePointExceptionUnwind is the reserved safepoint entered while
// unwinding the stack for an exception.
func (td *ThreadData) SafePointExceptionUnwind() { td.tick(weightUnwind, false) }

// SafePointAllocation is invoked by the allocator with the size in bytes
// of the object just allocated.
func (td *ThreadData) SafePointAllocation(size int64) { td.tick(size, true) }

// tick is the shared fast path. In the common case (no GC pending, no
// threshold crossed) it performs exactly one atomic load of needSlowpath
// plus one atomic add — no locks, no system calls.
func (td *ThreadData) tick(weight int64, isAllocation bool) {
	if td.goroutineID.Load() == 0 {
		td.goroutineID.CompareAndSwap(0, currentGoroutineID())
	}

	slow := needSlowpath.Load()

	var accumulator *atomic.Int64
	var threshold *atomic.Int64
	if isAllocation {
		accumulator, threshold = &td.allocBytes, &td.allocThreshold
	} else {
		accumulator, threshold = &td.regularCount, &td.regularThreshold
	}

	n := accumulator.Add(weight)
	if th := threshold.Load(); th > 0 && n >= th {
		accumulator.Store(0)
		if cb := td.onSafePoint.Load(); cb != nil {
			(*cb)(td, n, isAllocation)
		}
	}

	if slow {
		td.registry.SuspendIfRequested(td)
	}
}
