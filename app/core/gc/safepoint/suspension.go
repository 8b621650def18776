package safepoint

import (
	"sync"
)

// ThreadState models the two states a registered mutator can be in for
// suspension purposes: RUNNABLE (touching the managed heap, must park at
// its next safepoint to be suspended) or NATIVE (blocked in foreign code,
// already safe to treat as suspended).
type ThreadState int

const (
	StateRunnable ThreadState = iota
	StateNative
)

// Registry implements C5, the thread-suspension protocol: it lets the GC
// thread request that every registered mutator park at its next
// safepoint, wait for all of them to do so, and release them again.
//
// The GC thread itself must never be registered here — the collector
// checks this with IsCurrentThreadRegistered at the start of each cycle,
// and Register/Unregister are the mutator runtime's responsibility to
// call correctly.
type Registry struct {
	mu         sync.Mutex
	parkCond   *sync.Cond
	resumeCond *sync.Cond

	threads map[*ThreadData]struct{}
	parked  map[*ThreadData]struct{}

	suspendRequested bool
}

// NewRegistry returns an empty thread registry.
func NewRegistry() *Registry {
	r := &Registry{
		threads: make(map[*ThreadData]struct{}),
		parked:  make(map[*ThreadData]struct{}),
	}
	r.parkCond = sync.NewCond(&r.mu)
	r.resumeCond = sync.NewCond(&r.mu)
	return r
}

// Register adds a mutator thread to the set the GC thread must wait for
// during suspension.
func (r *Registry) Register(td *ThreadData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads[td] = struct{}{}
}

// Unregister removes a mutator thread. If a suspension is in flight and
// this was the last thread the GC was waiting on, WaitForThreadsSuspension
// unblocks.
func (r *Registry) Unregister(td *ThreadData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.threads, td)
	delete(r.parked, td)
	r.parkCond.Broadcast()
}

// IsRegistered reports whether td is currently a registered mutator.
func (r *Registry) IsRegistered(td *ThreadData) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.threads[td]
	return ok
}

// IsCurrentThreadRegistered reports whether the calling goroutine is
// itself one of the currently registered mutators (bound lazily, the
// first time a ThreadData's safepoint methods run on it — see
// ThreadData.tick). The GC thread must never be a registered mutator;
// this is how that invariant is checked at the top of a collection.
func (r *Registry) IsCurrentThreadRegistered() bool {
	gid := currentGoroutineID()
	r.mu.Lock()
	defer r.mu.Unlock()
	for td := range r.threads {
		if td.goroutineID.Load() == gid {
			return true
		}
	}
	return false
}

// Count returns the number of currently registered mutators.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.threads)
}

// Threads returns a snapshot of every currently registered mutator, used
// by the scheduler to reload per-thread safepoint thresholds at the
// start of a cycle.
func (r *Registry) Threads() []*ThreadData {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ThreadData, 0, len(r.threads))
	for td := range r.threads {
		out = append(out, td)
	}
	return out
}

// RequestThreadsSuspension begins a suspension round. The GC thread is
// the sole requester by contract; calling it while a round is already
// pending is a fatal invariant violation.
func (r *Registry) RequestThreadsSuspension() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.suspendRequested {
		panic("safepoint: RequestThreadsSuspension called with a suspension already pending")
	}
	r.suspendRequested = true
}

// WaitForThreadsSuspension blocks until every registered mutator (or one
// that has since unregistered) is parked.
func (r *Registry) WaitForThreadsSuspension() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.parked) < len(r.threads) {
		r.parkCond.Wait()
	}
}

// ResumeThreads releases every thread parked in SuspendIfRequested.
func (r *Registry) ResumeThreads() {
	r.mu.Lock()
	r.suspendRequested = false
	r.parked = make(map[*ThreadData]struct{}, len(r.threads))
	r.mu.Unlock()
	r.resumeCond.Broadcast()
}

// SuspendIfRequested is the slow path a mutator's safepoint enters when
// it observes needSafepointSlowpath. It parks until ResumeThreads clears
// the pending suspension.
func (r *Registry) SuspendIfRequested(td *ThreadData) {
	r.mu.Lock()
	if !r.suspendRequested {
		r.mu.Unlock()
		return
	}
	r.parked[td] = struct{}{}
	r.parkCond.Broadcast()
	for r.suspendRequested {
		r.resumeCond.Wait()
	}
	r.mu.Unlock()
}

// markNative treats td as already suspended: native code never touches
// the managed heap, so the GC thread does not need to wait for it.
func (r *Registry) markNative(td *ThreadData) {
	r.mu.Lock()
	r.parked[td] = struct{}{}
	r.parkCond.Broadcast()
	r.mu.Unlock()
}

// markRunnableAndMaybeSuspend returns td to RUNNABLE state; if a
// suspension round is still in flight when it does so, it blocks exactly
// like SuspendIfRequested instead of racing back into mutator code.
func (r *Registry) markRunnableAndMaybeSuspend(td *ThreadData) {
	r.mu.Lock()
	delete(r.parked, td)
	for r.suspendRequested {
		r.parked[td] = struct{}{}
		r.parkCond.Broadcast()
		r.resumeCond.Wait()
		delete(r.parked, td)
	}
	r.mu.Unlock()
}

// ThreadStateGuard transitions td into state and returns a function that
// must be deferred to transition back. Entering StateNative marks the
// thread as already suspended for the GC thread's purposes; the returned
// closure's transition back to RUNNABLE is the other half, and may block
// if a suspension round is in flight.
func (td *ThreadData) ThreadStateGuard(state ThreadState) func() {
	if state != StateNative {
		return func() {}
	}
	td.registry.markNative(td)
	return func() {
		td.registry.markRunnableAndMaybeSuspend(td)
	}
}
