package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/emberlang/embergc/app/core/gc/safepoint"
)

// Kind names one of the four scheduling policies a Policy can enforce.
type Kind int

const (
	// Disabled never triggers a collection; only an explicit OnOOM call
	// or an operator-initiated collection runs.
	Disabled Kind = iota
	// WithTimer triggers on allocation pressure crossing targetHeapBytes,
	// checked both at safepoint-accumulator overflow and on a repeating
	// timer (so an idle application still collects).
	WithTimer
	// OnSafepoints triggers on allocation pressure exactly like WithTimer
	// but without the timer — only mutator activity can trigger a cycle.
	OnSafepoints
	// Aggressive triggers a collection at every safepoint, and tightens
	// the safepoint thresholds so safepoints themselves fire often. Meant
	// for stress-testing collector correctness, not production use.
	Aggressive
)

func (k Kind) String() string {
	switch k {
	case Disabled:
		return "disabled"
	case WithTimer:
		return "with-timer"
	case OnSafepoints:
		return "on-safepoints"
	case Aggressive:
		return "aggressive"
	default:
		return "unknown"
	}
}

// aggressiveThreshold and aggressiveAllocThreshold replace the
// configured thresholds under Aggressive mode so safepoints fire (and
// therefore so does the pressure check) almost continuously.
const (
	aggressiveThreshold      = 1000
	aggressiveAllocThreshold = 10_000
)

// Policy decides, from safepoint callbacks and alive-set updates, when
// to invoke a schedule closure. One Policy is shared by every registered
// mutator thread; its behavior is a tagged union over Kind rather than
// separate implementing types, since the branches share almost all of
// their state (cfg, the global allocated accumulator, the CAS gate).
type Policy struct {
	kind       Kind
	cfg        *Config
	scheduleGC func()

	allocated         atomic.Int64
	gcScheduled       atomic.Bool
	lastAliveSetBytes atomic.Int64

	timer *Timer
}

// New constructs a Policy of the given kind. scheduleGC is invoked
// (never while holding any lock) whenever the policy decides a cycle
// should run. It must not block the safepoint that triggered it; the
// collector passes a closure that only records the request with the
// epoch coordinator and returns without waiting for the cycle.
func New(kind Kind, cfg *Config, scheduleGC func()) *Policy {
	p := &Policy{kind: kind, cfg: cfg, scheduleGC: scheduleGC}
	if kind == Aggressive {
		cfg.SetThreshold(aggressiveThreshold)
		cfg.SetThreadAllocationThresholdBytes(aggressiveAllocThreshold)
	}
	if kind == WithTimer {
		interval := time.Duration(cfg.RegularGcIntervalUs()) * time.Microsecond
		p.timer = NewTimer(time.Now().Add(interval), p.onTimerFire)
	}
	return p
}

// Kind reports the policy's scheduling strategy.
func (p *Policy) Kind() Kind { return p.kind }

// OnSafePoint is installed as every registered thread's
// safepoint.OnSafePointFunc.
func (p *Policy) OnSafePoint(td *safepoint.ThreadData, total int64, isAllocation bool) {
	switch p.kind {
	case Disabled:
		return
	case Aggressive:
		// Aggressive bypasses the gcScheduled gate entirely: it schedules
		// on every safepoint, not just the first one per cycle.
		p.scheduleGC()
		return
	case WithTimer, OnSafepoints:
		if isAllocation {
			p.foldAndCheck(total)
		} else {
			// A regular-safepoint overflow is a periodic nudge to check
			// pressure even though the thread's own allocation
			// accumulator has not yet crossed its threshold.
			p.foldAndCheck(td.AllocatedBytes())
		}
	}
}

// onTimerFire is WithTimer's repeating-timer callback: it re-arms itself
// for the next interval and performs the same pressure check a safepoint
// overflow would, so an application with no active mutators still
// collects once its heap has grown past target.
func (p *Policy) onTimerFire() {
	interval := time.Duration(p.cfg.RegularGcIntervalUs()) * time.Microsecond
	p.timer.Reschedule(time.Now().Add(interval))
	p.foldAndCheck(0)
}

// foldAndCheck adds bytes to the global allocated accumulator (a no-op
// when bytes is zero, which lets the timer path reuse the same pressure
// check without double-counting) and triggers a collection, at most
// once per cycle, once allocated-since-last-cycle plus the last
// observed alive set reaches targetHeapBytes.
func (p *Policy) foldAndCheck(bytes int64) {
	if bytes > 0 {
		p.allocated.Add(bytes)
	}
	projected := p.allocated.Load() + p.lastAliveSetBytes.Load()
	if projected >= p.cfg.TargetHeapBytes() {
		p.trigger()
	}
}

func (p *Policy) trigger() {
	if p.gcScheduled.CompareAndSwap(false, true) {
		p.scheduleGC()
	}
}

// UpdateAliveSetBytes is called by the collector after every cycle
// completes, regardless of policy kind: it records the new alive-set
// size (used by the pressure check above) and retunes targetHeapBytes
// when autotuning is enabled.
func (p *Policy) UpdateAliveSetBytes(aliveBytes int64) {
	p.lastAliveSetBytes.Store(aliveBytes)
	p.cfg.Retune(aliveBytes)
}

// OnPerformFullGC resets the policy's per-cycle accumulators and, for
// every currently registered thread, reloads its safepoint thresholds
// from the current configuration. Called by the collector once a cycle
// has started.
func (p *Policy) OnPerformFullGC(threads []*safepoint.ThreadData) {
	p.allocated.Store(0)
	p.gcScheduled.Store(false)
	for _, td := range threads {
		td.ResetCounters(p.cfg.Threshold(), p.cfg.ThreadAllocationThresholdBytes())
	}
}

// Close stops the policy's background timer, if any. Safe to call on
// any Kind.
func (p *Policy) Close() {
	if p.timer != nil {
		p.timer.Stop()
	}
}
