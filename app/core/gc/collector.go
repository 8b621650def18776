// Package gc wires the epoch coordinator, the safepoint/suspension
// protocol, the mark-sweep algorithm, and the scheduler policy into one
// running collector with a GC thread and a finalizer thread.
package gc

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/emberlang/embergc/app/core/gc/epoch"
	"github.com/emberlang/embergc/app/core/gc/safepoint"
	"github.com/emberlang/embergc/app/core/gc/scheduler"
	"github.com/emberlang/embergc/app/core/gc/sweep"
	"github.com/emberlang/embergc/app/core/gc/telemetry"
	"github.com/emberlang/embergc/app/safego"
)

// FinalizeFunc runs a collected object's finalizer. Invoked on the
// collector's dedicated finalizer thread, never on the GC thread and
// never on a mutator thread.
type FinalizeFunc func(sweep.NodeRef)

// Config gathers everything a Collector needs from its embedding
// application: the heap it manages, the policy deciding when to
// collect, and (optionally) where to record telemetry.
type Config struct {
	Objects      sweep.ObjectFactory
	ExtraObjects sweep.ExtraObjectDataFactory
	CollectRoots sweep.RootSetCollector
	Registry     *safepoint.Registry
	SchedulerCfg *scheduler.Config
	PolicyKind   scheduler.Kind
	Finalize     FinalizeFunc
	Sink         *telemetry.Sink
	Clock        telemetry.Clock
}

// Collector is the running garbage collector: one GC thread performing
// stop-the-world mark-sweep cycles, and one finalizer thread draining
// the queue of collected objects those cycles produce.
type Collector struct {
	objects      sweep.ObjectFactory
	extraObjects sweep.ExtraObjectDataFactory
	collectRoots sweep.RootSetCollector
	registry     *safepoint.Registry
	finalize     FinalizeFunc
	sink         *telemetry.Sink
	clock        telemetry.Clock

	coord          *epoch.Coordinator
	policy         *scheduler.Policy
	schedulerCfg   *scheduler.Config
	finalizerQueue *sweep.FinalizerQueue

	stopFinalizers           chan struct{}
	finalizerDone            chan struct{}
	finalizerStoppedForTests atomic.Bool
}

// New constructs and starts a Collector: its GC thread and finalizer
// thread are both running by the time New returns.
func New(cfg Config) *Collector {
	if cfg.Sink == nil {
		cfg.Sink = telemetry.NewSink(1024, nil)
	}
	if cfg.Clock == nil {
		cfg.Clock = telemetry.SystemClock{}
	}
	if cfg.SchedulerCfg == nil {
		cfg.SchedulerCfg = scheduler.DefaultConfig()
	}

	c := &Collector{
		objects:        cfg.Objects,
		extraObjects:   cfg.ExtraObjects,
		collectRoots:   cfg.CollectRoots,
		registry:       cfg.Registry,
		finalize:       cfg.Finalize,
		sink:           cfg.Sink,
		clock:          cfg.Clock,
		coord:          epoch.New(),
		schedulerCfg:   cfg.SchedulerCfg,
		finalizerQueue: sweep.NewFinalizerQueue(),
		stopFinalizers: make(chan struct{}),
		finalizerDone:  make(chan struct{}),
	}
	c.policy = scheduler.New(cfg.PolicyKind, cfg.SchedulerCfg, c.scheduleNow)

	// A panic on either service thread must not leave every
	// ScheduleAndWaitFullGC*/OnOOM* caller blocked forever: requesting
	// shutdown and advancing every counter to the shutdown epoch unblocks
	// them instead.
	abort := func() {
		c.coord.RequestShutdown()
		c.coord.Start(epoch.Shutdown)
		c.coord.Finish(epoch.Shutdown)
		c.coord.Finalized(epoch.Shutdown)
	}
	safego.GoWithCallback("gc-thread", c.gcThreadLoop, abort)
	safego.GoWithCallback("finalizer-thread", c.finalizerThreadLoop, abort)

	return c
}

// AttachThread installs the collector's scheduling policy on td, so its
// safepoint overflows drive collection decisions. The caller still owns
// registering td with the Registry passed to Config.
func (c *Collector) AttachThread(td *safepoint.ThreadData) {
	td.SetOnSafePoint(c.policy.OnSafePoint)
	td.ResetCounters(c.schedulerCfg.Threshold(), c.schedulerCfg.ThreadAllocationThresholdBytes())
}

// scheduleNow is the closure the scheduler policy calls when it decides
// a cycle should run. Schedule only coalesces a request under a brief
// mutex hold and wakes the GC thread — it does not wait for the cycle to
// run, so calling it straight from the safepoint that triggered it does
// not block the mutator.
func (c *Collector) scheduleNow() {
	c.coord.Schedule()
}

// ScheduleAndWaitFullGC requests a collection and blocks until that
// cycle's stop-the-world and sweep work is finished (not waiting for
// finalization).
func (c *Collector) ScheduleAndWaitFullGC() {
	e := c.coord.Schedule()
	c.coord.WaitEpochFinished(e)
}

// ScheduleAndWaitFullGCWithFinalizers requests a collection and blocks
// until that cycle's objects have also been fully finalized.
func (c *Collector) ScheduleAndWaitFullGCWithFinalizers() {
	e := c.coord.Schedule()
	c.coord.WaitEpochFinished(e)
	c.coord.WaitEpochFinalized(e)
}

// OnOOM forces a synchronous full collection from an allocation-failure
// path: the calling thread enters native state for the duration (it is
// not touching the managed heap, so the GC thread need not wait on it
// specially beyond the suspension protocol already in place) and blocks
// until the cycle it triggers has finished.
func (c *Collector) OnOOM(td *safepoint.ThreadData) {
	leave := td.ThreadStateGuard(safepoint.StateNative)
	defer leave()
	e := c.coord.Schedule()
	c.coord.WaitEpochFinished(e)
}

// OnOOMWithFinalizers is OnOOM but also waits for that cycle's
// finalizers to drain — for an allocator that wants finalizer-freed
// resources (e.g. file descriptors) available before retrying.
func (c *Collector) OnOOMWithFinalizers(td *safepoint.ThreadData) {
	leave := td.ThreadStateGuard(safepoint.StateNative)
	defer leave()
	e := c.coord.Schedule()
	c.coord.WaitEpochFinished(e)
	c.coord.WaitEpochFinalized(e)
}

// RequestShutdown asks both the GC thread and the finalizer thread to
// terminate after any in-flight cycle completes, and blocks until they
// have.
func (c *Collector) RequestShutdown() {
	c.coord.RequestShutdown()
	c.coord.WaitEpochFinished(epoch.Shutdown)
	// If StopFinalizerThreadForTests already halted the finalizer thread,
	// nothing will ever call Finalized(Shutdown) — waiting for it here
	// would hang forever.
	if !c.finalizerStoppedForTests.Load() {
		c.coord.WaitEpochFinalized(epoch.Shutdown)
	}
	c.policy.Close()
}

// Snapshot returns the coordinator's four epoch counters, for the CLI
// `stats` command and tests.
func (c *Collector) Snapshot() (scheduled, started, finished, finalized int64) {
	return c.coord.Snapshot()
}

// cycleSampleName is this collector's stream name in its telemetry
// sink. Kept unexported: Samples/Rate below are the public read path,
// and hostmetrics posts under its own, independent stream name so the
// two never collide.
const cycleSampleName = "gc.cycle"

// Samples returns every GC-cycle telemetry sample currently retained.
func (c *Collector) Samples() []telemetry.Sample {
	return c.sink.Snapshot(cycleSampleName)
}

// Rate returns the number of GC cycles recorded within the trailing
// window divided by the window's length in seconds (cycles per second),
// for the CLI stats command and the TUI dashboard.
func (c *Collector) Rate(window time.Duration) float64 {
	return c.sink.Rate(cycleSampleName, window)
}

// Subscribe registers a channel that receives every subsequently
// recorded sample, for the TUI dashboard's live feed.
func (c *Collector) Subscribe() (telemetry.Subscriber, func()) {
	return c.sink.Subscribe()
}

// gcThreadLoop is the GC service thread's main loop: wait for a cycle to
// be scheduled, run it, record that it finished, repeat until shutdown.
func (c *Collector) gcThreadLoop() {
	for {
		e := c.coord.WaitScheduled()
		if e == epoch.Shutdown {
			c.coord.Start(epoch.Shutdown)
			c.coord.Finish(epoch.Shutdown)
			return
		}
		c.coord.Start(e)
		c.performFullGC(e)
		c.coord.Finish(e)
	}
}

// performFullGC runs one stop-the-world mark-sweep cycle:
//
//  1. reload the scheduler's per-thread thresholds and gate for the new
//     cycle — before anything else, so allocation pressure during the
//     concurrent sweep below is visible to the next OnSafePoint call
//  2. signal every mutator to park at its next safepoint
//  3. wait for all of them to park
//  4. collect roots and mark from them
//  5. sweep the extra-object table while mutators are still parked
//  6. take ObjectFactory's iteration lock and resume mutators — the
//     object-factory sweep below runs concurrently with them, guarded by
//     that lock
//  7. sweep the object factory
//  8. fold the results into telemetry and the scheduler's autotune input
func (c *Collector) performFullGC(e int64) {
	if c.registry.IsCurrentThreadRegistered() {
		panic("gc: performFullGC running on a registered mutator thread")
	}

	c.policy.OnPerformFullGC(c.registry.Threads())

	startedAt := c.clock.NowNano()

	safepoint.SetSlowpathRequested(true)
	c.registry.RequestThreadsSuspension()
	c.registry.WaitForThreadsSuspension()

	roots := c.collectRoots()
	sweep.Mark(roots)

	destroyedExtra := sweep.SweepExtraObjectTable(c.extraObjects)

	unlock := c.objects.LockForIter()
	c.registry.ResumeThreads()
	safepoint.SetSlowpathRequested(false)

	localQueue := sweep.NewFinalizerQueue()
	collected, aliveBytes := sweep.SweepObjectFactory(c.objects, localQueue)
	unlock.Unlock()

	c.finalizerQueue.Merge(localQueue)
	c.policy.UpdateAliveSetBytes(aliveBytes)

	c.sink.Record(telemetry.Sample{
		Name:                  cycleSampleName,
		Epoch:                 e,
		StartedAt:             time.Unix(0, startedAt),
		DurationNs:            c.clock.NowNano() - startedAt,
		ObjectsCollected:      collected,
		ExtraObjectsDestroyed: destroyedExtra,
		AliveSetBytes:         aliveBytes,
		TargetHeapBytes:       c.schedulerCfg.TargetHeapBytes(),
	})
}

// finalizerThreadLoop is the dedicated finalizer thread: it blocks on
// WaitFinalizersRequired until a cycle has finished with outstanding
// finalization work, drains the queue, and advances the finalized epoch
// counter so ScheduleAndWaitFullGCWithFinalizers callers unblock. The
// blocking wait runs in a helper goroutine so StopFinalizerThreadForTests
// can interrupt it even mid-wait, which sync.Cond.Wait cannot do
// natively.
func (c *Collector) finalizerThreadLoop() {
	defer close(c.finalizerDone)
	for {
		epochCh := make(chan int64, 1)
		go func() { epochCh <- c.coord.WaitFinalizersRequired() }()

		var e int64
		select {
		case <-c.stopFinalizers:
			return
		case e = <-epochCh:
		}

		for {
			items := c.finalizerQueue.Take()
			if len(items) == 0 {
				break
			}
			for _, n := range items {
				if c.finalize != nil {
					c.runFinalizer(n)
				}
			}
		}

		c.coord.Finalized(e)

		if e == epoch.Shutdown {
			return
		}
	}
}

func (c *Collector) runFinalizer(n sweep.NodeRef) {
	// A finalizer panicking must not take down the finalizer thread — it
	// would wedge every future ScheduleAndWaitFullGCWithFinalizers
	// caller.
	defer safego.Recover("finalizer:" + n.ID())
	c.finalize(n)
}

// StopFinalizerThreadForTests halts the finalizer thread outside the
// normal shutdown protocol, for tests that want to inspect the
// finalizer queue mid-flight without racing the finalizer thread. It
// waits for the currently-running cycle to finish, stops the finalizer
// thread, asserts it left nothing behind, then advances finished and
// finalized itself so any caller blocked in
// ScheduleAndWaitFullGCWithFinalizers for that epoch is released.
func (c *Collector) StopFinalizerThreadForTests() {
	e := c.coord.WaitCurrentFinished()

	close(c.stopFinalizers)
	<-c.finalizerDone

	if n := c.finalizerQueue.Len(); n != 0 {
		panic(fmt.Sprintf("gc: StopFinalizerThreadForTests: finalizer queue not empty (%d items)", n))
	}

	c.finalizerStoppedForTests.Store(true)
	c.coord.Finish(e)
	c.coord.Finalized(e)
}
