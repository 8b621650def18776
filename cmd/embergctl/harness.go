package main

import (
	"math/rand"
	"strconv"
	"time"

	"github.com/emberlang/embergc/app/core/gc"
	"github.com/emberlang/embergc/app/core/gc/mockobjects"
	"github.com/emberlang/embergc/app/core/gc/safepoint"
	"github.com/emberlang/embergc/app/core/gc/scheduler"
	"github.com/emberlang/embergc/app/core/gc/sweep"
	"github.com/emberlang/embergc/app/core/gc/telemetry"
)

// harness wires a mock heap, a handful of simulated mutator threads, and
// a Collector into one runnable demo, standing in for the real compiler
// and allocator embergctl has no access to from outside a language
// runtime's process.
type harness struct {
	heap      *mockobjects.Heap
	collector *gc.Collector
	registry  *safepoint.Registry
	threads   []*safepoint.ThreadData
	cfg       *scheduler.Config
}

// newHarness builds a harness with mutatorCount simulated mutator
// threads, running policy kind against cfg.
func newHarness(policyKind scheduler.Kind, cfg *scheduler.Config, mutatorCount int) *harness {
	heap := mockobjects.NewHeap()
	registry := safepoint.NewRegistry()

	sink := telemetry.NewSink(4096, telemetry.NewPlatformMonotonicClock())

	h := &harness{heap: heap, registry: registry, cfg: cfg}
	h.collector = gc.New(gc.Config{
		Objects:      heap.Objects(),
		ExtraObjects: heap.ExtraObjects(),
		CollectRoots: heap.CollectRoots,
		Registry:     registry,
		SchedulerCfg: cfg,
		PolicyKind:   policyKind,
		Finalize:     func(sweep.NodeRef) {},
		Sink:         sink,
		Clock:        telemetry.NewPlatformMonotonicClock(),
	})

	for i := 0; i < mutatorCount; i++ {
		td := safepoint.NewThreadData(mutatorID(i), registry)
		h.collector.AttachThread(td)
		h.threads = append(h.threads, td)
	}

	return h
}

func mutatorID(i int) string {
	return "mutator-" + strconv.Itoa(i)
}

// runMutator simulates one mutator thread allocating and rooting garbage
// for duration, driving the collector's safepoints the way a compiled
// program's own prologues and allocation sites would.
func (h *harness) runMutator(td *safepoint.ThreadData, duration time.Duration, objectSizeBytes int64) {
	deadline := time.Now().Add(duration)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var liveRoots []*mockobjects.Object
	for time.Now().Before(deadline) {
		o := h.heap.Allocate(objectSizeBytes, rng.Intn(10) == 0)
		td.SafePointAllocation(objectSizeBytes)

		if rng.Intn(4) != 0 {
			h.heap.AddRoot(o)
			liveRoots = append(liveRoots, o)
		}

		if len(liveRoots) > 64 {
			evictIdx := rng.Intn(len(liveRoots))
			h.heap.RemoveRoot(liveRoots[evictIdx])
			liveRoots[evictIdx] = liveRoots[len(liveRoots)-1]
			liveRoots = liveRoots[:len(liveRoots)-1]
		}

		td.SafePointLoopBody()
	}
}

// shutdown stops the harness's collector and unregisters its threads.
func (h *harness) shutdown() {
	for _, td := range h.threads {
		h.registry.Unregister(td)
	}
	h.collector.RequestShutdown()
}
