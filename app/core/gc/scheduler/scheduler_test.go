package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/embergc/app/core/gc/safepoint"
)

func TestConfig_RetuneClampsToBounds(t *testing.T) {
	c := DefaultConfig()
	c.SetAutoTune(true)
	c.SetTargetHeapUtilization(0.5)
	c.SetMinHeapBytes(1 << 20)
	c.SetMaxHeapBytes(1 << 30)

	c.Retune(10 << 20) // 10MiB alive / 0.5 = 20MiB target
	assert.Equal(t, int64(20<<20), c.TargetHeapBytes())

	c.Retune(1) // tiny alive set clamps to the floor
	assert.Equal(t, c.MinHeapBytes(), c.TargetHeapBytes())

	c.Retune(1 << 40) // huge alive set clamps to the ceiling
	assert.Equal(t, c.MaxHeapBytes(), c.TargetHeapBytes())
}

func TestConfig_RetuneNoopWhenAutoTuneDisabled(t *testing.T) {
	c := DefaultConfig()
	c.SetAutoTune(false)
	c.SetTargetHeapBytes(42)

	c.Retune(10 << 30)
	assert.Equal(t, int64(42), c.TargetHeapBytes())
}

func TestLoadYAML_AppliesOverridesAndRejectsIncompatibleSchema(t *testing.T) {
	doc := []byte(`
schema_version: "1.0.0"
threshold: 500
target_heap_bytes: 8388608
target_heap_utilization: 0.25
auto_tune: false
`)
	cfg, err := LoadYAML(doc)
	require.NoError(t, err)
	assert.Equal(t, int64(500), cfg.Threshold())
	assert.Equal(t, int64(8388608), cfg.TargetHeapBytes())
	assert.Equal(t, 0.25, cfg.TargetHeapUtilization())
	assert.False(t, cfg.AutoTune())

	_, err = LoadYAML([]byte(`schema_version: "2.0.0"`))
	assert.Error(t, err)
}

func TestPolicy_DisabledNeverTriggers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetTargetHeapBytes(1) // trivially crossed if the policy checked it
	var triggered atomic.Bool
	p := New(Disabled, cfg, func() { triggered.Store(true) })

	reg := safepoint.NewRegistry()
	td := safepoint.NewThreadData("t1", reg)
	td.SetOnSafePoint(p.OnSafePoint)
	td.ResetCounters(1, 1)

	td.SafePointAllocation(1 << 20)
	assert.False(t, triggered.Load())
}

func TestPolicy_AggressiveTriggersEverySafepointAndTightensThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetThreshold(999999)
	cfg.SetThreadAllocationThresholdBytes(999999)

	var count atomic.Int64
	p := New(Aggressive, cfg, func() { count.Add(1) })

	assert.Equal(t, int64(aggressiveThreshold), cfg.Threshold())
	assert.Equal(t, int64(aggressiveAllocThreshold), cfg.ThreadAllocationThresholdBytes())

	reg := safepoint.NewRegistry()
	td := safepoint.NewThreadData("t1", reg)
	td.SetOnSafePoint(p.OnSafePoint)
	td.ResetCounters(cfg.Threshold(), cfg.ThreadAllocationThresholdBytes())

	td.SafePointFunctionPrologue()
	assert.Equal(t, int64(1), count.Load())
}

func TestPolicy_OnSafepointsTriggersOnAllocationPressure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetTargetHeapBytes(1000)
	cfg.SetThreadAllocationThresholdBytes(100)
	cfg.SetThreshold(1_000_000) // regular counter effectively disabled for this test

	var count atomic.Int64
	p := New(OnSafepoints, cfg, func() { count.Add(1) })

	reg := safepoint.NewRegistry()
	td := safepoint.NewThreadData("t1", reg)
	td.SetOnSafePoint(p.OnSafePoint)
	td.ResetCounters(cfg.Threshold(), cfg.ThreadAllocationThresholdBytes())

	for i := 0; i < 20; i++ {
		td.SafePointAllocation(100) // each call crosses the 100-byte threshold
	}
	assert.Equal(t, int64(1), count.Load(), "gcScheduled gate must prevent re-triggering before OnPerformFullGC")
}

func TestPolicy_OnPerformFullGCResetsGateAndThreadCounters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetAutoTune(false)
	cfg.SetTargetHeapBytes(50)
	cfg.SetThreadAllocationThresholdBytes(50)
	cfg.SetThreshold(1_000_000)

	var count atomic.Int64
	p := New(OnSafepoints, cfg, func() { count.Add(1) })

	reg := safepoint.NewRegistry()
	td := safepoint.NewThreadData("t1", reg)
	td.SetOnSafePoint(p.OnSafePoint)
	td.ResetCounters(cfg.Threshold(), cfg.ThreadAllocationThresholdBytes())

	td.SafePointAllocation(60)
	assert.Equal(t, int64(1), count.Load())

	p.OnPerformFullGC([]*safepoint.ThreadData{td})
	p.UpdateAliveSetBytes(0)

	td.SafePointAllocation(60)
	assert.Equal(t, int64(2), count.Load(), "a fresh cycle must be triggerable again after OnPerformFullGC")
}

func TestPolicy_UpdateAliveSetBytesFeedsPressureCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetAutoTune(false)
	cfg.SetTargetHeapBytes(1000)
	cfg.SetThreadAllocationThresholdBytes(10)
	cfg.SetThreshold(1_000_000)

	var count atomic.Int64
	p := New(OnSafepoints, cfg, func() { count.Add(1) })
	p.UpdateAliveSetBytes(950) // close to target already

	reg := safepoint.NewRegistry()
	td := safepoint.NewThreadData("t1", reg)
	td.SetOnSafePoint(p.OnSafePoint)
	td.ResetCounters(cfg.Threshold(), cfg.ThreadAllocationThresholdBytes())

	td.SafePointAllocation(60) // 950 + 60 >= 1000
	assert.Equal(t, int64(1), count.Load())
}

func TestTimer_FiresAtDeadlineAndReschedules(t *testing.T) {
	fired := make(chan struct{}, 8)
	tm := NewTimer(time.Now().Add(20*time.Millisecond), func() {
		fired <- struct{}{}
	})
	defer tm.Stop()

	select {
	case <-fired:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timer did not fire")
	}

	tm.Reschedule(time.Now().Add(20 * time.Millisecond))
	select {
	case <-fired:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timer did not fire after reschedule")
	}
}

func TestTimer_StopHaltsFiring(t *testing.T) {
	fired := make(chan struct{}, 8)
	tm := NewTimer(time.Now().Add(10*time.Millisecond), func() {
		fired <- struct{}{}
	})
	<-fired
	tm.Stop()

	select {
	case <-fired:
		t.Fatal("timer fired after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}
