package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ n int64 }

func (c *fakeClock) NowNano() int64  { return c.n }
func (c *fakeClock) NowMicro() int64 { return c.n / int64(time.Microsecond) }

func TestSink_RecordAndSnapshotPreservesOrder(t *testing.T) {
	clk := &fakeClock{n: 1}
	s := NewSink(3, clk)

	s.Record(Sample{Name: "gc.cycle", Epoch: 1})
	s.Record(Sample{Name: "gc.cycle", Epoch: 2})
	s.Record(Sample{Name: "gc.cycle", Epoch: 3})
	s.Record(Sample{Name: "gc.cycle", Epoch: 4}) // overwrites epoch 1

	got := s.Snapshot("gc.cycle")
	require.Len(t, got, 3)
	assert.Equal(t, int64(2), got[0].Epoch)
	assert.Equal(t, int64(3), got[1].Epoch)
	assert.Equal(t, int64(4), got[2].Epoch)
	assert.NotEmpty(t, got[0].ID, "Record must assign an ID when none is supplied")
}

func TestSink_SubscribeReceivesSubsequentSamples(t *testing.T) {
	s := NewSink(8, SystemClock{})
	sub, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.Record(Sample{Name: "gc.cycle", Epoch: 1})

	select {
	case sample := <-sub:
		assert.Equal(t, int64(1), sample.Epoch)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive sample")
	}
}

func TestSink_UnsubscribeClosesChannel(t *testing.T) {
	s := NewSink(8, SystemClock{})
	sub, unsubscribe := s.Subscribe()
	unsubscribe()

	_, open := <-sub
	assert.False(t, open)
}

func TestSink_CloseStopsAcceptingRecords(t *testing.T) {
	s := NewSink(8, SystemClock{})
	s.Close()
	s.Record(Sample{Name: "gc.cycle", Epoch: 99})
	assert.Empty(t, s.Snapshot("gc.cycle"))
}

func TestSink_RateCountsOnlySamplesInWindow(t *testing.T) {
	clk := &fakeClock{n: int64(10 * time.Second)}
	s := NewSink(8, clk)

	s.Record(Sample{Name: "gc.cycle", Epoch: 1, StartedAt: time.Unix(0, int64(1*time.Second))})
	s.Record(Sample{Name: "gc.cycle", Epoch: 2, StartedAt: time.Unix(0, int64(9*time.Second))})

	rate := s.Rate("gc.cycle", 2*time.Second)
	assert.Equal(t, 0.5, rate) // only epoch 2 falls in the trailing 2s window
}

func TestSink_RateOnUnknownStreamIsZero(t *testing.T) {
	s := NewSink(8, SystemClock{})
	assert.Equal(t, 0.0, s.Rate("nonexistent", time.Minute))
}

func TestSink_NamedStreamsDoNotShareCapacity(t *testing.T) {
	s := NewSink(8, SystemClock{})

	s.Record(Sample{Name: "gc.cycle", Epoch: 1, ObjectsCollected: 12})
	s.Record(Sample{Name: "host", HostRSSBytes: 1 << 20, HostVMBytes: 1 << 24, HostCPUPercent: 12.5})
	s.Record(Sample{Name: "gc.cycle", Epoch: 2, ObjectsCollected: 4})

	cycles := s.Snapshot("gc.cycle")
	require.Len(t, cycles, 2)
	assert.Equal(t, int64(1), cycles[0].Epoch)
	assert.Equal(t, int64(2), cycles[1].Epoch)

	host := s.Snapshot("host")
	require.Len(t, host, 1)
	assert.Equal(t, uint64(1<<20), host[0].HostRSSBytes)
	assert.Equal(t, 12.5, host[0].HostCPUPercent)
}

func TestSink_PostRecordsANamedIntegerSample(t *testing.T) {
	s := NewSink(8, SystemClock{})

	s.Post("worker.queue_depth", 42)
	s.Post("worker.queue_depth", 7)

	got := s.Snapshot("worker.queue_depth")
	require.Len(t, got, 2)
	assert.Equal(t, int64(42), got[0].Value)
	assert.Equal(t, int64(7), got[1].Value)
}

func TestSystemClock_IsMonotonicNonDecreasing(t *testing.T) {
	c := SystemClock{}
	a := c.NowNano()
	b := c.NowNano()
	assert.GreaterOrEqual(t, b, a)

	am := c.NowMicro()
	bm := c.NowMicro()
	assert.GreaterOrEqual(t, bm, am)
}
