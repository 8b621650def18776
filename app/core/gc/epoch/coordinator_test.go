package epoch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_Coalesces(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	results := make([]int64, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Schedule()
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, int64(1), r, "all concurrent Schedule() calls must coalesce to the same epoch")
	}

	// A second round of calls, with no intervening cycle, still returns
	// the same pending epoch.
	assert.Equal(t, int64(1), c.Schedule())
}

func TestSchedule_AdvancesAfterStart(t *testing.T) {
	c := New()
	assert.Equal(t, int64(1), c.Schedule())

	c.Start(1)
	// scheduled(1) <= started(1), so the next Schedule() call advances.
	assert.Equal(t, int64(2), c.Schedule())
}

func TestWaitEpochFinished_Blocks(t *testing.T) {
	c := New()
	e := c.Schedule()

	done := make(chan struct{})
	go func() {
		c.WaitEpochFinished(e)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitEpochFinished returned before Finish was called")
	case <-time.After(50 * time.Millisecond):
	}

	c.Start(e)
	c.Finish(e)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitEpochFinished did not unblock after Finish")
	}
}

func TestWaitEpochFinalized_Blocks(t *testing.T) {
	c := New()
	e := c.Schedule()
	c.Start(e)
	c.Finish(e)

	done := make(chan struct{})
	go func() {
		c.WaitEpochFinalized(e)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitEpochFinalized returned before Finalized was called")
	case <-time.After(50 * time.Millisecond):
	}

	c.Finalized(e)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitEpochFinalized did not unblock after Finalized")
	}
}

func TestWaitCurrentFinished(t *testing.T) {
	c := New()
	e := c.Schedule()
	c.Start(e)

	done := make(chan int64)
	go func() {
		done <- c.WaitCurrentFinished()
	}()

	time.Sleep(20 * time.Millisecond)
	c.Finish(e)

	got := <-done
	assert.Equal(t, e, got)
}

func TestWaitScheduled_ReturnsShutdown(t *testing.T) {
	c := New()

	done := make(chan int64)
	go func() {
		done <- c.WaitScheduled()
	}()

	time.Sleep(20 * time.Millisecond)
	c.RequestShutdown()

	got := <-done
	assert.Equal(t, Shutdown, got)
}

func TestWaitFinalizersRequired_ReturnsShutdown(t *testing.T) {
	c := New()

	done := make(chan int64)
	go func() {
		done <- c.WaitFinalizersRequired()
	}()

	time.Sleep(20 * time.Millisecond)
	c.Start(Shutdown)
	c.Finish(Shutdown)

	got := <-done
	assert.Equal(t, Shutdown, got)
}

func TestEpochCountersStayOrderedAcrossCycles(t *testing.T) {
	c := New()
	for i := int64(1); i <= 5; i++ {
		e := c.Schedule()
		c.Start(e)
		c.Finish(e)
		c.Finalized(e)

		scheduled, started, finished, finalized := c.Snapshot()
		assert.True(t, finalized <= finished, "finalized <= finished")
		assert.True(t, finished <= started, "finished <= started")
		assert.True(t, started <= scheduled, "started <= scheduled")
	}
}

func TestCounterRegression_Panics(t *testing.T) {
	c := New()
	c.Start(5)
	assert.Panics(t, func() { c.Start(3) })
}

func TestWaitScheduled_MultipleCyclesAdvanceByOne(t *testing.T) {
	c := New()

	e1 := c.Schedule()
	require.Equal(t, int64(1), e1)
	c.Start(e1)
	c.Finish(e1)
	c.Finalized(e1)

	e2 := c.Schedule()
	require.Equal(t, int64(2), e2)
}
