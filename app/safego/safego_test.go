package safego

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGo_PanicIsContainedAndDoesNotCrashTest(t *testing.T) {
	done := make(chan struct{})
	Go("test-goroutine", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine never ran")
	}
	// Reaching here at all proves the panic did not propagate.
}

func TestGo_NonPanickingFunctionRunsNormally(t *testing.T) {
	var ran atomic.Bool
	done := make(chan struct{})
	Go("test-goroutine", func() {
		ran.Store(true)
		close(done)
	})
	<-done
	assert.True(t, ran.Load())
}

func TestGoWithCallback_CallbackRunsOnlyOnPanic(t *testing.T) {
	var callbackRan atomic.Bool
	done := make(chan struct{})
	GoWithCallback("test-goroutine", func() {
		panic("boom")
	}, func() {
		callbackRan.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}
	assert.True(t, callbackRan.Load())
}

func TestGoWithCallback_CallbackDoesNotRunWithoutPanic(t *testing.T) {
	var callbackRan atomic.Bool
	done := make(chan struct{})
	GoWithCallback("test-goroutine", func() {
		close(done)
	}, func() {
		callbackRan.Store(true)
	})
	<-done
	time.Sleep(20 * time.Millisecond)
	assert.False(t, callbackRan.Load())
}

func TestGoWithCallback_PanicInsideCallbackIsAlsoContained(t *testing.T) {
	done := make(chan struct{})
	GoWithCallback("test-goroutine", func() {
		panic("boom")
	}, func() {
		defer close(done)
		panic("boom in callback")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}
}
