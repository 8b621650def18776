package scheduler

import (
	"sync"
	"time"
)

// Timer is a single background goroutine that invokes fn at a
// caller-updatable wall-clock deadline. Unlike a fixed-interval ticker,
// nothing rearms it automatically — fn (or whoever owns the Timer) must
// call Reschedule to arrange the next firing.
type Timer struct {
	fn func()

	rescheduleCh chan time.Time
	stopOnce     sync.Once
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// NewTimer starts the background goroutine and returns a Timer armed to
// fire once at deadline.
func NewTimer(deadline time.Time, fn func()) *Timer {
	t := &Timer{
		fn:           fn,
		rescheduleCh: make(chan time.Time, 1),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	go t.run(deadline)
	return t
}

func (t *Timer) run(deadline time.Time) {
	defer close(t.doneCh)

	tm := time.NewTimer(time.Until(deadline))
	defer tm.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case next := <-t.rescheduleCh:
			if !tm.Stop() {
				select {
				case <-tm.C:
				default:
				}
			}
			tm.Reset(time.Until(next))
		case <-tm.C:
			t.fn()
		}
	}
}

// Reschedule arranges for the timer to next fire at next, replacing any
// previously pending reschedule that has not yet taken effect.
func (t *Timer) Reschedule(next time.Time) {
	for {
		select {
		case t.rescheduleCh <- next:
			return
		default:
			select {
			case <-t.rescheduleCh:
			default:
			}
		}
	}
}

// Stop halts the background goroutine and blocks until it has exited.
// Safe to call more than once.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	<-t.doneCh
}
