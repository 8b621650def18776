//go:build linux

package telemetry

import (
	"time"

	"golang.org/x/sys/unix"
)

// PlatformMonotonicClock reads CLOCK_MONOTONIC directly via the raw
// syscall, bypassing the Go runtime's own monotonic-reading cache. Used
// by the embergctl harness as both its collector's clock and its
// telemetry sink's clock.
type PlatformMonotonicClock struct{}

func (PlatformMonotonicClock) NowNano() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return SystemClock{}.NowNano()
	}
	return ts.Nano()
}

func (PlatformMonotonicClock) NowMicro() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return SystemClock{}.NowMicro()
	}
	return ts.Nano() / int64(time.Microsecond)
}

// NewPlatformMonotonicClock returns the best available monotonic clock
// for the current platform.
func NewPlatformMonotonicClock() Clock { return PlatformMonotonicClock{} }

var _ Clock = PlatformMonotonicClock{}
