// Package telemetry supplies the collector's monotonic clock and a
// ring-buffered sink recording one Sample per completed cycle, for the
// CLI `stats`/`observe` commands and tests.
package telemetry

import "time"

// Clock abstracts "what time is it" so collection-pause measurements
// are immune to wall-clock adjustments (NTP step, leap seconds) and so
// tests can substitute a fake.
type Clock interface {
	// NowNano returns a monotonically non-decreasing nanosecond count.
	// Only differences between two NowNano calls are meaningful — the
	// absolute value carries no wall-clock meaning.
	NowNano() int64

	// NowMicro returns a monotonically non-decreasing microsecond count
	// from the same clock source as NowNano, for readers that only need
	// microsecond resolution.
	NowMicro() int64
}

// SystemClock reads time.Now() and returns its Unix wall-clock value
// (UnixNano/UnixMicro). That conversion drops the monotonic reading
// time.Now() carries, so a wall-clock step adjustment shows up in its
// values. Used when NewPlatformMonotonicClock's syscall path is
// unavailable or undesired.
type SystemClock struct{}

func (SystemClock) NowNano() int64  { return time.Now().UnixNano() }
func (SystemClock) NowMicro() int64 { return time.Now().UnixMicro() }

var _ Clock = SystemClock{}
