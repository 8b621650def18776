//go:build !linux

package telemetry

// NewPlatformMonotonicClock falls back to SystemClock on platforms
// without a golang.org/x/sys/unix CLOCK_MONOTONIC binding wired up.
func NewPlatformMonotonicClock() Clock { return SystemClock{} }
