// Package safego launches the collector's long-running goroutines (the
// GC thread, the finalizer thread) with panic containment: a panic
// inside one of them is logged and the goroutine exits, but the rest of
// the process keeps running rather than crashing outright.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go starts fn in its own goroutine, recovering any panic it raises and
// logging it with context instead of letting it escape and crash the
// process.
func Go(context string, fn func()) {
	go func() {
		defer Recover(context)
		fn()
	}()
}

// GoWithCallback is like Go but additionally invokes callback if (and
// only if) fn panicked — used by the collector to advance its epoch
// counters to the shutdown epoch when a service thread dies, so
// ScheduleAndWaitFullGC*/OnOOM* callers are not left blocked forever.
func GoWithCallback(context string, fn func(), callback func()) {
	go func() {
		defer recoverWithCallback(context, callback)
		fn()
	}()
}

// Recover is deferred directly inside a goroutine to contain a panic.
func Recover(context string) {
	if r := recover(); r != nil {
		slog.Error("recovered goroutine panic",
			slog.String("context", context),
			slog.Any("error", r),
			slog.String("stack", string(debug.Stack())),
		)
	}
}

func recoverWithCallback(context string, callback func()) {
	if r := recover(); r != nil {
		slog.Error("recovered goroutine panic",
			slog.String("context", context),
			slog.Any("error", r),
			slog.String("stack", string(debug.Stack())),
		)
		if callback != nil {
			func() {
				defer func() {
					if r2 := recover(); r2 != nil {
						slog.Error("panic in goroutine panic callback",
							slog.String("context", context),
							slog.Any("error", r2),
						)
					}
				}()
				callback()
			}()
		}
	}
}
