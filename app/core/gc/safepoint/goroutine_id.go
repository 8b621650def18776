package safepoint

import (
	"runtime"
	"strconv"
	"strings"
)

// currentGoroutineID parses the calling goroutine's ID out of its own
// stack trace header ("goroutine 123 [running]:"). Used only to bind a
// ThreadData to the goroutine that actually drives its safepoints (which
// need not be the goroutine that constructed it) and, from that, to back
// IsCurrentThreadRegistered's invariant check. The safepoint path calls
// it only while a ThreadData is still unbound, i.e. on its first
// safepoint.
func currentGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := strings.Fields(string(buf[:n]))[1]
	id, _ := strconv.ParseInt(field, 10, 64)
	return id
}
