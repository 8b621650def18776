// Package sweep implements root-set enumeration, the bi-color mark
// traversal, and a two-pass sweep (extra-object table, then object
// factory) over an opaque heap. The object factory, extra-object table,
// and root-set enumerator are consumed as opaque collaborators through
// the interfaces declared in factory.go.
package sweep

import "sync/atomic"

// Color is the one GC-visible field of an object header.
type Color int32

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "BLACK"
	}
	return "WHITE"
}

// Header is the per-object GC header. The zero value is WHITE, matching
// "new objects are allocated WHITE".
type Header struct {
	color atomic.Int32
}

// Color returns the object's current color.
func (h *Header) Color() Color {
	return Color(h.color.Load())
}

// IsMarked reports whether the object is BLACK — the IsMarked trait used
// during the mark phase.
func (h *Header) IsMarked() bool {
	return h.Color() == Black
}

// TryMark is the TryMark trait: if the object is already BLACK it
// returns false (already on the gray-to-black path via another
// reference); otherwise it marks BLACK and returns true, signaling the
// caller to enqueue the object's referents.
func (h *Header) TryMark() bool {
	return h.color.CompareAndSwap(int32(White), int32(Black))
}

// TryResetMark is the TryResetMark trait used by the object-factory sweep
// pass: it flips BLACK back to WHITE, returning true if the object had in fact
// been BLACK (alive) and false if it was still WHITE (garbage).
func (h *Header) TryResetMark() bool {
	return h.color.CompareAndSwap(int32(Black), int32(White))
}
