// Package mockobjects is an in-memory heap implementing the sweep
// package's ObjectFactory, ExtraObjectDataFactory, and RootSetCollector
// contracts, used by collector-level tests and the CLI stress demo in
// place of a real language runtime's allocator.
package mockobjects

import (
	"sync"

	"github.com/google/uuid"

	"github.com/emberlang/embergc/app/core/gc/sweep"
)

// Object is a node in the mock heap: a named, variably-sized vertex with
// outgoing references to other objects.
type Object struct {
	id          string
	header      sweep.Header
	refs        []*Object
	sizeBytes   int64
	finalizable bool
}

func (o *Object) ID() string                 { return o.id }
func (o *Object) Header() *sweep.Header      { return &o.header }
func (o *Object) SizeBytes() int64           { return o.sizeBytes }
func (o *Object) RequiresFinalization() bool { return o.finalizable }

func (o *Object) Referents() []sweep.NodeRef {
	out := make([]sweep.NodeRef, len(o.refs))
	for i, r := range o.refs {
		out[i] = r
	}
	return out
}

// Heap owns every object and extra-object entry under a single mutex —
// adequate for tests and demos, never for a production allocator. It
// exposes its ObjectFactory and ExtraObjectDataFactory views as separate
// types (Objects, ExtraObjects) since both sweep interfaces declare a
// same-named, same-signature GetSizeUnsafe method with different
// meanings, which one Go type cannot implement twice.
type Heap struct {
	mu      sync.Mutex
	objects map[string]*Object
	roots   map[string]*Object
	extra   map[string]*ExtraEntry
}

// NewHeap returns an empty heap.
func NewHeap() *Heap {
	return &Heap{
		objects: make(map[string]*Object),
		roots:   make(map[string]*Object),
		extra:   make(map[string]*ExtraEntry),
	}
}

// Objects returns the sweep.ObjectFactory view of the heap.
func (h *Heap) Objects() *ObjectFactoryView { return &ObjectFactoryView{h} }

// ExtraObjects returns the sweep.ExtraObjectDataFactory view of the
// heap.
func (h *Heap) ExtraObjects() *ExtraObjectFactoryView { return &ExtraObjectFactoryView{h} }

// Allocate creates a new object of sizeBytes, registers it in the heap,
// and returns it. refs become its outgoing edges.
func (h *Heap) Allocate(sizeBytes int64, finalizable bool, refs ...*Object) *Object {
	h.mu.Lock()
	defer h.mu.Unlock()

	o := &Object{
		id:          uuid.New().String(),
		sizeBytes:   sizeBytes,
		finalizable: finalizable,
		refs:        refs,
	}
	h.objects[o.id] = o
	return o
}

// AddRoot pins o as a GC root; AddRoot and RemoveRoot are the mutator's
// equivalent of a local/global variable holding a reference.
func (h *Heap) AddRoot(o *Object) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.roots[o.id] = o
}

// RemoveRoot unpins o; it remains collectible if nothing else reaches
// it.
func (h *Heap) RemoveRoot(o *Object) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.roots, o.id)
}

// CollectRoots implements sweep.RootSetCollector.
func (h *Heap) CollectRoots() []sweep.NodeRef {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]sweep.NodeRef, 0, len(h.roots))
	for _, o := range h.roots {
		out = append(out, o)
	}
	return out
}

// heapUnlocker implements sweep.Unlocker over Heap.mu.
type heapUnlocker struct{ h *Heap }

func (u heapUnlocker) Unlock() { u.h.mu.Unlock() }

// ObjectFactoryView adapts a Heap to sweep.ObjectFactory.
type ObjectFactoryView struct{ h *Heap }

func (v *ObjectFactoryView) LockForIter() sweep.Unlocker {
	v.h.mu.Lock()
	return heapUnlocker{v.h}
}

// Nodes returns a snapshot of every live object. Must be called with the
// iteration lock held (see LockForIter).
func (v *ObjectFactoryView) Nodes() []sweep.NodeRef {
	out := make([]sweep.NodeRef, 0, len(v.h.objects))
	for _, o := range v.h.objects {
		out = append(out, o)
	}
	return out
}

func (v *ObjectFactoryView) Remove(n sweep.NodeRef) {
	delete(v.h.objects, n.ID())
}

func (v *ObjectFactoryView) GetSizeUnsafe() int { return len(v.h.objects) }

func (v *ObjectFactoryView) GetSizeBytesUnsafe() int64 {
	var total int64
	for _, o := range v.h.objects {
		total += o.sizeBytes
	}
	return total
}

// ExtraEntry is a side-table row attached to a base Object, e.g. a weak
// reference or a finalizer registration living outside the object
// itself.
type ExtraEntry struct {
	id   string
	base *Object
}

func (e *ExtraEntry) ID() string { return e.id }

func (e *ExtraEntry) Base() (*sweep.Header, bool) {
	if e.base == nil {
		return nil, false
	}
	return &e.base.header, true
}

// AttachExtra registers a new extra-object entry describing base.
func (h *Heap) AttachExtra(base *Object) *ExtraEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := &ExtraEntry{id: uuid.New().String(), base: base}
	h.extra[e.id] = e
	return e
}

// ExtraObjectFactoryView adapts a Heap to sweep.ExtraObjectDataFactory.
type ExtraObjectFactoryView struct{ h *Heap }

func (v *ExtraObjectFactoryView) Entries() []sweep.ExtraObjectEntry {
	v.h.mu.Lock()
	defer v.h.mu.Unlock()
	out := make([]sweep.ExtraObjectEntry, 0, len(v.h.extra))
	for _, e := range v.h.extra {
		out = append(out, e)
	}
	return out
}

func (v *ExtraObjectFactoryView) Destroy(e sweep.ExtraObjectEntry) {
	v.h.mu.Lock()
	defer v.h.mu.Unlock()
	delete(v.h.extra, e.ID())
}

func (v *ExtraObjectFactoryView) GetSizeUnsafe() int {
	v.h.mu.Lock()
	defer v.h.mu.Unlock()
	return len(v.h.extra)
}
