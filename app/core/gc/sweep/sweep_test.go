package sweep

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testNode is a minimal NodeRef used only by this package's unit tests;
// the fuller in-memory heap test double lives in app/core/gc/mockobjects
// for use by the collector and CLI demo.
type testNode struct {
	id          string
	header      Header
	refs        []NodeRef
	finalizable bool
	size        int64
}

func (n *testNode) ID() string                  { return n.id }
func (n *testNode) Header() *Header             { return &n.header }
func (n *testNode) Referents() []NodeRef        { return n.refs }
func (n *testNode) RequiresFinalization() bool  { return n.finalizable }
func (n *testNode) SizeBytes() int64            { return n.size }

type testFactory struct {
	nodes map[string]*testNode
}

func newTestFactory() *testFactory { return &testFactory{nodes: map[string]*testNode{}} }

func (f *testFactory) add(n *testNode) { f.nodes[n.id] = n }

func (f *testFactory) LockForIter() Unlocker { return noopUnlock{} }

func (f *testFactory) Nodes() []NodeRef {
	out := make([]NodeRef, 0, len(f.nodes))
	for _, n := range f.nodes {
		out = append(out, n)
	}
	return out
}

func (f *testFactory) Remove(n NodeRef) { delete(f.nodes, n.ID()) }

func (f *testFactory) GetSizeUnsafe() int { return len(f.nodes) }

func (f *testFactory) GetSizeBytesUnsafe() int64 {
	var total int64
	for _, n := range f.nodes {
		total += n.size
	}
	return total
}

type noopUnlock struct{}

func (noopUnlock) Unlock() {}

type testExtraEntry struct {
	id   string
	base *Header
}

func (e *testExtraEntry) ID() string { return e.id }
func (e *testExtraEntry) Base() (*Header, bool) { return e.base, e.base != nil }

type testExtraFactory struct {
	mu        sync.Mutex
	entries   map[string]*testExtraEntry
	destroyed map[string]bool
}

func newTestExtraFactory() *testExtraFactory {
	return &testExtraFactory{entries: map[string]*testExtraEntry{}, destroyed: map[string]bool{}}
}

func (f *testExtraFactory) Entries() []ExtraObjectEntry {
	out := make([]ExtraObjectEntry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	return out
}

func (f *testExtraFactory) Destroy(e ExtraObjectEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, e.ID())
	f.destroyed[e.ID()] = true
}

func (f *testExtraFactory) GetSizeUnsafe() int { return len(f.entries) }

func TestMark_TraversesReferents(t *testing.T) {
	c := &testNode{id: "C", size: 1}
	b := &testNode{id: "B", refs: []NodeRef{c}, size: 1}
	a := &testNode{id: "A", refs: []NodeRef{b}, size: 1}

	marked := Mark([]NodeRef{a})

	assert.Equal(t, 3, marked)
	assert.True(t, a.header.IsMarked())
	assert.True(t, b.header.IsMarked())
	assert.True(t, c.header.IsMarked())
}

func TestMark_HandlesCyclesWithoutInfiniteLoop(t *testing.T) {
	a := &testNode{id: "A", size: 1}
	b := &testNode{id: "B", refs: []NodeRef{a}, size: 1}
	a.refs = []NodeRef{b} // a <-> b cycle

	marked := Mark([]NodeRef{a})
	assert.Equal(t, 2, marked)
}

// TestScenario_CollectUnreachable allocates A, B, C, retains only A as
// a root, and collects: object count drops by 2 and A stays WHITE
// afterward.
func TestScenario_CollectUnreachable(t *testing.T) {
	factory := newTestFactory()
	a := &testNode{id: "A", size: 10}
	b := &testNode{id: "B", size: 10}
	c := &testNode{id: "C", size: 10}
	factory.add(a)
	factory.add(b)
	factory.add(c)

	before := factory.GetSizeUnsafe()
	require.Equal(t, 3, before)

	Mark([]NodeRef{a}) // only A is a root

	fq := NewFinalizerQueue()
	collected, aliveBytes := SweepObjectFactory(factory, fq)

	assert.Equal(t, 2, collected)
	assert.Equal(t, before-2, factory.GetSizeUnsafe())
	assert.Equal(t, int64(10), aliveBytes)
	assert.Equal(t, White, a.header.Color(), "surviving object must be reset to WHITE")
	assert.Zero(t, fq.Len(), "neither B nor C requires finalization in this scenario")
}

func TestSweepObjectFactory_RoutesFinalizableGarbageToQueue(t *testing.T) {
	factory := newTestFactory()
	live := &testNode{id: "live", size: 1}
	garbagePlain := &testNode{id: "plain", size: 1}
	garbageFinalizable := &testNode{id: "fin", size: 1, finalizable: true}
	factory.add(live)
	factory.add(garbagePlain)
	factory.add(garbageFinalizable)

	Mark([]NodeRef{live})

	fq := NewFinalizerQueue()
	collected, _ := SweepObjectFactory(factory, fq)

	assert.Equal(t, 2, collected)
	assert.Equal(t, 1, fq.Len())
	items := fq.Take()
	require.Len(t, items, 1)
	assert.Equal(t, "fin", items[0].ID())
	assert.Zero(t, fq.Len(), "Take must drain the queue")
}

func TestSweepExtraObjectTable_DestroysUnmarkedEntries(t *testing.T) {
	extra := newTestExtraFactory()

	live := &testNode{id: "live"}
	dead := &testNode{id: "dead"}
	Mark([]NodeRef{live})

	for i := 0; i < 64; i++ {
		id := fmt.Sprintf("entry-live-%d", i)
		extra.entries[id] = &testExtraEntry{id: id, base: &live.header}
	}
	for i := 0; i < 64; i++ {
		id := fmt.Sprintf("entry-dead-%d", i)
		extra.entries[id] = &testExtraEntry{id: id, base: &dead.header}
	}
	extra.entries["detached"] = &testExtraEntry{id: "detached", base: nil}

	destroyed := SweepExtraObjectTable(extra)

	assert.Equal(t, 64, destroyed)
	assert.Equal(t, 65, extra.GetSizeUnsafe(), "64 live-backed + 1 detached entry must survive")
	for i := 0; i < 64; i++ {
		assert.True(t, extra.destroyed[fmt.Sprintf("entry-dead-%d", i)])
	}
}

func TestIsMarkedByExtraObject_DetachedEntryIsVacuouslyMarked(t *testing.T) {
	e := &testExtraEntry{id: "x", base: nil}
	assert.True(t, IsMarkedByExtraObject(e))
}
