package mockobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emberlang/embergc/app/core/gc/sweep"
)

func TestHeap_AllocateChainAllReachableFromRoot(t *testing.T) {
	h := NewHeap()
	c := h.Allocate(10, false)
	b := h.Allocate(10, false, c)
	a := h.Allocate(10, false, b)
	h.AddRoot(a)

	roots := h.CollectRoots()
	marked := sweep.Mark(roots)
	assert.Equal(t, 3, marked)

	fq := sweep.NewFinalizerQueue()
	unlock := h.Objects().LockForIter()
	collected, aliveBytes := sweep.SweepObjectFactory(h.Objects(), fq)
	unlock.Unlock()

	assert.Equal(t, 0, collected, "everything is reachable from the root")
	assert.Equal(t, int64(30), aliveBytes)
	assert.Equal(t, 3, h.Objects().GetSizeUnsafe())
}

func TestHeap_UnrootedObjectIsCollected(t *testing.T) {
	h := NewHeap()
	a := h.Allocate(5, false)
	h.AddRoot(a)
	orphan := h.Allocate(5, false)
	_ = orphan

	roots := h.CollectRoots()
	sweep.Mark(roots)

	fq := sweep.NewFinalizerQueue()
	unlock := h.Objects().LockForIter()
	collected, aliveBytes := sweep.SweepObjectFactory(h.Objects(), fq)
	unlock.Unlock()

	assert.Equal(t, 1, collected)
	assert.Equal(t, int64(5), aliveBytes)
	assert.Equal(t, 1, h.Objects().GetSizeUnsafe())
}

func TestHeap_ExtraObjectEntryTracksBaseReachability(t *testing.T) {
	h := NewHeap()
	live := h.Allocate(1, false)
	dead := h.Allocate(1, false)
	h.AddRoot(live)

	liveEntry := h.AttachExtra(live)
	deadEntry := h.AttachExtra(dead)

	sweep.Mark(h.CollectRoots())

	destroyed := sweep.SweepExtraObjectTable(h.ExtraObjects())
	assert.Equal(t, 1, destroyed)
	assert.Equal(t, 1, h.ExtraObjects().GetSizeUnsafe())

	entries := h.ExtraObjects().Entries()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, liveEntry.ID(), entries[0].ID())
	}
	_ = deadEntry
}

func TestHeap_RemoveRootMakesObjectCollectible(t *testing.T) {
	h := NewHeap()
	a := h.Allocate(1, false)
	h.AddRoot(a)
	h.RemoveRoot(a)

	sweep.Mark(h.CollectRoots())

	fq := sweep.NewFinalizerQueue()
	collected, _ := sweep.SweepObjectFactory(h.Objects(), fq)
	assert.Equal(t, 1, collected)
}
