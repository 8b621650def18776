package sweep

import (
	"runtime"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// IsMarkedByExtraObject reports whether an extra-object-table entry
// should survive its sweep pass: an entry whose base object is no
// longer on the heap is treated as marked (vacuously alive), otherwise
// it is alive iff its base object is BLACK.
func IsMarkedByExtraObject(e ExtraObjectEntry) bool {
	header, onHeap := e.Base()
	if !onHeap {
		return true
	}
	return header.IsMarked()
}

// extraObjectShards is the number of lock-striped buckets the
// extra-object sweep fans out across. This is purely a throughput
// refinement over a serial sweep: it changes no observable semantics of
// IsMarkedByExtraObject.
const extraObjectShards = 16

// SweepExtraObjectTable destroys every entry whose base object is
// unreachable. Entries are partitioned by xxhash of their ID into fixed
// shards and swept concurrently; an entry never moves between shards
// mid-sweep since partitioning is computed from a single upfront
// snapshot.
func SweepExtraObjectTable(f ExtraObjectDataFactory) int {
	entries := f.Entries()
	if len(entries) == 0 {
		return 0
	}

	shards := make([][]ExtraObjectEntry, extraObjectShards)
	for _, e := range entries {
		h := xxhash.Sum64String(e.ID()) % extraObjectShards
		shards[h] = append(shards[h], e)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		destroyed int
	)
	workers := min(runtime.GOMAXPROCS(0), extraObjectShards)
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	for _, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(shard []ExtraObjectEntry) {
			defer wg.Done()
			defer func() { <-sem }()
			local := 0
			for _, e := range shard {
				if !IsMarkedByExtraObject(e) {
					f.Destroy(e)
					local++
				}
			}
			mu.Lock()
			destroyed += local
			mu.Unlock()
		}(shard)
	}
	wg.Wait()

	return destroyed
}

// SweepObjectFactory iterates every live node and, via TryResetMark,
// decides whether the node survives (was BLACK, now reset to WHITE) or
// is garbage. Garbage nodes needing finalization are appended to fq;
// the rest are unlinked outright. It returns the number of objects
// collected and the total byte size of objects that survived (the
// alive-set bytes driving autotune).
func SweepObjectFactory(f ObjectFactory, fq *FinalizerQueue) (collected int, aliveBytes int64) {
	for _, n := range f.Nodes() {
		if n.Header().TryResetMark() {
			aliveBytes += n.SizeBytes()
			continue
		}

		f.Remove(n)
		collected++
		if n.RequiresFinalization() {
			fq.Append(n)
		}
	}
	return collected, aliveBytes
}
