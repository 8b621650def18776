package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sample is one named measurement: a completed GC cycle's record (Name
// is the collector's own cycle stream, the rest of the fields filled
// in), a hostmetrics process snapshot, or any other named integer
// series posted via Sink.Post.
type Sample struct {
	ID        string // unique sample ID
	Name      string
	Value     int64
	Epoch     int64
	StartedAt time.Time

	DurationNs            int64
	ObjectsCollected      int
	ExtraObjectsDestroyed int
	AliveSetBytes         int64
	TargetHeapBytes       int64
	Forced                bool // not set by the collector: its cycle samples always carry false, OnOOM cycles included

	HostRSSBytes   uint64
	HostVMBytes    uint64
	HostCPUPercent float64
}

// Subscriber receives samples, across every named stream, as they are
// recorded.
type Subscriber chan Sample

// ring is a fixed-capacity circular buffer of Samples belonging to one
// named stream.
type ring struct {
	samples []Sample
	head    int
	count   int
}

func newRing(capacity int) *ring {
	return &ring{samples: make([]Sample, capacity)}
}

func (r *ring) push(capacity int, sample Sample) {
	r.samples[r.head] = sample
	r.head = (r.head + 1) % capacity
	if r.count < capacity {
		r.count++
	}
}

func (r *ring) snapshot(capacity int) []Sample {
	out := make([]Sample, r.count)
	for i := 0; i < r.count; i++ {
		idx := (r.head - r.count + i + capacity) % capacity
		out[i] = r.samples[idx]
	}
	return out
}

// Sink is a named multiset of fixed-capacity ring buffers — one per
// stream name — with live subscription support across every stream at
// once. The collector posts its GC-cycle samples under one stream
// name, hostmetrics posts under another, and any other subsystem can
// introduce its own simply by naming it in Post or Record.
type Sink struct {
	mu          sync.RWMutex
	clock       Clock
	streams     map[string]*ring
	capacity    int
	subscribers map[string]Subscriber
	closed      bool
}

// NewSink constructs a Sink whose every stream holds up to capacity
// samples. clock stamps StartedAt when the caller leaves it zero, and
// supplies "now" for Rate's trailing window.
func NewSink(capacity int, clock Clock) *Sink {
	if capacity <= 0 {
		capacity = 1024
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Sink{
		clock:       clock,
		streams:     make(map[string]*ring),
		capacity:    capacity,
		subscribers: make(map[string]Subscriber),
	}
}

// Post appends value to the named stream as a bare integer sample,
// stamped with the current time — the generic entry point for any
// subsystem that just wants to track a named counter or gauge over
// time without filling in a full Sample.
func (s *Sink) Post(name string, value int64) {
	s.Record(Sample{Name: name, Value: value})
}

// Record appends a sample to its Name's stream, overwriting that
// stream's oldest entry once it is at capacity, and fans it out to
// every live subscriber (non-blocking — a slow subscriber drops
// samples rather than stalling the GC thread).
func (s *Sink) Record(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if sample.ID == "" {
		sample.ID = uuid.New().String()
	}
	if sample.StartedAt.IsZero() {
		sample.StartedAt = time.Unix(0, s.clock.NowNano())
	}

	r, ok := s.streams[sample.Name]
	if !ok {
		r = newRing(s.capacity)
		s.streams[sample.Name] = r
	}
	r.push(s.capacity, sample)

	for _, sub := range s.subscribers {
		select {
		case sub <- sample:
		default:
		}
	}
}

// Snapshot returns every sample currently retained in the named
// stream, oldest first. An unknown name returns an empty slice.
func (s *Sink) Snapshot(name string) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.streams[name]
	if !ok {
		return nil
	}
	return r.snapshot(s.capacity)
}

// Subscribe registers a channel that receives every subsequently
// recorded sample across every stream, and returns an unsubscribe
// function.
func (s *Sink) Subscribe() (Subscriber, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		ch := make(Subscriber)
		close(ch)
		return ch, func() {}
	}

	id := uuid.New().String()
	ch := make(Subscriber, 64)
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			close(sub)
			delete(s.subscribers, id)
		}
	}
}

// Rate returns the number of samples recorded on the named stream
// within the trailing window divided by the window's length in seconds,
// i.e. samples per second, useful for a "collections/sec" readout.
// An unknown name returns 0.
func (s *Sink) Rate(name string, window time.Duration) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.streams[name]
	if !ok || r.count == 0 {
		return 0
	}
	cutoff := time.Unix(0, s.clock.NowNano()).Add(-window)
	n := 0
	for i := 0; i < r.count; i++ {
		idx := (r.head - r.count + i + s.capacity) % s.capacity
		if r.samples[idx].StartedAt.After(cutoff) {
			n++
		}
	}
	return float64(n) / window.Seconds()
}

// Close shuts down the sink and every active subscriber channel.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, sub := range s.subscribers {
		close(sub)
		delete(s.subscribers, id)
	}
}
