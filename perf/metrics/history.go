package metrics

import (
	"sync"
	"time"

	"github.com/wesleyorama2/throughput/perf/histogram"
	"github.com/wesleyorama2/throughput/perf/stats"
)

// Sample is one reporter tick: cumulative counters plus the deltas and
// percentiles of the interval that ended at Timestamp.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`

	Requests int64 `json:"requests"`
	Errors   int64 `json:"errors"`
	Loops    int64 `json:"loops"`

	IntervalRequests int64   `json:"intervalRequests"`
	IntervalErrors   int64   `json:"intervalErrors"`
	RequestRate      float64 `json:"requestRate"`
	ErrorRate        float64 `json:"errorRate"`

	MaxLatency time.Duration `json:"maxLatency"`
	P50        time.Duration `json:"p50"`
	P95        time.Duration `json:"p95"`
	P99        time.Duration `json:"p99"`
}

// History keeps the most recent reporter samples in a ring buffer.
//
// Memory is bounded by the capacity, which matters for continuous runs
// that tick forever.
type History struct {
	mu      sync.RWMutex
	samples []Sample
	head    int // next write position
	count   int

	last     time.Time
	lastReqs int64
	lastErrs int64
}

// NewHistory creates a history retaining up to capacity samples.
// A non-positive capacity keeps one hour of one-second ticks.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 3600
	}
	return &History{
		samples: make([]Sample, capacity),
		last:    time.Now(),
	}
}

// Record appends a sample built from snap and the current window h.
func (hs *History) Record(snap stats.Snapshot, h histogram.Histogram) Sample {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	now := time.Now()
	interval := now.Sub(hs.last).Seconds()
	if interval <= 0 {
		interval = 1.0
	}

	s := Sample{
		Timestamp:        now,
		Requests:         snap.RequestCount,
		Errors:           snap.ErrorCount,
		Loops:            snap.LoopCount,
		IntervalRequests: snap.RequestCount - hs.lastReqs,
		IntervalErrors:   snap.ErrorCount - hs.lastErrs,
		MaxLatency:       snap.MaxRequestTime,
	}
	s.RequestRate = float64(s.IntervalRequests) / interval
	s.ErrorRate = float64(s.IntervalErrors) / interval

	if h != nil {
		s.P50 = h.ValueAtPercentile(50)
		s.P95 = h.ValueAtPercentile(95)
		s.P99 = h.ValueAtPercentile(99)
	}

	hs.samples[hs.head] = s
	hs.head = (hs.head + 1) % len(hs.samples)
	if hs.count < len(hs.samples) {
		hs.count++
	}

	hs.last = now
	hs.lastReqs = snap.RequestCount
	hs.lastErrs = snap.ErrorCount

	return s
}

// Samples returns a copy of the retained samples in chronological order.
func (hs *History) Samples() []Sample {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	out := make([]Sample, 0, hs.count)
	start := (hs.head - hs.count + len(hs.samples)) % len(hs.samples)
	for i := 0; i < hs.count; i++ {
		out = append(out, hs.samples[(start+i)%len(hs.samples)])
	}
	return out
}

// Recent returns up to n of the most recent samples, oldest first.
func (hs *History) Recent(n int) []Sample {
	all := hs.Samples()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Latest returns the most recent sample and whether there is one.
func (hs *History) Latest() (Sample, bool) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	if hs.count == 0 {
		return Sample{}, false
	}
	return hs.samples[(hs.head-1+len(hs.samples))%len(hs.samples)], true
}

// Len returns the number of retained samples.
func (hs *History) Len() int {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	return hs.count
}

// Reset clears all samples.
func (hs *History) Reset() {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	for i := range hs.samples {
		hs.samples[i] = Sample{}
	}
	hs.head = 0
	hs.count = 0
	hs.last = time.Now()
	hs.lastReqs = 0
	hs.lastErrs = 0
}
