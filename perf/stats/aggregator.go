// Package stats provides the lock-free statistics aggregator shared by all
// workers of a measurement run.
package stats

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/throughput/perf/histogram"
)

// Aggregator accumulates counters, timing totals, a grow-only max latency and
// the per-message error tables of a run.
//
// # Thread Safety
//
// Every Record and Observe method is safe for concurrent use and never takes
// a lock: counters are atomics, the max is a compare-and-swap loop and the
// error tables are sync.Maps written with insert-if-absent. Reset is the
// exception and must only be called while no workers are running.
type Aggregator struct {
	requestCount atomic.Int64
	loopCount    atomic.Int64
	errorCount   atomic.Int64

	// nanoseconds
	totalRequestTime atomic.Int64
	totalLoopTime    atomic.Int64
	maxRequestTime   atomic.Int64

	// message -> error (first writer wins)
	errors sync.Map
	// message -> *atomic.Int64
	errorCounts sync.Map

	window *histogram.Window

	sealed atomic.Bool
	late   atomic.Int64
}

// NewAggregator creates an aggregator feeding latencies into window.
// A nil window gets a default HDR window.
func NewAggregator(window *histogram.Window) *Aggregator {
	if window == nil {
		window = histogram.NewWindow(nil)
	}
	return &Aggregator{window: window}
}

// Window returns the histogram window latencies are recorded into.
func (a *Aggregator) Window() *histogram.Window {
	return a.window
}

// RecordCompletion records a successful completion of a task started at start.
func (a *Aggregator) RecordCompletion(start time.Time) {
	if a.dropLate() {
		return
	}

	elapsed := time.Since(start)
	a.observeMax(elapsed)
	a.totalRequestTime.Add(int64(elapsed))
	a.requestCount.Add(1)
	a.window.Record(elapsed)
}

// RecordFailure records a failed task started at start.
//
// The failure is keyed by cause.Error(), or "" for a nil cause. The first
// cause seen for a message is kept as its representative; later causes with
// the same message only increment the count.
func (a *Aggregator) RecordFailure(start time.Time, cause error) {
	if a.dropLate() {
		return
	}

	elapsed := time.Since(start)
	a.observeMax(elapsed)
	a.window.Record(elapsed)

	msg := MessageOf(cause)

	// count first so a published representative is always covered by both counts
	a.counterFor(msg).Add(1)
	a.errorCount.Add(1)
	a.errors.LoadOrStore(msg, representative{cause: cause})
}

// ObserveLoop records one worker loop iteration that started at start and
// whose launch (or completion, in blocking mode) took sample.
func (a *Aggregator) ObserveLoop(start time.Time, sample time.Duration) {
	if a.dropLate() {
		return
	}

	a.observeMax(sample)
	a.totalLoopTime.Add(int64(time.Since(start)))
	a.loopCount.Add(1)
}

// observeMax raises maxRequestTime to d unless a larger value is already
// stored. It retries on lost races instead of locking.
func (a *Aggregator) observeMax(d time.Duration) {
	sample := int64(d)
	for {
		current := a.maxRequestTime.Load()
		if sample <= current {
			return
		}
		if a.maxRequestTime.CompareAndSwap(current, sample) {
			return
		}
	}
}

// counterFor returns the occurrence counter for msg, creating it if absent.
func (a *Aggregator) counterFor(msg string) *atomic.Int64 {
	if c, ok := a.errorCounts.Load(msg); ok {
		return c.(*atomic.Int64)
	}
	c, _ := a.errorCounts.LoadOrStore(msg, new(atomic.Int64))
	return c.(*atomic.Int64)
}

func (a *Aggregator) dropLate() bool {
	if a.sealed.Load() {
		a.late.Add(1)
		return true
	}
	return false
}

// Seal stops the aggregator from accepting further records. Records that
// arrive afterwards, typically completions of fire-and-forget tasks still in
// flight when the run ended, are dropped and counted by Late.
func (a *Aggregator) Seal() {
	a.sealed.Store(true)
}

// Sealed reports whether Seal has been called since the last Reset.
func (a *Aggregator) Sealed() bool {
	return a.sealed.Load()
}

// Late returns the number of records dropped after Seal.
func (a *Aggregator) Late() int64 {
	return a.late.Load()
}

// Reset clears all counters and tables and reopens a sealed aggregator.
// It must not be called while workers are running.
func (a *Aggregator) Reset() {
	a.requestCount.Store(0)
	a.loopCount.Store(0)
	a.errorCount.Store(0)
	a.totalRequestTime.Store(0)
	a.totalLoopTime.Store(0)
	a.maxRequestTime.Store(0)

	a.errors.Clear()
	a.errorCounts.Clear()

	a.window.Reset()
	a.late.Store(0)
	a.sealed.Store(false)
}

// Snapshot returns a best-effort point-in-time view of the counters.
func (a *Aggregator) Snapshot() Snapshot {
	return Snapshot{
		RequestCount:     a.requestCount.Load(),
		LoopCount:        a.loopCount.Load(),
		ErrorCount:       a.errorCount.Load(),
		TotalRequestTime: time.Duration(a.totalRequestTime.Load()),
		TotalLoopTime:    time.Duration(a.totalLoopTime.Load()),
		MaxRequestTime:   time.Duration(a.maxRequestTime.Load()),
		Late:             a.late.Load(),
	}
}

// Errors returns the error table ordered by descending count, then message.
func (a *Aggregator) Errors() []ErrorEntry {
	var entries []ErrorEntry

	a.errors.Range(func(key, value any) bool {
		msg := key.(string)
		entry := ErrorEntry{
			Message: msg,
			Cause:   value.(representative).cause,
		}
		if c, ok := a.errorCounts.Load(msg); ok {
			entry.Count = c.(*atomic.Int64).Load()
		}
		entries = append(entries, entry)
		return true
	})

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Message < entries[j].Message
	})

	return entries
}

// ErrorCount returns the occurrence count recorded for msg.
func (a *Aggregator) ErrorCount(msg string) int64 {
	if c, ok := a.errorCounts.Load(msg); ok {
		return c.(*atomic.Int64).Load()
	}
	return 0
}

// representative wraps a cause so a nil error can be stored in a sync.Map
// and still be distinguished from an absent key.
type representative struct {
	cause error
}

// MessageOf returns the error-table key for err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
