// Package histogram provides the latency distribution used by the measurement
// engine and the atomically swappable window that holds it.
package histogram

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram receives latency samples and answers percentile queries.
//
// Implementations must be safe for concurrent RecordValue calls interleaved
// with percentile reads.
type Histogram interface {
	// RecordValue adds one latency sample.
	RecordValue(d time.Duration)

	// ValueAtPercentile returns the latency at percentile p (0..100).
	// An empty histogram returns 0.
	ValueAtPercentile(p float64) time.Duration

	// TotalCount returns the number of recorded samples.
	TotalCount() int64
}

// Factory creates a fresh, empty histogram.
type Factory func() Histogram

// Config contains the range and precision of an HDR histogram.
type Config struct {
	// Min is the lowest recordable value in microseconds (default: 1)
	Min int64

	// Max is the highest recordable value in microseconds (default: 3600000000 = 1 hour)
	Max int64

	// SigFigs is the number of significant figures (default: 3)
	SigFigs int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Min:     1,
		Max:     3600000000, // 1 hour in microseconds
		SigFigs: 3,
	}
}

// HDR is a Histogram backed by an HDR histogram with microsecond resolution.
//
// # Thread Safety
//
// hdrhistogram.Histogram is NOT thread-safe, so every access holds a mutex.
type HDR struct {
	mu     sync.Mutex
	hist   *hdrhistogram.Histogram
	config Config
}

// NewHDR creates an HDR histogram with the default configuration.
func NewHDR() *HDR {
	return NewHDRWithConfig(DefaultConfig())
}

// NewHDRWithConfig creates an HDR histogram with a custom configuration.
func NewHDRWithConfig(config Config) *HDR {
	return &HDR{
		hist:   hdrhistogram.New(config.Min, config.Max, config.SigFigs),
		config: config,
	}
}

// NewHDRFactory returns a Factory producing default HDR histograms.
func NewHDRFactory() Factory {
	return func() Histogram {
		return NewHDR()
	}
}

// RecordValue records a latency, clamped into the configured range.
func (h *HDR) RecordValue(d time.Duration) {
	micros := d.Microseconds()
	if micros < h.config.Min {
		micros = h.config.Min
	}
	if micros > h.config.Max {
		micros = h.config.Max
	}

	h.mu.Lock()
	// clamped above, so RecordValue cannot fail
	_ = h.hist.RecordValue(micros)
	h.mu.Unlock()
}

// ValueAtPercentile returns the latency at percentile p.
func (h *HDR) ValueAtPercentile(p float64) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.hist.TotalCount() == 0 {
		return 0
	}
	return time.Duration(h.hist.ValueAtQuantile(p)) * time.Microsecond
}

// TotalCount returns the number of recorded samples.
func (h *HDR) TotalCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.TotalCount()
}

var _ Histogram = (*HDR)(nil)
