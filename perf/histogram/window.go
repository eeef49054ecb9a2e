package histogram

import (
	"sync/atomic"
	"time"
)

// slot boxes a Histogram so it can be published through atomic.Pointer.
type slot struct {
	hist Histogram
}

// Window is an atomically published reference to the histogram of the
// current measurement window.
//
// Writers and readers call Current at the moment of use and never cache the
// result, so a Rotate is visible to every goroutine on its next access. A
// sample racing a rotation may land in either the old or the new window.
type Window struct {
	current   atomic.Pointer[slot]
	factory   Factory
	rotations atomic.Int64
}

// NewWindow creates a window holding a fresh histogram from factory.
// A nil factory defaults to HDR histograms.
func NewWindow(factory Factory) *Window {
	if factory == nil {
		factory = NewHDRFactory()
	}

	w := &Window{factory: factory}
	w.current.Store(&slot{hist: factory()})
	return w
}

// Current returns the histogram of the current window.
func (w *Window) Current() Histogram {
	return w.current.Load().hist
}

// Record adds a sample to the current window.
func (w *Window) Record(d time.Duration) {
	w.Current().RecordValue(d)
}

// Rotate publishes a fresh, empty histogram and returns the previous one.
func (w *Window) Rotate() Histogram {
	old := w.current.Swap(&slot{hist: w.factory()})
	w.rotations.Add(1)
	return old.hist
}

// Reset publishes a fresh histogram without counting a rotation.
func (w *Window) Reset() {
	w.current.Store(&slot{hist: w.factory()})
	w.rotations.Store(0)
}

// Rotations returns how many times the window has been rotated.
func (w *Window) Rotations() int64 {
	return w.rotations.Load()
}
