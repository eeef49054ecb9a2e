// Package sink provides the destinations report blocks and failures are
// emitted to.
//
// The engine never writes to a terminal or log directly: every formatted
// block, and every failure that escapes a background run, goes through a
// Sink. Implementations must be safe for concurrent use.
package sink

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Sink receives a block of formatted text and an optional cause.
type Sink interface {
	Report(text string, cause error)
}

// Func adapts a function to the Sink interface.
type Func func(text string, cause error)

// Report calls f.
func (f Func) Report(text string, cause error) {
	f(text, cause)
}

// Discard drops everything.
var Discard Sink = Func(func(string, error) {})

// Writer writes each block to w, followed by " > cause" when a cause is
// present. Writes are serialized.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a Writer sink over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Stdout returns a plain Writer sink over os.Stdout.
func Stdout() *Writer {
	return NewWriter(os.Stdout)
}

// Report writes text and the cause's message.
func (s *Writer) Report(text string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cause != nil {
		fmt.Fprintf(s.w, "%s > %v\n", text, cause)
		return
	}
	fmt.Fprintln(s.w, text)
}

// Multi fans every report out to all sinks in order.
func Multi(sinks ...Sink) Sink {
	return Func(func(text string, cause error) {
		for _, s := range sinks {
			s.Report(text, cause)
		}
	})
}
