package report

import (
	"strings"
	"sync/atomic"

	"github.com/wesleyorama2/throughput/perf/histogram"
	"github.com/wesleyorama2/throughput/perf/sink"
	"github.com/wesleyorama2/throughput/perf/stats"
)

// Printer emits formatted blocks to a sink and remembers the last one.
type Printer struct {
	sink sink.Sink
	last atomic.Pointer[string]
}

// NewPrinter creates a printer over s. A nil sink discards everything.
func NewPrinter(s sink.Sink) *Printer {
	if s == nil {
		s = sink.Discard
	}
	return &Printer{sink: s}
}

// Emit reports text and records it as the last block.
func (p *Printer) Emit(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	p.remember(text)
	p.sink.Report(text, nil)
}

// Last returns the most recently emitted block, or "" before the first.
func (p *Printer) Last() string {
	if s := p.last.Load(); s != nil {
		return *s
	}
	return ""
}

// Sample emits the live sample block.
func (p *Printer) Sample(text string) {
	p.Emit(text)
}

// Errors emits the error table. The header goes out as a plain block and
// every row is reported together with its representative cause, so sinks
// that log causes can attach them. It returns the formatted table.
func (p *Printer) Errors(entries []stats.ErrorEntry, total int64) string {
	text := FormatErrors(entries, total)

	p.sink.Report(FormatErrorHeader(entries, total), nil)
	for _, e := range entries {
		p.sink.Report(FormatErrorRow(e), e.Cause)
	}
	p.remember(text)
	return text
}

// Summary emits the final summary block and returns it.
func (p *Printer) Summary(s stats.Snapshot, seconds float64) string {
	text := FormatSummary(s, seconds)
	p.Emit(text)
	return text
}

// Histogram emits the percentile block of h and returns it.
func (p *Printer) Histogram(h histogram.Histogram) string {
	text := FormatHistogram(h)
	p.Emit(text)
	return text
}

func (p *Printer) remember(text string) {
	text = strings.TrimRight(text, "\n")
	p.last.Store(&text)
}
