// Package report formats and emits the periodic samples and end-of-run
// summaries of a measurement run.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wesleyorama2/throughput/perf/histogram"
	"github.com/wesleyorama2/throughput/perf/stats"
)

// Percentiles are the percentiles listed in a histogram block.
var Percentiles = []float64{5, 25, 50, 75, 80, 85, 90, 95, 99}

// FormatSample formats the live sample block for a run that has been going
// for elapsed. Rates are per second; the average latency is NaN until the
// first completion.
func FormatSample(s stats.Snapshot, elapsed time.Duration) string {
	elapsedMs := float64(elapsed) / float64(time.Millisecond)

	var b strings.Builder
	b.WriteString("Sample results :\n")
	fmt.Fprintf(&b, " - request rate  : %s r/s\n", num(float64(s.RequestCount)*1000/elapsedMs))
	fmt.Fprintf(&b, " - error rate    : %s e/s\n", num(float64(s.ErrorCount)*1000/elapsedMs))
	fmt.Fprintf(&b, " - max exec time : %s ms\n", num(s.MaxRequestMs()))
	fmt.Fprintf(&b, " - avg exec time : %s ms\n", num(s.AvgRequestMs()))
	return b.String()
}

// FormatErrorHeader formats the first line of the error table.
func FormatErrorHeader(entries []stats.ErrorEntry, total int64) string {
	return fmt.Sprintf("ERRORS %d of %d", len(entries), total)
}

// FormatErrorRow formats one error table row without its cause.
func FormatErrorRow(e stats.ErrorEntry) string {
	return fmt.Sprintf("%d times : %s", e.Count, e.Message)
}

// FormatErrors formats the full error table: a header with the number of
// distinct messages and the total failure count, then one row per message
// followed by its representative cause.
func FormatErrors(entries []stats.ErrorEntry, total int64) string {
	var b strings.Builder
	b.WriteString(FormatErrorHeader(entries, total))
	b.WriteByte('\n')
	for _, e := range entries {
		fmt.Fprintf(&b, "%s >> %v\n", FormatErrorRow(e), e.Cause)
	}
	return b.String()
}

// FormatSummary formats the end-of-run summary. seconds is the divisor used
// for the rates and the effective request interval.
func FormatSummary(s stats.Snapshot, seconds float64) string {
	avg := s.AvgRequestMs()

	var b strings.Builder
	fmt.Fprintf(&b, "REQUESTS: %d, ERRORS: %d, TOTAL_EXEC_TIME_MS: %d, TOTAL_LOOP_TIME_MS: %d, LOOPS: %d\n",
		s.RequestCount, s.ErrorCount, s.TotalRequestMs(), s.TotalLoopMs(), s.LoopCount)
	fmt.Fprintf(&b, "  request rate  : %s r/s\n", num(float64(s.RequestCount)/seconds))
	fmt.Fprintf(&b, "  error rate    : %s e/s\n", num(float64(s.ErrorCount)/seconds))
	fmt.Fprintf(&b, "  max exec time : %s ms\n", num(s.MaxRequestMs()))
	fmt.Fprintf(&b, "  avg exec time : %s ms\n", num(avg))
	fmt.Fprintf(&b, "  avg loop time : %s ms\n", num(s.AvgLoopMs()))
	fmt.Fprintf(&b, "  thread rate   : %s r/s\n", num(1000/avg))
	fmt.Fprintf(&b, "  effective req : %s ms\n", num(seconds*1000/float64(s.RequestCount)))
	return b.String()
}

// FormatHistogram formats the percentile block of h.
func FormatHistogram(h histogram.Histogram) string {
	var b strings.Builder
	b.WriteString("Main percentiles (action execution time):\n")
	for _, p := range Percentiles {
		fmt.Fprintf(&b, "  %3s%%: %s ms\n", strconv.FormatFloat(p, 'f', -1, 64), num(ms(h.ValueAtPercentile(p))))
	}
	return b.String()
}

// num renders a float with millisecond-friendly precision. NaN and the
// infinities produced by empty runs are rendered as-is.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
