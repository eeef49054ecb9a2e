package perf

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wesleyorama2/throughput/perf/histogram"
	"github.com/wesleyorama2/throughput/perf/metrics"
	"github.com/wesleyorama2/throughput/perf/probe"
	"github.com/wesleyorama2/throughput/perf/rate"
	"github.com/wesleyorama2/throughput/perf/report"
	"github.com/wesleyorama2/throughput/perf/stats"
)

// DaemonFailed is the text reported to the sink when a background run fails.
const DaemonFailed = "DAEMON FAILED"

// Daemon hosts a run on a background goroutine and serves live views of
// it to other goroutines.
//
// A Daemon moves from not started to running to stopped. Start and Stop
// are idempotent and a stopped daemon cannot be restarted. The introspection
// methods may be called at any time and return best-effort snapshots.
type Daemon struct {
	runner *Runner

	mu      sync.Mutex
	started bool
	start   atomic.Int64 // unix nanoseconds
	cancel  context.CancelFunc

	done   chan struct{}
	result *Result
	err    error
}

func newDaemon(runner *Runner) *Daemon {
	return &Daemon{
		runner: runner,
		done:   make(chan struct{}),
	}
}

// Start launches the run in the background. Only the first call has an
// effect; it returns true for that call.
func (d *Daemon) Start() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.start.Store(time.Now().UnixNano())
	d.started = true

	go d.run(ctx)
	return true
}

// Stop requests the run to end. It has no effect before Start or after the
// first call, and returns true only for the call that stopped the run.
// Workers finish their current iteration; the final summary is printed by
// the background goroutine, see Wait.
func (d *Daemon) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return false
	}
	return d.runner.Stop()
}

func (d *Daemon) run(ctx context.Context) {
	defer close(d.done)
	defer d.cancel()

	defer func() {
		if r := recover(); r != nil {
			d.err = probe.NewPanicError(r)
			d.runner.config.Sink.Report(DaemonFailed, d.err)
		}
	}()

	result, err := d.runner.Run(ctx)
	d.result = result
	if err != nil {
		d.err = fmt.Errorf("daemon run: %w", err)
		d.runner.config.Sink.Report(DaemonFailed, d.err)
	}
}

// Started reports whether Start has been called.
func (d *Daemon) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// Running reports whether the daemon has been started and not stopped.
func (d *Daemon) Running() bool {
	return d.Started() && d.runner.Running()
}

// StartTime returns when Start was called, or the zero time.
func (d *Daemon) StartTime() time.Time {
	if ns := d.start.Load(); ns != 0 {
		return time.Unix(0, ns)
	}
	return time.Time{}
}

// Done returns a channel closed once the background run has printed its
// final summary.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the background run has finished or ctx is done.
// Failures of the run are returned as well as reported to the sink.
func (d *Daemon) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-d.done:
		return d.result, d.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Log returns the last block emitted by the run.
func (d *Daemon) Log() string {
	return d.runner.printer.Last()
}

// Errors formats the current error table.
func (d *Daemon) Errors() string {
	agg := d.runner.Stats()
	return report.FormatErrors(agg.Errors(), agg.Snapshot().ErrorCount)
}

// Histogram formats the percentiles of the current window.
func (d *Daemon) Histogram() string {
	return report.FormatHistogram(d.CurrentHistogram())
}

// Stats formats the summary of the run so far, dividing by the elapsed
// seconds since Start clamped to at least one.
func (d *Daemon) Stats() string {
	return report.FormatSummary(d.Snapshot(), report.StatsSeconds(d.elapsed()))
}

// Snapshot returns the current counters.
func (d *Daemon) Snapshot() stats.Snapshot {
	return d.runner.Stats().Snapshot()
}

// ErrorTable returns the current error table rows.
func (d *Daemon) ErrorTable() []stats.ErrorEntry {
	return d.runner.Stats().Errors()
}

// CurrentHistogram returns the histogram of the current window.
func (d *Daemon) CurrentHistogram() histogram.Histogram {
	return d.runner.Stats().Window().Current()
}

// History returns the retained reporter samples.
func (d *Daemon) History() []metrics.Sample {
	return d.runner.History().Samples()
}

// Pacing returns the dispatch limiter statistics, or nil without a rate.
func (d *Daemon) Pacing() *rate.Stats {
	return d.runner.Pacing()
}

// Collector returns a Prometheus collector over the run's aggregator.
func (d *Daemon) Collector(constLabels prometheus.Labels) prometheus.Collector {
	return metrics.NewCollector(d.runner.Stats(), constLabels)
}

func (d *Daemon) elapsed() time.Duration {
	start := d.StartTime()
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}
