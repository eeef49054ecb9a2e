package perf

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/throughput/perf/executor"
	"github.com/wesleyorama2/throughput/perf/histogram"
	"github.com/wesleyorama2/throughput/perf/metrics"
	"github.com/wesleyorama2/throughput/perf/rate"
	"github.com/wesleyorama2/throughput/perf/report"
	"github.com/wesleyorama2/throughput/perf/stats"
)

// Result contains the outcome of a finished run.
type Result struct {
	// StartTime is when the workers were launched
	StartTime time.Time `json:"startTime"`

	// EndTime is when the final summary was printed
	EndTime time.Time `json:"endTime"`

	// Duration is the wall time of the run
	Duration time.Duration `json:"duration"`

	// Seconds is the divisor used for the summary rates
	Seconds float64 `json:"seconds"`

	// Stats are the final counters
	Stats stats.Snapshot `json:"stats"`

	// Errors is the final error table
	Errors []stats.ErrorEntry `json:"errors,omitempty"`

	// Rotations is the number of continuous-mode window rotations
	Rotations int64 `json:"rotations"`

	// Drained is false when stress tasks were still in flight at the end
	Drained bool `json:"drained"`

	// Pacing reports the dispatch limiter when a rate was set
	Pacing *rate.Stats `json:"pacing,omitempty"`

	// Samples are the retained reporter ticks
	Samples []metrics.Sample `json:"samples,omitempty"`

	// Histogram is the last histogram window
	Histogram histogram.Histogram `json:"-"`
}

// Runner executes one measurement run.
//
// The aggregator, histogram window and run state are created with the
// runner and stay readable after the run, so a Daemon can serve them while
// the run is in progress.
type Runner struct {
	config  Config
	stats   *stats.Aggregator
	state   *executor.State
	printer *report.Printer
	history *metrics.History
	limiter *rate.LeakyBucket

	ran atomic.Bool
}

// NewRunner creates a runner for a validated configuration.
func NewRunner(config Config) *Runner {
	r := &Runner{
		config:  config,
		stats:   stats.NewAggregator(histogram.NewWindow(config.HistogramFactory)),
		state:   executor.NewState(),
		printer: report.NewPrinter(config.Sink),
		history: metrics.NewHistory(config.HistoryCapacity),
	}
	if config.Rate > 0 {
		r.limiter = rate.NewLeakyBucket(config.Rate)
	}
	return r
}

// Config returns the run configuration.
func (r *Runner) Config() Config {
	return r.config
}

// Stats returns the aggregator of the run.
func (r *Runner) Stats() *stats.Aggregator {
	return r.stats
}

// History returns the sample history of the run.
func (r *Runner) History() *metrics.History {
	return r.history
}

// Pacing returns the dispatch limiter statistics, or nil when the run is
// not rate limited.
func (r *Runner) Pacing() *rate.Stats {
	if r.limiter == nil {
		return nil
	}
	st := r.limiter.Stats()
	return &st
}

// Stop requests the run to end. It returns true for the call that flipped
// the run state.
func (r *Runner) Stop() bool {
	return r.state.Stop()
}

// Running reports whether the run has not been stopped.
func (r *Runner) Running() bool {
	return r.state.Running()
}

// Run performs the run on the calling goroutine and returns after the final
// summary has been printed. Cancelling ctx stops the run cooperatively.
//
// A Runner runs once; later calls return ErrAlreadyRun.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if !r.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	r.stats.Reset()
	r.history.Reset()

	pool := executor.NewPool(executor.Config{
		Workers:    r.config.Workers,
		Discipline: r.config.Discipline,
		Limiter:    r.limiter,
	}, r.config.Factory, r.stats, r.state)

	reporter := report.NewReporter(report.Config{
		Interval:     r.config.ReportInterval,
		Duration:     r.config.Duration,
		Histogram:    r.config.Histogram,
		Chart:        r.chart(),
		DrainTimeout: r.config.DrainTimeout,
		History:      r.history,
	}, r.stats, r.state, pool, r.printer)

	start := time.Now()
	pool.Start(ctx)

	summary, err := reporter.Run(ctx, start)
	return r.result(summary), err
}

func (r *Runner) chart() report.ChartRenderer {
	if !r.config.Chart {
		return nil
	}
	return r.config.ChartRenderer
}

func (r *Runner) result(summary *report.Summary) *Result {
	if summary == nil {
		return nil
	}
	return &Result{
		StartTime: summary.Start,
		EndTime:   summary.End,
		Duration:  summary.End.Sub(summary.Start),
		Seconds:   summary.Seconds,
		Stats:     summary.Snapshot,
		Errors:    summary.Errors,
		Rotations: r.stats.Window().Rotations(),
		Drained:   summary.Drained,
		Pacing:    r.Pacing(),
		Samples:   r.history.Samples(),
		Histogram: r.stats.Window().Current(),
	}
}
