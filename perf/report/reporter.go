package report

import (
	"context"
	"fmt"
	"time"

	"github.com/wesleyorama2/throughput/perf/executor"
	"github.com/wesleyorama2/throughput/perf/metrics"
	"github.com/wesleyorama2/throughput/perf/stats"
)

// DefaultRotateEvery is the number of ticks between histogram rotations in
// continuous mode.
const DefaultRotateEvery = 16

// ChartTitle is the title used when rendering the final chart.
const ChartTitle = "Request time (ms)"

// Workers is the part of a worker pool the reporter shuts down.
type Workers interface {
	Wait() error
	Drain(timeout time.Duration) bool
}

// Config contains configuration for a Reporter.
type Config struct {
	// Interval between samples
	Interval time.Duration

	// Duration of the run; 0 runs until stopped
	Duration time.Duration

	// Histogram prints the percentile block at the end of the run
	Histogram bool

	// Chart renders the final distribution when set, alongside the histogram block
	Chart ChartRenderer

	// DrainTimeout bounds how long in-flight tasks are awaited at shutdown
	DrainTimeout time.Duration

	// RotateEvery overrides DefaultRotateEvery
	RotateEvery int

	// History receives one sample per tick when set
	History *metrics.History
}

// Continuous reports whether the run is unbounded.
func (c Config) Continuous() bool {
	return c.Duration == 0
}

// Summary describes how a run ended.
type Summary struct {
	Start    time.Time
	End      time.Time
	Seconds  float64
	Snapshot stats.Snapshot
	Errors   []stats.ErrorEntry
	Drained  bool
}

// Reporter samples the aggregator on a fixed cadence while workers run and
// prints the end-of-run report once they stop.
type Reporter struct {
	config  Config
	stats   *stats.Aggregator
	state   *executor.State
	workers Workers
	printer *Printer
}

// NewReporter creates a reporter.
func NewReporter(config Config, aggregator *stats.Aggregator, state *executor.State, workers Workers, printer *Printer) *Reporter {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	if config.RotateEvery <= 0 {
		config.RotateEvery = DefaultRotateEvery
	}
	return &Reporter{
		config:  config,
		stats:   aggregator,
		state:   state,
		workers: workers,
		printer: printer,
	}
}

// Run samples until the duration elapses, the state is stopped or ctx is
// done, then stops the workers and prints the final report. start is the
// moment the workers were launched.
//
// A worker or chart failure is returned after the report has been printed.
func (r *Reporter) Run(ctx context.Context, start time.Time) (*Summary, error) {
	end := start.Add(r.config.Duration)
	tick := 0

	for {
		wait := r.config.Interval
		if !r.config.Continuous() {
			if remaining := time.Until(end); remaining < wait {
				wait = remaining
			}
		}

		r.sleep(ctx, wait)

		snap := r.stats.Snapshot()
		r.printer.Sample(FormatSample(snap, time.Since(start)))
		if r.config.History != nil {
			r.config.History.Record(snap, r.stats.Window().Current())
		}

		if r.config.Continuous() {
			tick++
			if tick%r.config.RotateEvery == 0 {
				r.printer.Histogram(r.stats.Window().Current())
				r.stats.Window().Rotate()
			}
		}

		if !r.state.Running() {
			break
		}
		if !r.config.Continuous() && !time.Now().Before(end) {
			break
		}
	}

	return r.finish(start)
}

// sleep waits for d, waking early when the run is stopped. A done ctx stops
// the run.
func (r *Reporter) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-r.state.Done():
	case <-ctx.Done():
		r.state.Stop()
	}
}

func (r *Reporter) finish(start time.Time) (*Summary, error) {
	r.state.Stop()

	waitErr := r.workers.Wait()
	drained := r.workers.Drain(r.config.DrainTimeout)
	r.stats.Seal()
	finished := time.Now()

	summary := &Summary{
		Start:    start,
		End:      finished,
		Seconds:  r.summarySeconds(finished.Sub(start)),
		Snapshot: r.stats.Snapshot(),
		Errors:   r.stats.Errors(),
		Drained:  drained,
	}

	r.printer.Errors(summary.Errors, summary.Snapshot.ErrorCount)
	r.printer.Summary(summary.Snapshot, summary.Seconds)

	if r.config.Histogram {
		r.printer.Histogram(r.stats.Window().Current())
	}

	if waitErr != nil {
		return summary, fmt.Errorf("workers failed: %w", waitErr)
	}

	if r.config.Histogram && r.config.Chart != nil {
		if err := r.config.Chart.Display(r.stats.Window().Current(), ChartTitle); err != nil {
			return summary, fmt.Errorf("failed to display chart: %w", err)
		}
	}

	return summary, nil
}

// summarySeconds returns the divisor for the final rates: the configured
// duration for a bounded run that ran to its end, otherwise the elapsed
// seconds clamped to at least one.
func (r *Reporter) summarySeconds(elapsed time.Duration) float64 {
	if !r.config.Continuous() && elapsed >= r.config.Duration {
		return r.config.Duration.Seconds()
	}
	return StatsSeconds(elapsed)
}

// StatsSeconds returns elapsed in seconds, clamped to at least one so that
// rates are defined before the first second has passed.
func StatsSeconds(elapsed time.Duration) float64 {
	if s := elapsed.Seconds(); s > 1 {
		return s
	}
	return 1
}
