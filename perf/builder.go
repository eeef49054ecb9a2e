package perf

import (
	"context"
	"time"

	"github.com/wesleyorama2/throughput/perf/executor"
	"github.com/wesleyorama2/throughput/perf/histogram"
	"github.com/wesleyorama2/throughput/perf/probe"
	"github.com/wesleyorama2/throughput/perf/report"
	"github.com/wesleyorama2/throughput/perf/sink"
)

// Builder assembles a run configuration.
//
//	result, err := perf.New(probe.Async(callService)).
//	    Workers(8).
//	    Duration(30 * time.Second).
//	    Blocking().
//	    Run(ctx)
type Builder struct {
	config Config
}

// New starts a builder for factory with default settings.
func New(factory probe.Factory) *Builder {
	return &Builder{config: defaultConfig(factory)}
}

// Factory sets the probe factory.
func (b *Builder) Factory(factory probe.Factory) *Builder {
	b.config.Factory = factory
	return b
}

// Workers sets the number of concurrent worker loops.
func (b *Builder) Workers(n int) *Builder {
	b.config.Workers = n
	return b
}

// Duration sets the run length; 0 runs continuously until stopped.
func (b *Builder) Duration(d time.Duration) *Builder {
	b.config.Duration = d
	return b
}

// Continuous makes the run unbounded.
func (b *Builder) Continuous() *Builder {
	return b.Duration(0)
}

// Histogram toggles the final percentile block.
func (b *Builder) Histogram(display bool) *Builder {
	b.config.Histogram = display
	return b
}

// Chart toggles rendering the final distribution.
func (b *Builder) Chart(display bool) *Builder {
	b.config.Chart = display
	return b
}

// ChartRenderer sets the chart renderer and enables the chart.
func (b *Builder) ChartRenderer(r report.ChartRenderer) *Builder {
	b.config.ChartRenderer = r
	b.config.Chart = r != nil
	return b
}

// Sink sets the destination of report blocks and background failures.
func (b *Builder) Sink(s sink.Sink) *Builder {
	b.config.Sink = s
	return b
}

// ReportInterval sets the sampling period.
func (b *Builder) ReportInterval(d time.Duration) *Builder {
	b.config.ReportInterval = d
	return b
}

// Stress selects fire-and-forget dispatch (true) or blocking (false).
func (b *Builder) Stress(stress bool) *Builder {
	if stress {
		return b.Discipline(executor.Stress)
	}
	return b.Discipline(executor.Blocking)
}

// Blocking selects the blocking discipline.
func (b *Builder) Blocking() *Builder {
	return b.Discipline(executor.Blocking)
}

// Discipline sets the execution discipline.
func (b *Builder) Discipline(d executor.Discipline) *Builder {
	b.config.Discipline = d
	return b
}

// Rate caps loop iterations per second across all workers; 0 removes the cap.
func (b *Builder) Rate(perSecond float64) *Builder {
	b.config.Rate = perSecond
	return b
}

// DrainTimeout bounds the wait for in-flight stress tasks at shutdown.
func (b *Builder) DrainTimeout(d time.Duration) *Builder {
	b.config.DrainTimeout = d
	return b
}

// HistogramFactory sets the histogram implementation of each window.
func (b *Builder) HistogramFactory(f histogram.Factory) *Builder {
	b.config.HistogramFactory = f
	return b
}

// HistoryCapacity sets how many reporter samples are retained.
func (b *Builder) HistoryCapacity(n int) *Builder {
	b.config.HistoryCapacity = n
	return b
}

// Build fills unset collaborators with defaults, validates and returns the
// configuration.
func (b *Builder) Build() (Config, error) {
	config := b.config

	if config.Sink == nil {
		config.Sink = sink.Default()
	}
	if config.Chart && config.ChartRenderer == nil {
		config.ChartRenderer = report.NewPNGChart(DefaultChartPath)
	}
	if config.HistogramFactory == nil {
		config.HistogramFactory = histogram.NewHDRFactory()
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Run builds the configuration and performs a synchronous run. It returns
// once the final summary has been printed.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	runner, err := b.Runner()
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

// Runner builds the configuration and returns a Runner for one run.
func (b *Builder) Runner() (*Runner, error) {
	config, err := b.Build()
	if err != nil {
		return nil, err
	}
	return NewRunner(config), nil
}

// Daemon builds the configuration and returns a daemon that has not been
// started.
func (b *Builder) Daemon() (*Daemon, error) {
	runner, err := b.Runner()
	if err != nil {
		return nil, err
	}
	return newDaemon(runner), nil
}
