package perf

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/wesleyorama2/throughput/perf/executor"
	"github.com/wesleyorama2/throughput/perf/histogram"
	"github.com/wesleyorama2/throughput/perf/probe"
	"github.com/wesleyorama2/throughput/perf/report"
	"github.com/wesleyorama2/throughput/perf/sink"
)

// Default configuration values.
const (
	DefaultWorkers         = 1
	DefaultDuration        = 10 * time.Second
	DefaultReportInterval  = time.Second
	DefaultDrainTimeout    = time.Second
	DefaultHistoryCapacity = 3600
	DefaultChartPath       = "throughput-histogram.png"
)

var (
	// ErrNoFactory is returned when a run is configured without a probe factory.
	ErrNoFactory = errors.New("probe factory is required")

	// ErrAlreadyRun is returned when a Runner is asked to run a second time.
	ErrAlreadyRun = errors.New("runner has already run")
)

// Config is the validated, immutable configuration of a run.
type Config struct {
	// Factory produces one probe task per worker loop iteration
	Factory probe.Factory

	// Workers is the number of concurrent worker loops (default: 1)
	Workers int

	// Duration of the run; 0 runs continuously until stopped (default: 10s)
	Duration time.Duration

	// Histogram prints the percentile block at the end of the run (default: true)
	Histogram bool

	// Chart renders the final distribution through ChartRenderer (default: false)
	Chart bool

	// ChartRenderer is used when Chart is set (default: PNG file)
	ChartRenderer report.ChartRenderer

	// Sink receives every report block (default: zap)
	Sink sink.Sink

	// ReportInterval is the sampling period (default: 1s)
	ReportInterval time.Duration

	// Discipline is stress or blocking (default: stress)
	Discipline executor.Discipline

	// Rate caps loop iterations per second across all workers; 0 is unlimited
	Rate float64

	// DrainTimeout bounds the wait for in-flight stress tasks at shutdown (default: 1s)
	DrainTimeout time.Duration

	// HistogramFactory creates the histogram of each window (default: HDR)
	HistogramFactory histogram.Factory

	// HistoryCapacity is the number of retained samples (default: 3600)
	HistoryCapacity int
}

// Continuous reports whether the run is unbounded.
func (c Config) Continuous() bool {
	return c.Duration == 0
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Factory == nil {
		return ErrNoFactory
	}

	return validation.ValidateStruct(&c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1)),
		validation.Field(&c.Duration, validation.Min(time.Duration(0))),
		validation.Field(&c.ReportInterval, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Discipline, validation.Required, validation.In(executor.Stress, executor.Blocking)),
		validation.Field(&c.Rate, validation.Min(0.0)),
		validation.Field(&c.DrainTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Sink, validation.Required),
		validation.Field(&c.HistoryCapacity, validation.Min(0)),
		validation.Field(&c.ChartRenderer, validation.When(c.Chart, validation.Required)),
	)
}

// defaultConfig returns the configuration a new Builder starts from.
func defaultConfig(factory probe.Factory) Config {
	return Config{
		Factory:         factory,
		Workers:         DefaultWorkers,
		Duration:        DefaultDuration,
		Histogram:       true,
		ReportInterval:  DefaultReportInterval,
		Discipline:      executor.Stress,
		DrainTimeout:    DefaultDrainTimeout,
		HistoryCapacity: DefaultHistoryCapacity,
	}
}
