package perf

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/throughput/perf/executor"
	"github.com/wesleyorama2/throughput/perf/histogram"
	"github.com/wesleyorama2/throughput/perf/probe"
	"github.com/wesleyorama2/throughput/perf/report"
	"github.com/wesleyorama2/throughput/perf/sink"
)

type captured struct {
	text  string
	cause error
}

type captureSink struct {
	mu      sync.Mutex
	entries []captured
}

func (c *captureSink) Report(text string, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, captured{text: text, cause: cause})
}

func (c *captureSink) find(prefix string) []captured {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []captured
	for _, e := range c.entries {
		if strings.HasPrefix(e.text, prefix) {
			out = append(out, e)
		}
	}
	return out
}

func succeedAfter(d time.Duration) probe.Factory {
	return probe.Async(func() error {
		time.Sleep(d)
		return nil
	})
}

// paced builds a stress run whose dispatch rate is capped, so that
// fire-and-forget tests do not spawn unbounded goroutines.
func paced(d time.Duration) *Builder {
	return New(succeedAfter(d)).Rate(2000)
}

func TestBuilder_Defaults(t *testing.T) {
	config, err := New(succeedAfter(0)).Build()
	require.NoError(t, err)

	assert.Equal(t, 1, config.Workers)
	assert.Equal(t, 10*time.Second, config.Duration)
	assert.True(t, config.Histogram)
	assert.False(t, config.Chart)
	assert.Nil(t, config.ChartRenderer)
	assert.Equal(t, time.Second, config.ReportInterval)
	assert.Equal(t, executor.Stress, config.Discipline)
	assert.Equal(t, 0.0, config.Rate)
	assert.IsType(t, &sink.Zap{}, config.Sink)
	assert.NotNil(t, config.HistogramFactory)
	assert.False(t, config.Continuous())
}

func TestBuilder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
	}{
		{"zero workers", New(succeedAfter(0)).Workers(0)},
		{"negative duration", New(succeedAfter(0)).Duration(-time.Second)},
		{"zero interval", New(succeedAfter(0)).ReportInterval(0)},
		{"unknown discipline", New(succeedAfter(0)).Discipline("eager")},
		{"negative rate", New(succeedAfter(0)).Rate(-1)},
		{"negative drain", New(succeedAfter(0)).DrainTimeout(-time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Sink(sink.Discard).Build()
			assert.Error(t, err)
		})
	}
}

func TestBuilder_MissingFactory(t *testing.T) {
	_, err := New(nil).Sink(sink.Discard).Build()
	assert.ErrorIs(t, err, ErrNoFactory)

	_, err = New(nil).Sink(sink.Discard).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoFactory)

	_, err = New(nil).Sink(sink.Discard).Daemon()
	assert.ErrorIs(t, err, ErrNoFactory)
}

func TestBuilder_ChartDefaultsToPNG(t *testing.T) {
	config, err := New(succeedAfter(0)).Sink(sink.Discard).Chart(true).Build()
	require.NoError(t, err)
	assert.IsType(t, &report.PNGChart{}, config.ChartRenderer)
}

func TestBuilder_Stress(t *testing.T) {
	config, err := New(succeedAfter(0)).Sink(sink.Discard).Stress(false).Build()
	require.NoError(t, err)
	assert.Equal(t, executor.Blocking, config.Discipline)
}

func TestRun_StressAlwaysSucceeds(t *testing.T) {
	out := &captureSink{}
	result, err := paced(10*time.Millisecond).
		Workers(4).
		Duration(500 * time.Millisecond).
		ReportInterval(100 * time.Millisecond).
		Sink(out).
		Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	s := result.Stats
	assert.Equal(t, int64(0), s.ErrorCount)
	assert.Greater(t, s.RequestCount, int64(0))
	assert.True(t, result.Drained)
	assert.Equal(t, s.LoopCount, s.RequestCount, "every launched task settled before the summary")
	assert.GreaterOrEqual(t, s.MaxRequestTime, 10*time.Millisecond)
	assert.Less(t, s.MaxRequestTime, 500*time.Millisecond)
	assert.InDelta(t, 10, s.AvgRequestMs(), 15)
	assert.Equal(t, 0.5, result.Seconds)
	assert.Empty(t, result.Errors)

	assert.NotEmpty(t, out.find("Sample results :"))
	require.Len(t, out.find("REQUESTS:"), 1)
	assert.Len(t, out.find("Main percentiles"), 1)
	assert.Len(t, out.find("ERRORS 0 of 0"), 1)
	assert.NotEmpty(t, result.Samples)
}

func TestRun_UnpacedHasNoPacingStats(t *testing.T) {
	result, err := New(probe.Sync(func() error { return nil })).
		Blocking().
		Duration(50 * time.Millisecond).
		ReportInterval(50 * time.Millisecond).
		Sink(sink.Discard).
		Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result.Pacing)
}

func TestRun_BlockingAlwaysFails(t *testing.T) {
	boom := errors.New("boom")
	result, err := New(probe.Async(func() error { return boom })).
		Workers(2).
		Blocking().
		Duration(300 * time.Millisecond).
		ReportInterval(100 * time.Millisecond).
		Sink(sink.Discard).
		Run(context.Background())
	require.NoError(t, err)

	s := result.Stats
	assert.Equal(t, int64(0), s.RequestCount)
	assert.Greater(t, s.ErrorCount, int64(0))
	assert.Equal(t, s.LoopCount, s.ErrorCount)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "boom", result.Errors[0].Message)
	assert.Equal(t, s.ErrorCount, result.Errors[0].Count)
	assert.Same(t, boom, result.Errors[0].Cause)
}

func TestRun_FactoryErrorMatchesCompletionFailure(t *testing.T) {
	run := func(factory probe.Factory) *Result {
		result, err := New(factory).
			Workers(2).
			Blocking().
			Duration(100 * time.Millisecond).
			ReportInterval(50 * time.Millisecond).
			Sink(sink.Discard).
			Run(context.Background())
		require.NoError(t, err)
		return result
	}

	launch := run(func() (probe.Task, error) { return nil, errors.New("boom") })
	async := run(probe.Async(func() error { return errors.New("boom") }))

	for _, result := range []*Result{launch, async} {
		assert.Equal(t, int64(0), result.Stats.RequestCount)
		assert.Equal(t, result.Stats.LoopCount, result.Stats.ErrorCount)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "boom", result.Errors[0].Message)
		assert.Equal(t, result.Stats.ErrorCount, result.Errors[0].Count)
	}
}

func TestRun_ErrorTableReportsCauses(t *testing.T) {
	out := &captureSink{}
	boom := errors.New("boom")
	_, err := New(probe.Failing(boom)).
		Blocking().
		Duration(50 * time.Millisecond).
		ReportInterval(50 * time.Millisecond).
		Sink(out).
		Run(context.Background())
	require.NoError(t, err)

	rows := out.find("")
	var withCause []captured
	for _, r := range rows {
		if r.cause != nil {
			withCause = append(withCause, r)
		}
	}
	require.Len(t, withCause, 1)
	assert.Contains(t, withCause[0].text, "times : boom")
	assert.Same(t, boom, withCause[0].cause)
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := paced(time.Millisecond).
		Duration(time.Hour).
		Sink(sink.Discard).
		Run(ctx)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Greater(t, result.Stats.LoopCount, int64(0))
}

func TestRun_RateLimited(t *testing.T) {
	result, err := New(probe.Sync(func() error { return nil })).
		Workers(4).
		Rate(50).
		Duration(400 * time.Millisecond).
		ReportInterval(100 * time.Millisecond).
		Sink(sink.Discard).
		Run(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Stats.LoopCount, int64(10))
	assert.LessOrEqual(t, result.Stats.LoopCount, int64(40))

	require.NotNil(t, result.Pacing)
	assert.Equal(t, 50.0, result.Pacing.Rate)
	assert.GreaterOrEqual(t, result.Pacing.Dispatched, result.Stats.LoopCount)
}

func TestRun_StopDoesNotWaitForRateSlots(t *testing.T) {
	var runner *Runner
	var launched, afterStop atomic.Int64
	factory := probe.Sync(func() error {
		launched.Add(1)
		if !runner.Running() {
			afterStop.Add(1)
		}
		return nil
	})

	config, err := New(factory).
		Workers(8).
		Rate(1).
		Blocking().
		Duration(500 * time.Millisecond).
		ReportInterval(100 * time.Millisecond).
		Sink(sink.Discard).
		Build()
	require.NoError(t, err)
	runner = NewRunner(config)

	start := time.Now()
	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, int64(0), afterStop.Load())
	assert.Equal(t, int64(1), launched.Load())
	assert.Equal(t, int64(1), result.Stats.LoopCount)
}

func TestRun_ChartFailureIsReturned(t *testing.T) {
	chartErr := errors.New("no display")
	_, err := paced(0).
		Duration(50 * time.Millisecond).
		ReportInterval(50 * time.Millisecond).
		Sink(sink.Discard).
		ChartRenderer(report.ChartRendererFunc(func(histogram.Histogram, string) error { return chartErr })).
		Run(context.Background())
	assert.ErrorIs(t, err, chartErr)
}

func TestRunner_RunsOnce(t *testing.T) {
	runner, err := paced(0).
		Duration(20 * time.Millisecond).
		ReportInterval(20 * time.Millisecond).
		Sink(sink.Discard).
		Runner()
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func continuousDaemon(t *testing.T, out sink.Sink, interval time.Duration) *Daemon {
	t.Helper()

	d, err := paced(time.Millisecond).
		Workers(2).
		Continuous().
		ReportInterval(interval).
		Histogram(false).
		Sink(out).
		Daemon()
	require.NoError(t, err)
	return d
}

func TestDaemon_Lifecycle(t *testing.T) {
	out := &captureSink{}
	d := continuousDaemon(t, out, 10*time.Millisecond)

	assert.False(t, d.Started())
	assert.False(t, d.Stop(), "stop before start has no effect")
	assert.True(t, d.StartTime().IsZero())

	assert.True(t, d.Start())
	assert.False(t, d.Start(), "second start does not launch another run")
	assert.True(t, d.Running())
	assert.False(t, d.StartTime().IsZero())

	require.Eventually(t, func() bool {
		return d.Snapshot().RequestCount > 0 && d.Log() != ""
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, d.Stop())
	assert.False(t, d.Stop(), "second stop has no effect")
	assert.False(t, d.Running())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := d.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, result)

	// no further mutation after the run has finished
	before := d.Snapshot()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before.LoopCount, d.Snapshot().LoopCount)

	assert.Len(t, out.find("REQUESTS:"), 1)
	assert.Empty(t, out.find(DaemonFailed))
	assert.False(t, d.Start(), "a stopped daemon is not restarted")
}

func TestDaemon_Introspection(t *testing.T) {
	boom := errors.New("boom")
	d, err := New(probe.Failing(boom)).
		Blocking().
		Continuous().
		ReportInterval(10 * time.Millisecond).
		Sink(sink.Discard).
		Daemon()
	require.NoError(t, err)

	// introspection works before start
	assert.Contains(t, d.Stats(), "REQUESTS: 0, ERRORS: 0")
	assert.Equal(t, "", d.Log())

	d.Start()
	defer d.Stop()

	require.Eventually(t, func() bool {
		return d.Snapshot().ErrorCount > 0 && len(d.History()) > 0
	}, 2*time.Second, 5*time.Millisecond)

	assert.Contains(t, d.Errors(), "ERRORS 1 of ")
	assert.Contains(t, d.Errors(), "times : boom >> boom")
	assert.Contains(t, d.Histogram(), "Main percentiles (action execution time):")
	assert.Contains(t, d.Stats(), "REQUESTS: 0, ERRORS: ")
	assert.NotEmpty(t, d.Log())
	require.Len(t, d.ErrorTable(), 1)
	assert.Same(t, boom, d.ErrorTable()[0].Cause)

	count, err := testutil.GatherAndCount(registry(t, d.Collector(prometheus.Labels{"run": "test"})),
		"throughput_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func registry(t *testing.T, c prometheus.Collector) *prometheus.Registry {
	t.Helper()
	r := prometheus.NewRegistry()
	require.NoError(t, r.Register(c))
	return r
}

func TestDaemon_ContinuousRotatesHistogram(t *testing.T) {
	out := &captureSink{}
	d := continuousDaemon(t, out, 5*time.Millisecond)

	d.Start()
	defer d.Stop()

	require.Eventually(t, func() bool {
		return d.runner.Stats().Window().Rotations() >= 1
	}, 5*time.Second, 5*time.Millisecond)

	// the rotated-out window was printed before the swap
	assert.NotEmpty(t, out.find("Main percentiles"))
	assert.GreaterOrEqual(t, len(out.find("Sample results :")), report.DefaultRotateEvery)
}

func TestDaemon_FailureIsReported(t *testing.T) {
	out := &captureSink{}
	d, err := paced(0).
		Duration(20 * time.Millisecond).
		ReportInterval(10 * time.Millisecond).
		Sink(out).
		ChartRenderer(report.ChartRendererFunc(func(histogram.Histogram, string) error {
			panic("renderer crashed")
		})).
		Daemon()
	require.NoError(t, err)

	d.Start()

	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not finish")
	}

	failures := out.find(DaemonFailed)
	require.Len(t, failures, 1)
	assert.EqualError(t, failures[0].cause, "panic: renderer crashed")

	_, err = d.Wait(context.Background())
	assert.Error(t, err)
}

func TestDaemon_RunErrorIsReported(t *testing.T) {
	out := &captureSink{}
	chartErr := errors.New("no display")
	d, err := paced(0).
		Duration(20 * time.Millisecond).
		ReportInterval(10 * time.Millisecond).
		Sink(out).
		ChartRenderer(report.ChartRendererFunc(func(histogram.Histogram, string) error { return chartErr })).
		Daemon()
	require.NoError(t, err)

	d.Start()
	_, err = d.Wait(context.Background())
	assert.ErrorIs(t, err, chartErr)

	failures := out.find(DaemonFailed)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].cause, chartErr)
}

func TestDaemon_StatsClampsElapsed(t *testing.T) {
	d := continuousDaemon(t, sink.Discard, 10*time.Millisecond)
	d.Start()
	defer d.Stop()

	require.Eventually(t, func() bool {
		return d.Snapshot().RequestCount > 0
	}, 2*time.Second, 5*time.Millisecond)

	// well under a second has elapsed; rates must still be finite
	assert.NotContains(t, d.Stats(), "+Inf r/s")
}
