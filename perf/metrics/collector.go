package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wesleyorama2/throughput/perf/stats"
)

// Namespace prefixes every exported metric name.
const Namespace = "throughput"

// quantiles exported from the current histogram window.
var quantiles = []float64{50, 90, 95, 99}

// Collector exports an Aggregator to Prometheus.
//
// Values are read from the aggregator at scrape time, so the collector
// costs nothing on the worker hot path.
type Collector struct {
	stats *stats.Aggregator

	requests    *prometheus.Desc
	loops       *prometheus.Desc
	errors      *prometheus.Desc
	requestTime *prometheus.Desc
	loopTime    *prometheus.Desc
	maxRequest  *prometheus.Desc
	late        *prometheus.Desc
	rotations   *prometheus.Desc
	latency     *prometheus.Desc
	windowCount *prometheus.Desc
	byMessage   *prometheus.Desc
}

// NewCollector creates a collector over aggregator. constLabels are attached
// to every metric, typically the run name.
func NewCollector(aggregator *stats.Aggregator, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, "", name), help, labels, constLabels)
	}

	return &Collector{
		stats:       aggregator,
		requests:    desc("requests_total", "Successful probe completions"),
		loops:       desc("loops_total", "Worker loop iterations"),
		errors:      desc("errors_total", "Probe failures, launch and completion"),
		requestTime: desc("request_seconds_total", "Summed completion latency"),
		loopTime:    desc("loop_seconds_total", "Summed worker loop time"),
		maxRequest:  desc("max_request_seconds", "Largest latency observed"),
		late:        desc("late_records_total", "Records dropped after the run was sealed"),
		rotations:   desc("window_rotations_total", "Histogram window rotations"),
		latency:     desc("window_latency_seconds", "Latency percentiles of the current histogram window", "percentile"),
		windowCount: desc("window_samples", "Samples in the current histogram window"),
		byMessage:   desc("errors_by_message_total", "Probe failures by error message", "message"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.loops
	ch <- c.errors
	ch <- c.requestTime
	ch <- c.loopTime
	ch <- c.maxRequest
	ch <- c.late
	ch <- c.rotations
	ch <- c.latency
	ch <- c.windowCount
	ch <- c.byMessage
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Snapshot()
	window := c.stats.Window()
	current := window.Current()

	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(snap.RequestCount))
	ch <- prometheus.MustNewConstMetric(c.loops, prometheus.CounterValue, float64(snap.LoopCount))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(snap.ErrorCount))
	ch <- prometheus.MustNewConstMetric(c.requestTime, prometheus.CounterValue, snap.TotalRequestTime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.loopTime, prometheus.CounterValue, snap.TotalLoopTime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.maxRequest, prometheus.GaugeValue, snap.MaxRequestTime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.late, prometheus.CounterValue, float64(snap.Late))
	ch <- prometheus.MustNewConstMetric(c.rotations, prometheus.CounterValue, float64(window.Rotations()))
	ch <- prometheus.MustNewConstMetric(c.windowCount, prometheus.GaugeValue, float64(current.TotalCount()))

	for _, q := range quantiles {
		ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue,
			current.ValueAtPercentile(q).Seconds(), strconv.FormatFloat(q, 'f', -1, 64))
	}

	for _, e := range c.stats.Errors() {
		ch <- prometheus.MustNewConstMetric(c.byMessage, prometheus.CounterValue, float64(e.Count), e.Message)
	}
}

var _ prometheus.Collector = (*Collector)(nil)
