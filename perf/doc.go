// Package perf measures the throughput and latency of a probe driven by
// concurrent workers.
//
// A probe is any unit of asynchronous work, described by a probe.Factory.
// perf drives it from N independent worker loops for a fixed duration or
// until stopped, aggregates counts, timing totals, a running max latency, a
// latency histogram and per-message error counts, prints a live sample
// every report interval and a summary at the end.
//
// Subpackages provide the individual pieces:
//
//   - perf/probe: the Task and Factory abstraction
//   - perf/stats: the lock-free aggregator shared by all workers
//   - perf/histogram: HDR histograms and the swappable window
//   - perf/executor: the worker pool and its stress and blocking disciplines
//   - perf/report: formatting, the sampling reporter and chart rendering
//   - perf/sink: destinations for report blocks (zap, console, writer)
//   - perf/metrics: Prometheus export and the sample history
//   - perf/rate: the leaky bucket pacing dispatches
//
// # Quick Start
//
//	result, err := perf.New(probe.Async(func() error {
//	    return client.Ping(ctx)
//	})).
//	    Workers(4).
//	    Duration(30 * time.Second).
//	    Run(ctx)
//
//	fmt.Printf("Requests: %d\n", result.Stats.RequestCount)
//	fmt.Printf("P95: %v\n", result.Histogram.ValueAtPercentile(95))
//
// # Disciplines
//
// In the stress discipline (the default) a worker launches a task and moves
// on immediately, so offered load is decoupled from completion latency. In
// the blocking discipline a worker waits for each outcome, so the worker
// count is the exact concurrency bound on the probe.
//
// # Daemon Mode
//
// A Daemon runs in the background, typically in continuous mode where the
// histogram is rotated every 16 report ticks:
//
//	daemon, _ := perf.New(factory).Continuous().Daemon()
//	daemon.Start()
//	defer daemon.Stop()
//
//	fmt.Println(daemon.Stats())
//	fmt.Println(daemon.Histogram())
package perf
