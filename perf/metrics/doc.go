// Package metrics exposes the live state of a measurement run outside the
// report blocks.
//
// # Prometheus
//
// Collector reads an Aggregator at scrape time:
//
//	registry := prometheus.NewRegistry()
//	registry.MustRegister(metrics.NewCollector(aggregator, prometheus.Labels{"run": "api"}))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// # Sample History
//
// History keeps one Sample per reporter tick in a bounded ring buffer, so a
// continuous run can be charted without growing without limit.
package metrics
