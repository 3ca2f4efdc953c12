// Package stats renders the block I/O counters of a mounted image.
//
// Report writes the fixed text report printed by vfsctl. NewCollector exposes
// the same counters, plus optional file system usage, as a Prometheus
// collector, and OperationMetrics records per-operation latency through the
// diskvfs MetricsCollector hooks.
package stats
