// Package metric provides Prometheus metrics for Strongbox.
//
// The snapshot coordinator is the main instrumented surface: operation
// counts by outcome, operation latency, and the size of the last written
// snapshot file. Metrics registration is optional; components run fine
// with a nil metrics handle.
package metric
