package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot operation labels.
const (
	OpFill        = "fill"
	OpWrite       = "write"
	OpRead        = "read"
	OpSynchronize = "synchronize"

	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// SnapshotMetrics instruments coordinator operations. A nil receiver is
// valid and drops every observation, so callers never need to branch.
type SnapshotMetrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	fileSize prometheus.Gauge
}

// NewSnapshotMetrics creates the metric set and registers it.
func NewSnapshotMetrics(registry *prometheus.Registry) *SnapshotMetrics {
	m := &SnapshotMetrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "strongbox",
			Subsystem: "snapshot",
			Name:      "ops_total",
			Help:      "Snapshot coordinator operations by outcome",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "strongbox",
			Subsystem: "snapshot",
			Name:      "op_duration_seconds",
			Help:      "Snapshot coordinator operation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		fileSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "strongbox",
			Subsystem: "snapshot",
			Name:      "file_size_bytes",
			Help:      "Size of the last written snapshot file",
		}),
	}
	registry.MustRegister(m.ops, m.duration, m.fileSize)
	return m
}

// Observe records one finished operation.
func (m *SnapshotMetrics) Observe(op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.ops.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetFileSize records the size of the last written snapshot file.
func (m *SnapshotMetrics) SetFileSize(bytes int64) {
	if m == nil {
		return
	}
	m.fileSize.Set(float64(bytes))
}
