package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics records VFS operations in Prometheus.
// It implements diskvfs.MetricsCollector.
type OperationMetrics struct {
	latency *prometheus.HistogramVec
	errors  *prometheus.CounterVec
	bytes   *prometheus.CounterVec
}

// NewOperationMetrics creates the metrics and registers them with reg.
func NewOperationMetrics(reg prometheus.Registerer) (*OperationMetrics, error) {
	m := &OperationMetrics{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "diskvfs",
			Name:      "operation_duration_seconds",
			Help:      "Latency of VFS operations.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diskvfs",
			Name:      "operation_errors_total",
			Help:      "Failed VFS operations.",
		}, []string{"op"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diskvfs",
			Name:      "io_bytes_total",
			Help:      "File bytes moved by read and write.",
		}, []string{"op"}),
	}

	for _, c := range []prometheus.Collector{m.latency, m.errors, m.bytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *OperationMetrics) record(op string, d time.Duration, err error) {
	m.latency.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		m.errors.WithLabelValues(op).Inc()
	}
}

func (m *OperationMetrics) RecordCreat(isDir bool, d time.Duration, err error) {
	op := "creat"
	if isDir {
		op = "mkdir"
	}
	m.record(op, d, err)
}

func (m *OperationMetrics) RecordOpen(d time.Duration, err error) { m.record("open", d, err) }

func (m *OperationMetrics) RecordClose(d time.Duration, err error) { m.record("close", d, err) }

func (m *OperationMetrics) RecordUnlink(d time.Duration, err error) { m.record("unlink", d, err) }

func (m *OperationMetrics) RecordRead(n int, d time.Duration, err error) {
	m.record("read", d, err)
	m.bytes.WithLabelValues("read").Add(float64(n))
}

func (m *OperationMetrics) RecordWrite(n int, d time.Duration, err error) {
	m.record("write", d, err)
	m.bytes.WithLabelValues("write").Add(float64(n))
}
