package emit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the emission counters. A nil *Metrics records nothing.
type Metrics struct {
	committed prometheus.Counter
	batches   *prometheus.CounterVec
	retries   prometheus.Counter
	latency   prometheus.Histogram
}

// NewMetrics registers the collectors on reg (skipped when reg is nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "towerkeep",
			Subsystem: "emit",
			Name:      "edits_committed_total",
			Help:      "Block edits accepted by the world.",
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "towerkeep",
			Subsystem: "emit",
			Name:      "batches_total",
			Help:      "Batches by final outcome.",
		}, []string{"result"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "towerkeep",
			Subsystem: "emit",
			Name:      "retries_total",
			Help:      "Batch submissions that were retried.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "towerkeep",
			Subsystem: "emit",
			Name:      "batch_seconds",
			Help:      "Time from first attempt to final outcome of a batch.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.committed, m.batches, m.retries, m.latency)
	}
	return m
}

func (m *Metrics) batchDone(cells int, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.Observe(d.Seconds())
	if ok {
		m.committed.Add(float64(cells))
		m.batches.WithLabelValues("committed").Inc()
		return
	}
	m.batches.WithLabelValues("failed").Inc()
}

func (m *Metrics) retry() {
	if m != nil {
		m.retries.Inc()
	}
}
