// Package metrics holds the Prometheus collectors of the sync server and the
// admin HTTP surface that exposes them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Write outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeGone     = "gone"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry    *prometheus.Registry
	rpcDuration *prometheus.HistogramVec
	writes      *prometheus.CounterVec
	batches     *prometheus.CounterVec
	batchSize   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booksync",
			Name:      "rpc_duration_seconds",
			Help:      "Latency of sync RPCs by method and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "code"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booksync",
			Name:      "writes_total",
			Help:      "Single-entity writes by entity kind and outcome.",
		}, []string{"kind", "outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booksync",
			Name:      "batches_total",
			Help:      "Batch saves by result; reason is empty for committed batches.",
		}, []string{"result", "reason"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booksync",
			Name:      "batch_items",
			Help:      "Number of items submitted per batch save.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.rpcDuration, m.writes, m.batches, m.batchSize,
	)
	return m
}

// Registry exposes the collectors for scraping.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRPC(method, code string, d time.Duration) {
	m.rpcDuration.WithLabelValues(method, code).Observe(d.Seconds())
}

func (m *Metrics) Write(kind, outcome string) {
	m.writes.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Batch(committed bool, reason string, items int) {
	result := "committed"
	if !committed {
		result = "rolled_back"
	}
	m.batches.WithLabelValues(result, reason).Inc()
	m.batchSize.Observe(float64(items))
}
