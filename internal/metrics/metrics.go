// Package metrics exposes Prometheus instruments for benchmark runs on a
// private registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the runner's instruments.
type Metrics struct {
	registry *prometheus.Registry

	recordsProcessed *prometheus.CounterVec
	filesTotal       *prometheus.CounterVec
	fileDuration     *prometheus.HistogramVec
	contexts         *prometheus.GaugeVec
}

// New registers the instruments on a fresh registry along with the Go
// runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// recordsProcessed counts records scored per detector
		recordsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cadbench_records_processed_total",
			Help: "Total records scored by detector",
		}, []string{"detector"}),

		// filesTotal counts scored files by detector and outcome
		filesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cadbench_files_total",
			Help: "Total data files scored by detector and status",
		}, []string{"detector", "status"}),

		fileDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cadbench_file_duration_seconds",
			Help:    "Time to score one data file in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}, []string{"detector"}),

		// contexts reports the context memory size after the latest file
		contexts: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cadbench_contexts",
			Help: "Contexts held by the detector after its most recent file",
		}, []string{"detector"}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRecords adds n scored records for detector.
func (m *Metrics) ObserveRecords(detector string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsProcessed.WithLabelValues(detector).Add(float64(n))
}

// ObserveFile records one finished file.
func (m *Metrics) ObserveFile(detector, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.filesTotal.WithLabelValues(detector, status).Inc()
	m.fileDuration.WithLabelValues(detector).Observe(d.Seconds())
}

// SetContexts sets the context memory size gauge.
func (m *Metrics) SetContexts(detector string, n int) {
	if m == nil {
		return
	}
	m.contexts.WithLabelValues(detector).Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
