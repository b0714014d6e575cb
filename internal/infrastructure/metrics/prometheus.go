package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusExporter exports metrics to Prometheus format.
type PrometheusExporter struct {
	collector *Collector

	// Prometheus metrics
	permissionChecks *prometheus.CounterVec
	cacheHitRate     prometheus.Gauge
	cacheKeysAdded   prometheus.Gauge
	cacheEvictions   prometheus.Gauge
	opRequests       *prometheus.CounterVec
	opDuration       *prometheus.HistogramVec
	opErrors         *prometheus.CounterVec
}

// NewPrometheusExporter creates a new Prometheus exporter.
func NewPrometheusExporter(collector *Collector) *PrometheusExporter {
	return &PrometheusExporter{
		collector: collector,
		permissionChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bunko_permission_checks_total",
				Help: "Total number of permission checks by outcome",
			},
			[]string{"result"},
		),
		cacheHitRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bunko_discovery_cache_hit_rate",
			Help: "Current discovery cache hit rate (0.0 to 1.0)",
		}),
		cacheKeysAdded: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bunko_discovery_cache_keys_added_total",
			Help: "Total number of keys added to the discovery cache",
		}),
		cacheEvictions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bunko_discovery_cache_evictions_total",
			Help: "Total number of discovery cache evictions",
		}),
		opRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bunko_operations_total",
				Help: "Total number of engine operations",
			},
			[]string{"operation"},
		),
		opDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bunko_operation_duration_seconds",
				Help:    "Duration of engine operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"operation"},
		),
		opErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bunko_operation_errors_total",
				Help: "Total number of failed engine operations",
			},
			[]string{"operation"},
		),
	}
}

// Update updates Gauge metrics from the collector.
// Counters are updated at the call sites, so only update gauges here.
// This should be called periodically (e.g., every 10 seconds).
func (e *PrometheusExporter) Update() {
	cacheMetrics := e.collector.GetCacheMetrics()
	e.cacheHitRate.Set(cacheMetrics.HitRate)
	e.cacheKeysAdded.Set(float64(cacheMetrics.KeysAdded))
	e.cacheEvictions.Set(float64(cacheMetrics.KeysEvicted))
}

// RecordCheck records a permission check outcome in Prometheus.
func (e *PrometheusExporter) RecordCheck(allowed bool) {
	if allowed {
		e.permissionChecks.WithLabelValues("allowed").Inc()
	} else {
		e.permissionChecks.WithLabelValues("denied").Inc()
	}
}

// RecordRequest records an operation call in Prometheus.
func (e *PrometheusExporter) RecordRequest(operation string) {
	e.opRequests.WithLabelValues(operation).Inc()
}

// RecordDuration records an operation duration in Prometheus.
func (e *PrometheusExporter) RecordDuration(operation string, durationSeconds float64) {
	e.opDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordError records a failed operation in Prometheus.
func (e *PrometheusExporter) RecordError(operation string) {
	e.opErrors.WithLabelValues(operation).Inc()
}
