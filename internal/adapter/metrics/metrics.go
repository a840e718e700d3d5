package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds all Prometheus metrics for the ingestion pipeline.
type PipelineMetrics struct {
	RecordsTotal        *prometheus.CounterVec
	EnrichmentFallbacks prometheus.Counter
	InferenceLatency    prometheus.Histogram
	AlertsTotal         *prometheus.CounterVec
	BatchesTotal        prometheus.Counter
	BatchSize           prometheus.Histogram
}

// NewPipelineMetrics initializes and registers the Prometheus metrics.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		RecordsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threat_ingestor",
			Subsystem: "pipeline",
			Name:      "records_total",
			Help:      "Total number of records by processing outcome.",
		}, []string{"outcome"}), // outcome: persisted, malformed, duplicate, failed
		EnrichmentFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "threat_ingestor",
			Subsystem: "pipeline",
			Name:      "enrichment_fallbacks_total",
			Help:      "Total number of records persisted with fallback prediction values.",
		}),
		InferenceLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "threat_ingestor",
			Subsystem: "pipeline",
			Name:      "inference_latency_seconds",
			Help:      "Latency of calls to the inference service.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		AlertsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threat_ingestor",
			Subsystem: "pipeline",
			Name:      "alerts_total",
			Help:      "Total number of alert dispatch attempts by status.",
		}, []string{"status"}), // status: sent, failed
		BatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "threat_ingestor",
			Subsystem: "pipeline",
			Name:      "batches_total",
			Help:      "Total number of batch windows processed.",
		}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "threat_ingestor",
			Subsystem: "pipeline",
			Name:      "batch_size",
			Help:      "Number of records per batch window.",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		}),
	}
}

// ObserveBatch records the outcome counts of one processed batch window.
// stats is kept as plain ints so the usecase layer stays metrics-free.
func (m *PipelineMetrics) ObserveBatch(received, persisted, malformed, duplicates, degraded, alerted, alertsFailed, failed int) {
	m.BatchesTotal.Inc()
	m.BatchSize.Observe(float64(received))
	m.RecordsTotal.WithLabelValues("persisted").Add(float64(persisted))
	m.RecordsTotal.WithLabelValues("malformed").Add(float64(malformed))
	m.RecordsTotal.WithLabelValues("duplicate").Add(float64(duplicates))
	m.RecordsTotal.WithLabelValues("failed").Add(float64(failed))
	m.EnrichmentFallbacks.Add(float64(degraded))
	m.AlertsTotal.WithLabelValues("sent").Add(float64(alerted))
	m.AlertsTotal.WithLabelValues("failed").Add(float64(alertsFailed))
}
