package surveillance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the detection engine.
type Metrics struct {
	DetectionsEmitted *prometheus.CounterVec
	GroupsSkipped     *prometheus.CounterVec
	AnalyzerDuration  *prometheus.HistogramVec
	BatchesProcessed  prometheus.Counter
}

// NewMetrics creates and registers the engine metrics on the given
// registerer. Pass prometheus.DefaultRegisterer for global registration, or
// a private registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DetectionsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "surveil",
				Subsystem: "engine",
				Name:      "detections_emitted_total",
				Help:      "Total detections emitted by pattern analyzers",
			},
			[]string{"pattern", "severity"},
		),
		GroupsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "surveil",
				Subsystem: "engine",
				Name:      "groups_skipped_total",
				Help:      "Groups skipped due to data-quality recovery",
			},
			[]string{"analyzer"},
		),
		AnalyzerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "surveil",
				Subsystem: "engine",
				Name:      "analyzer_duration_seconds",
				Help:      "Wall time per analyzer per batch",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"analyzer"},
		),
		BatchesProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "surveil",
				Subsystem: "engine",
				Name:      "batches_processed_total",
				Help:      "Total batches run through the engine",
			},
		),
	}
}
