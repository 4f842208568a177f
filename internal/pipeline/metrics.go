package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the batch driver.
type Metrics struct {
	KeysProcessed    *prometheus.CounterVec
	AnomaliesFlagged prometheus.Counter
	KeyDuration      prometheus.Histogram
}

// NewMetrics registers pipeline metrics on the given registerer. A nil
// registerer falls back to the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		KeysProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invascope",
			Subsystem: "pipeline",
			Name:      "keys_processed_total",
			Help:      "Series keys processed, labeled by outcome.",
		}, []string{"status"}),
		AnomaliesFlagged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "invascope",
			Subsystem: "pipeline",
			Name:      "anomalies_flagged_total",
			Help:      "Total points flagged anomalous across all series.",
		}),
		KeyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "invascope",
			Subsystem: "pipeline",
			Name:      "key_duration_seconds",
			Help:      "Per-key processing time through the full pipeline.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Outcome status labels.
const (
	statusOK               = "ok"
	statusNoAnomaly        = "no_anomaly"
	statusInsufficientData = "insufficient_data"
	statusDecomposition    = "decomposition_failed"
	statusNoInvasionRecord = "no_invasion_record"
	statusError            = "error"
)
