// Package metrics provides Prometheus metrics collection for the PBPD
// predictor. It covers the prediction pipeline (latency, failures by kind,
// predicted value distribution), model loading, range validation and batch
// processing, exposed via the Prometheus metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the predictor.
type Metrics struct {
	// Prediction pipeline metrics
	PredictionsTotal   prometheus.Counter     // Total number of predictions attempted
	PredictionFailures *prometheus.CounterVec // Prediction failures partitioned by error kind
	PredictionLatency  prometheus.Histogram   // End-to-end single prediction latency
	PBPDValues         prometheus.Histogram   // Distribution of predicted packing densities (percent)
	RangeWarnings      prometheus.Counter     // Total out-of-range feature warnings attached to results
	ExplanationErrors  prometheus.Counter     // Total explanation computations that failed

	// Model registry metrics
	ModelLoads        prometheus.Counter // Total successful model artifact loads
	ModelLoadFailures prometheus.Counter // Total failed model artifact loads

	// Batch metrics
	BatchesTotal     prometheus.Counter // Total batch runs
	BatchRows        prometheus.Counter // Total rows processed across batches
	BatchRowFailures prometheus.Counter // Total rows that failed with a row-scoped error
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for
// testing). This allows isolated metric collection in tests without
// affecting the global Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pbpd_predictions_total",
			Help: "Total number of predictions attempted",
		}),
		PredictionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pbpd_prediction_failures_total",
			Help: "Prediction failures partitioned by error kind",
		}, []string{"kind"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pbpd_prediction_latency_seconds",
			Help:    "End-to-end single prediction latency in seconds",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		PBPDValues: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pbpd_predicted_density_percent",
			Help:    "Distribution of predicted packing densities in percent",
			Buckets: prometheus.LinearBuckets(30, 5, 15),
		}),
		RangeWarnings: factory.NewCounter(prometheus.CounterOpts{
			Name: "pbpd_range_warnings_total",
			Help: "Total out-of-range feature warnings attached to results",
		}),
		ExplanationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "pbpd_explanation_errors_total",
			Help: "Total explanation computations that failed",
		}),
		ModelLoads: factory.NewCounter(prometheus.CounterOpts{
			Name: "pbpd_model_loads_total",
			Help: "Total successful model artifact loads",
		}),
		ModelLoadFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "pbpd_model_load_failures_total",
			Help: "Total failed model artifact loads",
		}),
		BatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pbpd_batches_total",
			Help: "Total batch runs",
		}),
		BatchRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "pbpd_batch_rows_total",
			Help: "Total rows processed across batches",
		}),
		BatchRowFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "pbpd_batch_row_failures_total",
			Help: "Total rows that failed with a row-scoped error",
		}),
	}
}
