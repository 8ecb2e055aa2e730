package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Training Metrics
var (
	// TrainingRunsTotal tracks training runs by outcome (success/no_data/degenerate/busy/error)
	TrainingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tonal_training_runs_total",
			Help: "Total training runs by outcome",
		},
		[]string{"outcome"},
	)

	// TrainingDuration tracks wall time of completed training runs
	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tonal_training_duration_seconds",
			Help:    "Training run duration in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
		},
	)

	// TrainingExamples tracks the number of examples used by the last successful run
	TrainingExamples = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tonal_training_examples",
			Help: "Labeled examples used by the last successful training run",
		},
	)

	// TrainingAccuracy tracks evaluation accuracy of the last successful run
	TrainingAccuracy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tonal_training_accuracy",
			Help: "Evaluation accuracy of the last successful training run",
		},
	)
)

// Prediction Metrics
var (
	// PredictionsTotal tracks predict calls by outcome (success/no_model/error)
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tonal_predictions_total",
			Help: "Total predict calls by outcome",
		},
		[]string{"outcome"},
	)

	// TextsScored tracks individual texts scored
	TextsScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tonal_texts_scored_total",
			Help: "Total texts scored",
		},
	)

	// PredictionDuration tracks predict call latency
	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tonal_prediction_duration_seconds",
			Help:    "Predict call duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, 1},
		},
	)

	// ModelInfo is 1 for the active model version, 0 for versions swapped out
	ModelInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tonal_model_info",
			Help: "Active model version (1 = active)",
		},
		[]string{"version", "policy"},
	)

	// ModelLoadsTotal tracks artifact loads by result (success/not_found/corrupt/error)
	ModelLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tonal_model_loads_total",
			Help: "Total artifact loads by result",
		},
		[]string{"result"},
	)
)

// Artifact Metrics
var (
	// ArtifactsPersistedTotal tracks model versions written
	ArtifactsPersistedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tonal_artifacts_persisted_total",
			Help: "Total model versions persisted",
		},
	)

	// ArtifactsRemovedTotal tracks files deleted by retention cleanup by series
	ArtifactsRemovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tonal_artifacts_removed_total",
			Help: "Total artifact files removed by cleanup by series",
		},
		[]string{"series"},
	)
)

// Cache Metrics
var (
	// CacheOpsTotal tracks score cache lookups by result (hit/miss/error)
	CacheOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tonal_cache_operations_total",
			Help: "Total score cache operations by result",
		},
		[]string{"result"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tonal_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Source Metrics
var (
	// SourceQueryDuration tracks example source query latency
	SourceQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tonal_source_query_duration_seconds",
			Help:    "Labeled example source query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
		[]string{"query"},
	)

	// HTTPRequestsTotal tracks API requests by route and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tonal_http_requests_total",
			Help: "Total HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)
)
