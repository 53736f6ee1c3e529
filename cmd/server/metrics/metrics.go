// Package metrics provides Prometheus metrics instrumentation for the
// prediction server.
//
// Metrics exposed:
//   - sepal_predictions_total: Counter of successful predictions by class
//   - sepal_predict_seconds: Histogram of model inference duration
//   - sepal_request_errors_total: Counter of failed requests by endpoint and reason
//   - sepal_model_loaded: Gauge set to 1 when a model is being served
//   - sepal_model_accuracy: Gauge of the served model's held-out accuracy
//   - sepal_training_seconds: Histogram of startup training duration
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	PredictionsTotal *prometheus.CounterVec
	PredictSeconds   prometheus.Histogram
	ErrorsTotal      *prometheus.CounterVec
	ModelLoaded      prometheus.Gauge
	ModelAccuracy    prometheus.Gauge
	TrainingSeconds  prometheus.Histogram
}

// New creates all metrics and registers them with reg.
// Use prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sepal_predictions_total",
			Help: "Total number of successful predictions by predicted class",
		}, []string{"class"}),

		PredictSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sepal_predict_seconds",
			Help:    "Time spent running the model for one prediction",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
		}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sepal_request_errors_total",
			Help: "Total number of failed requests by endpoint and reason",
		}, []string{"endpoint", "reason"}),

		ModelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sepal_model_loaded",
			Help: "1 when a trained model is loaded, 0 otherwise",
		}),

		ModelAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sepal_model_accuracy",
			Help: "Held-out accuracy of the loaded model",
		}),

		TrainingSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sepal_training_seconds",
			Help:    "Time spent training a model at startup",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordPrediction counts a prediction and observes its duration.
func (m *Metrics) RecordPrediction(class string, seconds float64) {
	if m == nil {
		return
	}
	m.PredictionsTotal.WithLabelValues(class).Inc()
	m.PredictSeconds.Observe(seconds)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(endpoint, reason string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(endpoint, reason).Inc()
}

// SetModel reports the served model state.
func (m *Metrics) SetModel(loaded bool, accuracy float64) {
	if m == nil {
		return
	}
	if loaded {
		m.ModelLoaded.Set(1)
		m.ModelAccuracy.Set(accuracy)
		return
	}
	m.ModelLoaded.Set(0)
	m.ModelAccuracy.Set(0)
}

// RecordTraining observes the duration of a training run.
func (m *Metrics) RecordTraining(seconds float64) {
	if m == nil {
		return
	}
	m.TrainingSeconds.Observe(seconds)
}
