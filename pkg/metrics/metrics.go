// Package metrics defines the Prometheus collectors for probe
// duration, anomaly counts, validator retries and degrades, RCA step
// counts, and executor results. The core service records only the
// anomaly and executor-result counters; nothing observes the others.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector this process emits, registered
// together so a caller can point it at either the default registry or
// a test-local one.
type Metrics struct {
	ProbeDuration     *prometheus.HistogramVec
	AnomaliesDetected *prometheus.CounterVec
	ValidatorRetries  *prometheus.CounterVec
	ValidatorDegrades *prometheus.CounterVec
	RCASteps          *prometheus.HistogramVec
	ExecutionResults  *prometheus.CounterVec
}

// New constructs the collector set without registering it.
func New() *Metrics {
	return &Metrics{
		ProbeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adinsight_probe_duration_seconds",
			Help:    "Diagnostic probe execution time in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"probe"}),

		AnomaliesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adinsight_anomalies_detected_total",
			Help: "Anomalies emitted by the Anomaly Detector, by metric and severity.",
		}, []string{"metric", "severity"}),

		ValidatorRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adinsight_validator_retries_total",
			Help: "Retry-with-feedback attempts issued by the Grounded Output Validator.",
		}, []string{"path"}),

		ValidatorDegrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adinsight_validator_degrades_total",
			Help: "Times the validator exhausted its retry budget and fell back to a deterministic result.",
		}, []string{"path"}),

		RCASteps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adinsight_rca_steps",
			Help:    "Number of probe-selection steps consumed per anomaly diagnosis.",
			Buckets: []float64{1, 2, 3, 4, 5, 6},
		}, []string{"metric"}),

		ExecutionResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adinsight_execution_results_total",
			Help: "Execution Simulator outcomes by status.",
		}, []string{"status"}),
	}
}

// MustRegister registers every collector against registry, panicking
// on a duplicate-registration error (a programmer mistake, not a
// runtime condition to recover from).
func (m *Metrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.ProbeDuration,
		m.AnomaliesDetected,
		m.ValidatorRetries,
		m.ValidatorDegrades,
		m.RCASteps,
		m.ExecutionResults,
	)
}
