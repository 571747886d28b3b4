package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var Observer = &Metrics{
	prometheus: NewPrometheusMetrics(),
}

func init() {
	prometheus.MustRegister(Observer.prometheus.collectors()...)
}

type Metrics struct {
	prometheus Prometheus
}

// Epoch counts a completed training epoch.
func (m *Metrics) Epoch(study string) {
	m.prometheus.Epochs.WithLabelValues(study).Inc()
}

// Fit counts a fitted model.
func (m *Metrics) Fit(study, model string) {
	m.prometheus.Fits.WithLabelValues(study, model).Inc()
}

// Score records the last value of a metric for a model.
func (m *Metrics) Score(study, model, metric string, value float64) {
	m.prometheus.Scores.WithLabelValues(study, model, metric).Set(value)
}
