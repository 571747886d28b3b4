package metrics

import "github.com/prometheus/client_golang/prometheus"

type Prometheus struct {
	Epochs *prometheus.CounterVec
	Fits   *prometheus.CounterVec
	Scores *prometheus.GaugeVec
}

func NewPrometheusMetrics() Prometheus {
	return Prometheus{
		Epochs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "study",
				Name:      "epochs",
				Help:      "training epochs completed",
			}, []string{"study"}),
		Fits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "study",
				Name:      "fits",
				Help:      "models fitted",
			}, []string{"study", "model"}),
		Scores: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "study",
				Name:      "score",
				Help:      "last evaluated score",
			}, []string{"study", "model", "metric"}),
	}
}

func (p Prometheus) collectors() []prometheus.Collector {
	return []prometheus.Collector{p.Epochs, p.Fits, p.Scores}
}
