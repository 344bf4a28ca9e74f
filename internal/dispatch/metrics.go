package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	loadedModels = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ensembled",
		Subsystem: "dispatch",
		Name:      "loaded_models",
		Help:      "Number of models in the current loaded set",
	})

	predictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ensembled",
		Subsystem: "dispatch",
		Name:      "predictions_total",
		Help:      "Total served predictions",
	})
)

func init() {
	prometheus.MustRegister(loadedModels, predictionsTotal)
}
