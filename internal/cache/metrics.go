package cache

import "github.com/prometheus/client_golang/prometheus"

var fetchesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ensembled",
		Subsystem: "cache",
		Name:      "fetches_total",
		Help:      "Artifact fetch attempts by outcome",
	},
	[]string{"artifact", "result"},
)

func init() {
	prometheus.MustRegister(fetchesTotal)
}
