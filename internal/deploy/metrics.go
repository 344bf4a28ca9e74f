package deploy

import "github.com/prometheus/client_golang/prometheus"

var attemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ensembled",
		Subsystem: "deploy",
		Name:      "transitions_total",
		Help:      "Deployment attempt transitions by status",
	},
	[]string{"status"},
)

func init() {
	prometheus.MustRegister(attemptsTotal)
}
