package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var swapsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ensembled",
		Subsystem: "agent",
		Name:      "swaps_total",
		Help:      "Swap attempts by outcome.",
	},
	[]string{"result"},
)
