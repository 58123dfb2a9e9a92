package module

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK    = "ok"
	resultError = "error"
)

var loadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "runjs_module_loads_total",
		Help: "Total number of module loads, by module kind and result.",
	},
	[]string{"kind", "result"},
)

func init() {
	prometheus.MustRegister(loadsTotal)
}
