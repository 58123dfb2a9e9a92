package ops

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	opCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runjs_op_calls_total",
			Help: "Total number of native op calls made by scripts, by op and result.",
		},
		[]string{"op", "result"},
	)

	opDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "runjs_op_duration_seconds",
			Help:    "Duration of native op calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(opCallsTotal)
	prometheus.MustRegister(opDuration)
}
