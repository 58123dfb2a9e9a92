package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/runjs/internal/model"
)

var (
	workersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "runjs_workers_active",
			Help: "Number of worker goroutines currently alive.",
		},
	)

	workersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runjs_workers_total",
			Help: "Total number of finished workers, by terminal status.",
		},
		[]string{"status"},
	)

	workerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "runjs_worker_duration_seconds",
			Help:    "Time from start command to result, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(workersActive)
	prometheus.MustRegister(workersTotal)
	prometheus.MustRegister(workerDuration)

	workersTotal.WithLabelValues(model.StatusCompleted)
	workersTotal.WithLabelValues(model.StatusFailed)
}
