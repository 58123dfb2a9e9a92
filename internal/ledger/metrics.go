package ledger

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/runjs/internal/model"
)

const (
	claimResultClaimed = "claimed"
	claimResultEmpty   = "empty"
)

var (
	tasksGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "runjs_ledger_tasks",
			Help: "Number of task ids in the ledger, by state.",
		},
		[]string{"state"},
	)

	claimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runjs_ledger_claims_total",
			Help: "Total number of claim-next calls, by whether an id was handed out.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(tasksGauge)
	prometheus.MustRegister(claimsTotal)

	tasksGauge.WithLabelValues(model.TaskRegistered)
	tasksGauge.WithLabelValues(model.TaskAssigned)
	claimsTotal.WithLabelValues(claimResultClaimed)
	claimsTotal.WithLabelValues(claimResultEmpty)
}
