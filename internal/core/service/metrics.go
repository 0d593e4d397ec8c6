package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vpos_gateway",
			Name:      "submissions_total",
			Help:      "Total number of transactions submitted to vPOS.",
		},
		[]string{"type", "result"}, // result: "requested", "duplicate", "error"
	)

	outcomesAppliedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vpos_gateway",
			Name:      "outcomes_applied_total",
			Help:      "Total number of terminal outcomes stored on transactions.",
		},
		[]string{"type", "status", "source"},
	)

	duplicateConfirmationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vpos_gateway",
			Name:      "duplicate_confirmations_total",
			Help:      "Confirmations that arrived after another path already stored the outcome.",
		},
		[]string{"source"},
	)

	contractViolationsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vpos_gateway",
			Name:      "contract_violations_total",
			Help:      "Submissions vPOS did not answer with a location.",
		},
	)
)
