package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	depositsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_deposits_total",
		Help: "Deposit requests by result.",
	}, []string{"result"})

	withdrawalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_withdrawals_total",
		Help: "Withdrawal requests by result.",
	}, []string{"result"})

	callbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_callbacks_total",
		Help: "Internal completion callbacks by kind and result.",
	}, []string{"kind", "result"})
)

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
