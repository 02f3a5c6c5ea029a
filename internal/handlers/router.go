package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (h *Handler) Routes(allowedOrigins string) http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-KEY"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/deriv", func(r chi.Router) {
		r.Post("/deposit", h.Deposit)
		r.Post("/withdraw", h.Withdraw)
		r.Post("/initiate-deposit", h.InitiateDeposit)
		r.Get("/deposit-status", h.DepositStatus)
		r.Get("/transactions/{walletID}", h.Transactions)

		r.Post("/process-deposit", h.requireInternalKey(h.ProcessDeposit))
		r.Post("/process-withdrawal", h.requireInternalKey(h.ProcessWithdrawal))
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondSuccess(w, http.StatusOK, "ok", nil)
	})
	router.Handle("/metrics", promhttp.Handler())

	return router
}
