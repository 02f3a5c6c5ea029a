package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Transactions returns the wallet's transaction history from the ledger
// system.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	walletID := chi.URLParam(r, "walletID")
	if walletID == "" {
		respondFail(w, http.StatusBadRequest, "wallet_id is required")
		return
	}
	session, ok := h.requireSession(w, r, r.URL.Query().Get("session_id"))
	if !ok {
		return
	}
	if session.WalletID != walletID {
		respondFail(w, http.StatusUnauthorized, "wallet_id does not match session")
		return
	}

	transactions, err := h.transactions.GetTransactions(r.Context(), walletID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Transactions retrieved", transactions)
}
