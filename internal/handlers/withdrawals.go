package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/apelisol/stepakash-wallet/internal/services"
)

type withdrawalRequest struct {
	SessionID     string      `json:"session_id"`
	TransactionID string      `json:"transaction_id"`
	CRNumber      string      `json:"cr_number"`
	Amount        json.Number `json:"amount"`
}

// Withdraw records a withdrawal request. The trading-account transfer is
// confirmed out of band; completion arrives through the internal callback.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TransactionID == "" {
		respondFail(w, http.StatusBadRequest, "transaction_id is required")
		return
	}
	if len(req.CRNumber) < 8 || len(req.CRNumber) > 12 {
		respondFail(w, http.StatusBadRequest, "cr_number must be between 8 and 12 characters")
		return
	}
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		respondFail(w, http.StatusBadRequest, "amount must be a positive number")
		return
	}
	session, ok := h.requireSession(w, r, req.SessionID)
	if !ok {
		return
	}

	result, procErr := h.withdrawals.Process(r.Context(), services.WithdrawalParams{
		TransactionID: req.TransactionID,
		WalletID:      session.WalletID,
		CRNumber:      req.CRNumber,
		SessionID:     req.SessionID,
		AmountUSD:     amount,
	})
	withdrawalsTotal.WithLabelValues(resultLabel(procErr)).Inc()
	if procErr != nil {
		respondServiceError(w, procErr)
		return
	}
	respondSuccess(w, http.StatusOK, "Withdrawal request received and is being processed", map[string]any{
		"request_id":         result.RequestID,
		"transaction_id":     result.TransactionID,
		"transaction_number": result.TransactionNumber,
		"amount_usd":         result.AmountUSD.StringFixed(2),
		"cr_number":          result.CRNumber,
	})
}

// ProcessWithdrawal is the internal callback that settles a withdrawal after
// the operator confirms the funds landed.
func (h *Handler) ProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RequestID == "" {
		respondFail(w, http.StatusBadRequest, "request_id is required")
		return
	}

	completion, err := h.withdrawals.Complete(r.Context(), req.RequestID)
	callbacksTotal.WithLabelValues("withdrawal", resultLabel(err)).Inc()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	message := "Withdrawal processed successfully"
	if completion.AlreadyProcessed {
		message = "Withdrawal already processed"
	}
	respondSuccess(w, http.StatusOK, message, map[string]any{
		"transaction_id":     completion.Request.TransactionID,
		"transaction_number": completion.Request.TransactionNumber,
		"amount_usd":         completion.Request.Amount.StringFixed(2),
		"amount_local":       completion.AmountLocal.StringFixed(2),
		"status":             completion.Request.Status,
	})
}
