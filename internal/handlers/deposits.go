package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/apelisol/stepakash-wallet/internal/services"
)

type depositRequest struct {
	SessionID     string      `json:"session_id"`
	TransactionID string      `json:"transaction_id"`
	WalletID      string      `json:"wallet_id"`
	CRNumber      string      `json:"cr_number"`
	Amount        json.Number `json:"amount"`
}

func (req depositRequest) validate() (decimal.Decimal, string) {
	if req.TransactionID == "" {
		return decimal.Decimal{}, "transaction_id is required"
	}
	if len(req.CRNumber) < 8 || len(req.CRNumber) > 12 {
		return decimal.Decimal{}, "cr_number must be between 8 and 12 characters"
	}
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, "amount must be a positive number"
	}
	return amount, ""
}

// Deposit runs the full deposit saga in the request and reports the final
// outcome to the caller.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, problem := req.validate()
	if problem != "" {
		respondFail(w, http.StatusBadRequest, problem)
		return
	}
	session, ok := h.requireSession(w, r, req.SessionID)
	if !ok {
		return
	}

	result, err := h.deposits.Process(r.Context(), services.DepositParams{
		TransactionID: req.TransactionID,
		WalletID:      session.WalletID,
		CRNumber:      req.CRNumber,
		SessionID:     req.SessionID,
		AmountLocal:   amount,
	})
	depositsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Deposit completed successfully", map[string]any{
		"transaction_id":     result.TransactionID,
		"transaction_number": result.TransactionNumber,
		"amount_usd":         result.AmountUSD.StringFixed(2),
		"provider_response":  result.Provider,
	})
}

// InitiateDeposit validates a deposit and queues it for asynchronous
// completion by the worker.
func (h *Handler) InitiateDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, problem := req.validate()
	if problem != "" {
		respondFail(w, http.StatusBadRequest, problem)
		return
	}
	session, ok := h.requireSession(w, r, req.SessionID)
	if !ok {
		return
	}
	if req.WalletID != "" && req.WalletID != session.WalletID {
		respondFail(w, http.StatusUnauthorized, "wallet_id does not match session")
		return
	}

	result, err := h.deposits.Initiate(r.Context(), services.DepositParams{
		TransactionID: req.TransactionID,
		WalletID:      session.WalletID,
		CRNumber:      req.CRNumber,
		SessionID:     req.SessionID,
		AmountLocal:   amount,
	})
	depositsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondSuccess(w, http.StatusAccepted, "Deposit queued for processing", map[string]any{
		"deposit_id":           result.DepositID,
		"transaction_id":       result.TransactionID,
		"amount_usd":           result.AmountUSD.StringFixed(2),
		"estimated_completion": result.EstimatedCompletion.UTC().Format("2006-01-02 15:04:05"),
	})
}

// DepositStatus reports the state of a queued deposit.
func (h *Handler) DepositStatus(w http.ResponseWriter, r *http.Request) {
	transactionID := r.URL.Query().Get("transaction_id")
	if transactionID == "" {
		respondFail(w, http.StatusBadRequest, "transaction_id is required")
		return
	}
	if _, ok := h.requireSession(w, r, r.URL.Query().Get("session_id")); !ok {
		return
	}

	job, err := h.deposits.Status(r.Context(), transactionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	data := map[string]any{
		"transaction_id":     job.TransactionID,
		"transaction_number": job.TransactionNumber,
		"status":             job.Status,
		"amount":             job.AmountUSD.StringFixed(2),
		"cr_number":          job.CRNumber,
		"attempts":           job.Attempts,
		"created_at":         job.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
	if job.ErrorMessage != nil {
		data["error_message"] = *job.ErrorMessage
	}
	if job.ProcessedAt != nil {
		data["completed_at"] = job.ProcessedAt.UTC().Format("2006-01-02 15:04:05")
	}
	respondSuccess(w, http.StatusOK, "Deposit status retrieved", data)
}

type completeRequest struct {
	RequestID string `json:"request_id"`
}

// ProcessDeposit is the internal callback that finishes a previously created
// deposit request.
func (h *Handler) ProcessDeposit(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RequestID == "" {
		respondFail(w, http.StatusBadRequest, "request_id is required")
		return
	}

	completion, err := h.deposits.Complete(r.Context(), req.RequestID)
	callbacksTotal.WithLabelValues("deposit", resultLabel(err)).Inc()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	message := "Deposit processed successfully"
	if completion.AlreadyProcessed {
		message = "Deposit already processed"
	}
	respondSuccess(w, http.StatusOK, message, map[string]any{
		"transaction_id":     completion.Request.TransactionID,
		"transaction_number": completion.Request.TransactionNumber,
		"amount_usd":         completion.Request.Amount.StringFixed(2),
		"status":             completion.Request.Status,
	})
}
