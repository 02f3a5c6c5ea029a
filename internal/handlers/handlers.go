// Package handlers exposes the HTTP surface. Every response uses the same
// envelope: {"status": "success"|"fail"|"error", "message": ..., "data": ...}.
// "fail" is a request the caller can fix, "error" is a processing failure.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/apelisol/stepakash-wallet/internal/bridge"
	"github.com/apelisol/stepakash-wallet/internal/services"
)

type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, code int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func respondSuccess(w http.ResponseWriter, code int, message string, data any) {
	respondJSON(w, code, response{Status: "success", Message: message, Data: data})
}

func respondFail(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, response{Status: "fail", Message: message})
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, response{Status: "error", Message: "Processing error: " + message})
}

// respondServiceError maps the service error taxonomy onto HTTP codes.
// Caller mistakes come back as 4xx fails; everything else is a 5xx error.
func respondServiceError(w http.ResponseWriter, err error) {
	var insufficient *services.InsufficientFundsError
	var transferFailed *services.TransferFailedError
	var unreachable *services.TransferUnreachableError
	var reconciliation *services.ReconciliationError
	var remote *bridge.RemoteError

	switch {
	case errors.Is(err, services.ErrBelowMinimum),
		errors.Is(err, services.ErrDuplicateTransaction),
		errors.Is(err, services.ErrPendingWithdrawal):
		respondFail(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &insufficient):
		respondFail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrRequestNotFound):
		respondFail(w, http.StatusNotFound, err.Error())
	case errors.As(err, &transferFailed):
		respondError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &unreachable):
		respondError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &reconciliation):
		respondError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &remote):
		respondError(w, http.StatusInternalServerError, remote.Message)
	default:
		respondError(w, http.StatusInternalServerError, "service temporarily unavailable, please try again")
	}
}

// requireSession validates the session token and returns the wallet behind
// it. On failure it writes the 401 response and returns false.
func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request, sessionID string) (bridge.Session, bool) {
	if sessionID == "" {
		respondFail(w, http.StatusBadRequest, "session_id is required")
		return bridge.Session{}, false
	}
	session, err := h.sessions.ValidateSession(r.Context(), sessionID)
	if err != nil {
		var remote *bridge.RemoteError
		if errors.As(err, &remote) {
			respondFail(w, http.StatusUnauthorized, "Invalid or expired session")
			return bridge.Session{}, false
		}
		respondError(w, http.StatusInternalServerError, "session validation unavailable")
		return bridge.Session{}, false
	}
	return session, true
}

// requireInternalKey guards the callback endpoints reachable only by the
// legacy system.
func (h *Handler) requireInternalKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != h.internalKey {
			respondFail(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		next(w, r)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		respondFail(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
