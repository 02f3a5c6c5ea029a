package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/apelisol/stepakash-wallet/internal/bridge"
	"github.com/apelisol/stepakash-wallet/internal/rates"
)

// WithdrawalService handles the withdrawal side of the bridge. Funds flow
// from the trading account to the agent first; the local wallet is only
// credited when an operator confirms receipt, so Process records intent and
// Complete settles it.
type WithdrawalService struct {
	bridge   Bridge
	opsPhone string
	now      func() time.Time
}

func NewWithdrawalService(bridgeClient Bridge, opsPhone string) *WithdrawalService {
	return &WithdrawalService{bridge: bridgeClient, opsPhone: opsPhone, now: time.Now}
}

type WithdrawalParams struct {
	TransactionID string
	WalletID      string
	CRNumber      string
	SessionID     string
	AmountUSD     decimal.Decimal
}

type WithdrawalResult struct {
	RequestID         string
	TransactionID     string
	TransactionNumber string
	AmountUSD         decimal.Decimal
	CRNumber          string
}

// Process validates and records a withdrawal request. At most one pending
// withdrawal is allowed per wallet; the rate is snapshotted at request time
// so later completion settles at the quoted price.
func (s *WithdrawalService) Process(ctx context.Context, p WithdrawalParams) (WithdrawalResult, error) {
	if p.AmountUSD.LessThan(minAmountUSD) {
		return WithdrawalResult{}, ErrBelowMinimum
	}

	rate, err := s.bridge.GetSellRate(ctx)
	if err != nil {
		return WithdrawalResult{}, err
	}
	if rate.Rate.LessThanOrEqual(decimal.Zero) {
		return WithdrawalResult{}, ErrRateUnavailable
	}

	duplicate, err := s.bridge.CheckDuplicateTransaction(ctx, p.TransactionID)
	if err != nil {
		return WithdrawalResult{}, err
	}
	if duplicate {
		return WithdrawalResult{}, ErrDuplicateTransaction
	}

	pending, err := s.bridge.CheckPendingWithdrawals(ctx, p.WalletID)
	if err != nil {
		return WithdrawalResult{}, err
	}
	if pending > 0 {
		return WithdrawalResult{}, ErrPendingWithdrawal
	}

	transactionNumber := newTransactionNumber(s.now())
	requestID, err := s.bridge.CreateWithdrawalRequest(ctx, bridge.WithdrawalRequestInput{
		TransactionID:     p.TransactionID,
		TransactionNumber: transactionNumber,
		WalletID:          p.WalletID,
		CRNumber:          p.CRNumber,
		Amount:            p.AmountUSD,
		Rate:              rate.Rate,
		BoughtAt:          rate.BoughtAt,
		Status:            bridge.StatusPending,
		RequestedAt:       s.now(),
	})
	if err != nil {
		return WithdrawalResult{}, fmt.Errorf("failed to create withdrawal request: %w", err)
	}

	s.notify(ctx, p.WalletID,
		fmt.Sprintf("Txn ID: %s, withdrawal of $%s USD from Deriv account %s received and is being processed",
			transactionNumber, p.AmountUSD.StringFixed(2), p.CRNumber),
		fmt.Sprintf("Withdrawal requested: $%s USD from %s", p.AmountUSD.StringFixed(2), p.CRNumber),
	)

	return WithdrawalResult{
		RequestID:         requestID,
		TransactionID:     p.TransactionID,
		TransactionNumber: transactionNumber,
		AmountUSD:         p.AmountUSD,
		CRNumber:          p.CRNumber,
	}, nil
}

type WithdrawalCompletion struct {
	Request          bridge.WithdrawalRequest
	AlreadyProcessed bool
	AmountLocal      decimal.Decimal
}

// Complete settles a withdrawal after the operator confirms the provider
// transfer landed. Re-entry on a completed request returns the stored record
// and performs no further writes.
func (s *WithdrawalService) Complete(ctx context.Context, requestID string) (WithdrawalCompletion, error) {
	request, err := s.bridge.GetWithdrawalRequest(ctx, requestID)
	if err != nil {
		var remote *bridge.RemoteError
		if errors.As(err, &remote) {
			return WithdrawalCompletion{}, ErrRequestNotFound
		}
		return WithdrawalCompletion{}, err
	}
	amountLocal := rates.ToLocal(request.Amount, request.Rate)
	if request.Status == bridge.StatusCompleted {
		return WithdrawalCompletion{Request: request, AlreadyProcessed: true, AmountLocal: amountLocal}, nil
	}

	current, err := s.bridge.GetSellRate(ctx)
	if err != nil {
		return WithdrawalCompletion{}, err
	}

	processedAt := s.now()
	withdrawn := request.Amount
	err = s.bridge.UpdateWithdrawalRequest(ctx, requestID, bridge.WithdrawalUpdate{
		Status:      bridge.StatusCompleted,
		Withdrawn:   &withdrawn,
		ProcessedAt: &processedAt,
	})
	if err != nil {
		log.Printf("CRITICAL withdrawal %s: completion update failed: %v", request.TransactionID, err)
		return WithdrawalCompletion{}, &ReconciliationError{TransactionID: request.TransactionID}
	}

	charge := rates.WithdrawalMargin(current.Rate, request.Rate, request.Amount)
	if err := s.bridge.CreateLedgerEntries(ctx, bridge.LedgerEntry{
		TransactionID:     request.TransactionID,
		TransactionNumber: request.TransactionNumber,
		WalletID:          request.WalletID,
		Amount:            amountLocal,
		AmountSettlement:  request.Amount,
		Rate:              request.Rate,
		Charge:            charge,
		Description:       "Withdrawal from Deriv",
		Direction:         "cr",
	}); err != nil {
		log.Printf("withdrawal %s: ledger entry creation failed after completion: %v", request.TransactionID, err)
	}

	s.notify(ctx, request.WalletID,
		fmt.Sprintf("%s processed, %s has been credited to your Stepakash wallet",
			request.TransactionNumber, amountLocal.StringFixed(2)),
		"",
	)

	request.Status = bridge.StatusCompleted
	request.ProcessedAt = &processedAt
	return WithdrawalCompletion{Request: request, AmountLocal: amountLocal}, nil
}

func (s *WithdrawalService) notify(ctx context.Context, walletID, userMessage, opsMessage string) {
	info, err := s.bridge.GetUserInfo(ctx, walletID)
	if err != nil {
		log.Printf("notify: user info lookup failed for wallet %s: %v", walletID, err)
		return
	}
	if info.Phone != "" {
		if err := s.bridge.SendSMS(ctx, info.Phone, userMessage); err != nil {
			log.Printf("notify: user SMS failed for wallet %s: %v", walletID, err)
		}
	}
	if s.opsPhone != "" && opsMessage != "" {
		if err := s.bridge.SendSMS(ctx, s.opsPhone, opsMessage); err != nil {
			log.Printf("notify: ops SMS failed: %v", err)
		}
	}
}
