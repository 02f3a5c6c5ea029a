package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/apelisol/stepakash-wallet/internal/bridge"
	"github.com/apelisol/stepakash-wallet/internal/db"
	"github.com/apelisol/stepakash-wallet/internal/deriv"
	"github.com/apelisol/stepakash-wallet/internal/rates"
	"github.com/apelisol/stepakash-wallet/internal/store"
)

// DepositService drives the deposit saga: validate, quote, duplicate-check,
// reserve, transfer, reconcile, notify. Each step is a hard precondition for
// the next; the request record created before the transfer is the durability
// checkpoint.
type DepositService struct {
	bridge     Bridge
	transfer   TransferClient
	jobs       JobStore
	opsPhone   string
	maxRetries int
	retryDelay time.Duration
	now        func() time.Time
}

func NewDepositService(bridgeClient Bridge, transfer TransferClient, jobs JobStore, opsPhone string, maxRetries int, retryDelay time.Duration) *DepositService {
	return &DepositService{
		bridge:     bridgeClient,
		transfer:   transfer,
		jobs:       jobs,
		opsPhone:   opsPhone,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		now:        time.Now,
	}
}

type DepositParams struct {
	TransactionID string
	WalletID      string
	CRNumber      string
	SessionID     string
	AmountLocal   decimal.Decimal
}

type DepositResult struct {
	TransactionID     string
	TransactionNumber string
	AmountUSD         decimal.Decimal
	Provider          json.RawMessage
}

// depositQuote is the rate snapshot and converted amount every deposit path
// starts from.
type depositQuote struct {
	AmountUSD decimal.Decimal
	Rate      bridge.RateSnapshot
}

// quote fetches the wallet balance and buy rate, converts the requested
// amount and enforces the minimum and the balance gate.
func (s *DepositService) quote(ctx context.Context, p DepositParams) (depositQuote, error) {
	data, err := s.bridge.GetUserData(ctx, p.WalletID, p.SessionID)
	if err != nil {
		return depositQuote{}, err
	}
	amountUSD, err := rates.ToSettlement(p.AmountLocal, data.BuyRate.Rate)
	if err != nil {
		return depositQuote{}, ErrRateUnavailable
	}
	if amountUSD.LessThan(minAmountUSD) {
		return depositQuote{}, ErrBelowMinimum
	}
	balanceUSD, err := rates.ToSettlement(data.BalanceLocal, data.BuyRate.Rate)
	if err != nil {
		return depositQuote{}, ErrRateUnavailable
	}
	if balanceUSD.LessThan(amountUSD) {
		return depositQuote{}, &InsufficientFundsError{Balance: balanceUSD}
	}
	return depositQuote{AmountUSD: amountUSD, Rate: data.BuyRate}, nil
}

// Process runs the full deposit saga synchronously.
func (s *DepositService) Process(ctx context.Context, p DepositParams) (DepositResult, error) {
	q, err := s.quote(ctx, p)
	if err != nil {
		return DepositResult{}, err
	}

	duplicate, err := s.bridge.CheckDuplicateTransaction(ctx, p.TransactionID)
	if err != nil {
		return DepositResult{}, err
	}
	if duplicate {
		return DepositResult{}, ErrDuplicateTransaction
	}

	// Durability checkpoint: from here the request exists and can be
	// recovered after a crash.
	transactionNumber := newTransactionNumber(s.now())
	requestID, err := s.bridge.CreateDepositRequest(ctx, bridge.DepositRequestInput{
		TransactionID:     p.TransactionID,
		TransactionNumber: transactionNumber,
		WalletID:          p.WalletID,
		CRNumber:          p.CRNumber,
		Amount:            q.AmountUSD,
		Rate:              q.Rate.Rate,
		BoughtAt:          q.Rate.BoughtAt,
		Status:            bridge.StatusPending,
		RequestedAt:       s.now(),
	})
	if err != nil {
		return DepositResult{}, fmt.Errorf("failed to create deposit request: %w", err)
	}

	result := s.transfer.Transfer(ctx, p.CRNumber, q.AmountUSD, transferDescription)
	if !result.OK() {
		if err := s.markDepositFailed(ctx, requestID, result); err != nil {
			log.Printf("deposit %s: failed-state update error: %v", p.TransactionID, err)
		}
		return DepositResult{}, transferError(result)
	}

	if err := s.completeRemoteDeposit(ctx, requestID, q.AmountUSD, result.Raw); err != nil {
		log.Printf("CRITICAL deposit %s: transfer succeeded but ledger update failed: %v", p.TransactionID, err)
		return DepositResult{}, &ReconciliationError{TransactionID: p.TransactionID}
	}

	s.postDepositLedgerEntry(ctx, ledgerParams{
		TransactionID:     p.TransactionID,
		TransactionNumber: transactionNumber,
		WalletID:          p.WalletID,
		AmountLocal:       p.AmountLocal,
		AmountUSD:         q.AmountUSD,
		Rate:              q.Rate.Rate,
		BoughtAt:          q.Rate.BoughtAt,
	})

	s.notify(ctx, p.WalletID,
		fmt.Sprintf("Txn ID: %s, deposit of $%s USD successfully completed to Deriv account %s",
			transactionNumber, q.AmountUSD.StringFixed(2), p.CRNumber),
		fmt.Sprintf("Deposit completed: $%s USD to %s", q.AmountUSD.StringFixed(2), p.CRNumber),
	)

	return DepositResult{
		TransactionID:     p.TransactionID,
		TransactionNumber: transactionNumber,
		AmountUSD:         q.AmountUSD,
		Provider:          result.Raw,
	}, nil
}

type DepositCompletion struct {
	Request          bridge.DepositRequest
	AlreadyProcessed bool
	Provider         json.RawMessage
}

// Complete finishes a previously created deposit request. Re-entry on an
// already-completed request returns the stored record without touching the
// provider again.
func (s *DepositService) Complete(ctx context.Context, requestID string) (DepositCompletion, error) {
	request, err := s.bridge.GetDepositRequest(ctx, requestID)
	if err != nil {
		var remote *bridge.RemoteError
		if errors.As(err, &remote) {
			return DepositCompletion{}, ErrRequestNotFound
		}
		return DepositCompletion{}, err
	}
	if request.Status == bridge.StatusCompleted {
		return DepositCompletion{Request: request, AlreadyProcessed: true}, nil
	}

	result := s.transfer.Transfer(ctx, request.CRNumber, request.Amount, transferDescription)
	if !result.OK() {
		if err := s.markDepositFailed(ctx, requestID, result); err != nil {
			log.Printf("deposit %s: failed-state update error: %v", request.TransactionID, err)
		}
		return DepositCompletion{}, transferError(result)
	}

	if err := s.completeRemoteDeposit(ctx, requestID, request.Amount, result.Raw); err != nil {
		log.Printf("CRITICAL deposit %s: transfer succeeded but ledger update failed: %v", request.TransactionID, err)
		return DepositCompletion{}, &ReconciliationError{TransactionID: request.TransactionID}
	}

	s.postDepositLedgerEntry(ctx, ledgerParams{
		TransactionID:     request.TransactionID,
		TransactionNumber: request.TransactionNumber,
		WalletID:          request.WalletID,
		AmountLocal:       rates.ToLocal(request.Amount, request.Rate),
		AmountUSD:         request.Amount,
		Rate:              request.Rate,
		BoughtAt:          request.BoughtAt,
	})

	s.notify(ctx, request.WalletID,
		fmt.Sprintf("%s processed, %s USD has been successfully deposited to your Deriv account %s",
			request.TransactionNumber, request.Amount.StringFixed(2), request.CRNumber),
		"",
	)

	request.Status = bridge.StatusCompleted
	return DepositCompletion{Request: request, Provider: result.Raw}, nil
}

type InitiateResult struct {
	DepositID           string
	TransactionID       string
	AmountUSD           decimal.Decimal
	EstimatedCompletion time.Time
}

// Initiate validates a deposit and queues it for the completion worker. The
// local job row, written before returning, is the durability checkpoint.
func (s *DepositService) Initiate(ctx context.Context, p DepositParams) (InitiateResult, error) {
	q, err := s.quote(ctx, p)
	if err != nil {
		return InitiateResult{}, err
	}

	duplicate, err := s.bridge.CheckDuplicateTransaction(ctx, p.TransactionID)
	if err != nil {
		return InitiateResult{}, err
	}
	if duplicate {
		return InitiateResult{}, ErrDuplicateTransaction
	}
	existing, err := s.jobs.GetByTransactionID(ctx, p.TransactionID)
	if err == nil && existing.Status != bridge.StatusFailed {
		return InitiateResult{}, ErrDuplicateTransaction
	}
	if err != nil && err != store.ErrJobNotFound {
		return InitiateResult{}, err
	}

	input := store.DepositJobInput{
		ID:                newJobID(),
		TransactionID:     p.TransactionID,
		TransactionNumber: newTransactionNumber(s.now()),
		WalletID:          p.WalletID,
		CRNumber:          p.CRNumber,
		AmountLocal:       p.AmountLocal,
		AmountUSD:         q.AmountUSD,
		Rate:              q.Rate.Rate,
		BoughtAt:          q.Rate.BoughtAt,
		MaxAttempts:       s.maxRetries,
	}
	if err := s.jobs.Create(ctx, input); err != nil {
		if db.IsUniqueViolation(err) {
			return InitiateResult{}, ErrDuplicateTransaction
		}
		return InitiateResult{}, err
	}

	return InitiateResult{
		DepositID:           input.ID,
		TransactionID:       p.TransactionID,
		AmountUSD:           q.AmountUSD,
		EstimatedCompletion: s.now().Add(5 * time.Minute),
	}, nil
}

// Status looks up a queued deposit by its caller-supplied transaction id.
func (s *DepositService) Status(ctx context.Context, transactionID string) (store.DepositJob, error) {
	job, err := s.jobs.GetByTransactionID(ctx, transactionID)
	if err == store.ErrJobNotFound {
		return store.DepositJob{}, ErrRequestNotFound
	}
	return job, err
}

// RunJob executes one attempt of a queued deposit. It is the worker's
// re-entry point and must be safe to call repeatedly for the same id.
func (s *DepositService) RunJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}
	claimed, err := s.jobs.MarkProcessing(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		// Another runner holds the job.
		return nil
	}

	duplicate, err := s.bridge.CheckDuplicateTransaction(ctx, job.TransactionID)
	if err != nil {
		return s.retryOrFail(ctx, job, "ledger duplicate check unavailable")
	}
	if duplicate {
		// A non-failed request already exists in the ledger; transferring
		// again would double-credit the trading account.
		return s.jobs.MarkFailed(ctx, jobID, "transaction already processed in ledger, flagged for review")
	}

	result := s.transfer.Transfer(ctx, job.CRNumber, job.AmountUSD, transferDescription)
	switch result.Outcome {
	case deriv.OutcomeOK:
		return s.recordJobSuccess(ctx, job, result.Raw)
	case deriv.OutcomeUnreachable:
		return s.retryOrFail(ctx, job, result.Message)
	case deriv.OutcomeUnknown:
		log.Printf("CRITICAL deposit job %s: transfer outcome unknown, manual reconciliation required (transaction %s)", job.ID, job.TransactionID)
		return s.jobs.MarkFailed(ctx, jobID, "timeout - transfer status unknown, manual reconciliation required")
	default:
		return s.jobs.MarkFailed(ctx, jobID, result.Message)
	}
}

// recordJobSuccess writes the completed transfer back to the ledger system
// and closes out the local job.
func (s *DepositService) recordJobSuccess(ctx context.Context, job store.DepositJob, raw json.RawMessage) error {
	note := ""
	requestID, err := s.bridge.CreateDepositRequest(ctx, bridge.DepositRequestInput{
		TransactionID:     job.TransactionID,
		TransactionNumber: job.TransactionNumber,
		WalletID:          job.WalletID,
		CRNumber:          job.CRNumber,
		Amount:            job.AmountUSD,
		Rate:              job.Rate,
		BoughtAt:          job.BoughtAt,
		Status:            bridge.StatusPending,
		RequestedAt:       job.CreatedAt,
	})
	if err == nil {
		err = s.completeRemoteDeposit(ctx, requestID, job.AmountUSD, raw)
	}
	if err != nil {
		// Money moved; the job must not stay pending and must never be
		// retried. Flag for the operator instead.
		log.Printf("CRITICAL deposit job %s: transfer succeeded but ledger sync failed: %v (transaction %s)", job.ID, err, job.TransactionID)
		note = "completed at provider; ledger sync failed, manual reconciliation required"
	} else {
		s.postDepositLedgerEntry(ctx, ledgerParams{
			TransactionID:     job.TransactionID,
			TransactionNumber: job.TransactionNumber,
			WalletID:          job.WalletID,
			AmountLocal:       job.AmountLocal,
			AmountUSD:         job.AmountUSD,
			Rate:              job.Rate,
			BoughtAt:          job.BoughtAt,
		})
		s.notify(ctx, job.WalletID,
			fmt.Sprintf("Txn ID: %s, deposit of $%s USD successfully completed to Deriv account %s",
				job.TransactionNumber, job.AmountUSD.StringFixed(2), job.CRNumber),
			fmt.Sprintf("Deposit completed: $%s USD to %s", job.AmountUSD.StringFixed(2), job.CRNumber),
		)
	}
	return s.jobs.MarkCompleted(ctx, job.ID, raw, note)
}

// retryOrFail schedules another attempt if the bounded retry budget allows,
// otherwise fails the job permanently.
func (s *DepositService) retryOrFail(ctx context.Context, job store.DepositJob, message string) error {
	if job.Attempts+1 >= job.MaxAttempts {
		return s.jobs.MarkFailed(ctx, job.ID, message+" (retries exhausted)")
	}
	return s.jobs.ScheduleRetry(ctx, job.ID, s.now().Add(s.retryDelay), message)
}

type ledgerParams struct {
	TransactionID     string
	TransactionNumber string
	WalletID          string
	AmountLocal       decimal.Decimal
	AmountUSD         decimal.Decimal
	Rate              decimal.Decimal
	BoughtAt          decimal.Decimal
}

// postDepositLedgerEntry records the accounting entry for a confirmed
// deposit. Failure is logged but does not fail the deposit: the money has
// already moved and been reconciled, the entry is repairable offline.
func (s *DepositService) postDepositLedgerEntry(ctx context.Context, p ledgerParams) {
	charge := rates.DepositMargin(p.Rate, p.BoughtAt, p.AmountUSD)
	err := s.bridge.CreateLedgerEntries(ctx, bridge.LedgerEntry{
		TransactionID:     p.TransactionID,
		TransactionNumber: p.TransactionNumber,
		WalletID:          p.WalletID,
		Amount:            p.AmountLocal,
		AmountSettlement:  p.AmountUSD,
		Rate:              p.Rate,
		Charge:            charge,
		Description:       "Deposit to Deriv",
		Direction:         "dr",
	})
	if err != nil {
		log.Printf("deposit %s: ledger entry creation failed after successful transfer: %v", p.TransactionID, err)
	}
}

func (s *DepositService) markDepositFailed(ctx context.Context, requestID string, result deriv.TransferResult) error {
	message := result.Message
	if result.Outcome == deriv.OutcomeUnknown {
		message = "timeout - status unknown: " + message
	}
	return s.bridge.UpdateDepositRequest(ctx, requestID, bridge.DepositUpdate{
		Status:       bridge.StatusFailed,
		ErrorMessage: message,
	})
}

func (s *DepositService) completeRemoteDeposit(ctx context.Context, requestID string, amountUSD decimal.Decimal, raw json.RawMessage) error {
	processedAt := s.now()
	return s.bridge.UpdateDepositRequest(ctx, requestID, bridge.DepositUpdate{
		Status:           bridge.StatusCompleted,
		Deposited:        &amountUSD,
		ProcessedAt:      &processedAt,
		ProviderResponse: raw,
	})
}

// notify sends the user SMS and, when configured, a copy to the operations
// number. Notification failure never fails the saga.
func (s *DepositService) notify(ctx context.Context, walletID, userMessage, opsMessage string) {
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

func transferError(result deriv.TransferResult) error {
	switch result.Outcome {
	case deriv.OutcomeUnreachable:
		return &TransferUnreachableError{Message: result.Message}
	case deriv.OutcomeUnknown:
		return &TransferFailedError{Message: result.Message, Unknown: true}
	default:
		return &TransferFailedError{Message: result.Message}
	}
}
