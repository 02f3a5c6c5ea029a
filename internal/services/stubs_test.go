package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/apelisol/stepakash-wallet/internal/bridge"
	"github.com/apelisol/stepakash-wallet/internal/deriv"
	"github.com/apelisol/stepakash-wallet/internal/store"
)

type stubBridge struct {
	getUserDataFn              func(ctx context.Context, walletID, sessionID string) (bridge.UserData, error)
	getSellRateFn              func(ctx context.Context) (bridge.RateSnapshot, error)
	checkDuplicateFn           func(ctx context.Context, transactionID string) (bool, error)
	checkPendingWithdrawalsFn  func(ctx context.Context, walletID string) (int, error)
	createDepositRequestFn     func(ctx context.Context, input bridge.DepositRequestInput) (string, error)
	updateDepositRequestFn     func(ctx context.Context, requestID string, update bridge.DepositUpdate) error
	getDepositRequestFn        func(ctx context.Context, requestID string) (bridge.DepositRequest, error)
	createWithdrawalRequestFn  func(ctx context.Context, input bridge.WithdrawalRequestInput) (string, error)
	updateWithdrawalRequestFn  func(ctx context.Context, requestID string, update bridge.WithdrawalUpdate) error
	getWithdrawalRequestFn     func(ctx context.Context, requestID string) (bridge.WithdrawalRequest, error)
	createLedgerEntriesFn      func(ctx context.Context, entry bridge.LedgerEntry) error
	getUserInfoFn              func(ctx context.Context, walletID string) (bridge.UserInfo, error)
	sendSMSFn                  func(ctx context.Context, phone, message string) error
}

func (s stubBridge) GetUserData(ctx context.Context, walletID, sessionID string) (bridge.UserData, error) {
	if s.getUserDataFn == nil {
		return bridge.UserData{}, nil
	}
	return s.getUserDataFn(ctx, walletID, sessionID)
}

func (s stubBridge) GetSellRate(ctx context.Context) (bridge.RateSnapshot, error) {
	if s.getSellRateFn == nil {
		return bridge.RateSnapshot{}, nil
	}
	return s.getSellRateFn(ctx)
}

func (s stubBridge) CheckDuplicateTransaction(ctx context.Context, transactionID string) (bool, error) {
	if s.checkDuplicateFn == nil {
		return false, nil
	}
	return s.checkDuplicateFn(ctx, transactionID)
}

func (s stubBridge) CheckPendingWithdrawals(ctx context.Context, walletID string) (int, error) {
	if s.checkPendingWithdrawalsFn == nil {
		return 0, nil
	}
	return s.checkPendingWithdrawalsFn(ctx, walletID)
}

func (s stubBridge) CreateDepositRequest(ctx context.Context, input bridge.DepositRequestInput) (string, error) {
	if s.createDepositRequestFn == nil {
		return "req-1", nil
	}
	return s.createDepositRequestFn(ctx, input)
}

func (s stubBridge) UpdateDepositRequest(ctx context.Context, requestID string, update bridge.DepositUpdate) error {
	if s.updateDepositRequestFn == nil {
		return nil
	}
	return s.updateDepositRequestFn(ctx, requestID, update)
}

func (s stubBridge) GetDepositRequest(ctx context.Context, requestID string) (bridge.DepositRequest, error) {
	if s.getDepositRequestFn == nil {
		return bridge.DepositRequest{}, nil
	}
	return s.getDepositRequestFn(ctx, requestID)
}

func (s stubBridge) CreateWithdrawalRequest(ctx context.Context, input bridge.WithdrawalRequestInput) (string, error) {
	if s.createWithdrawalRequestFn == nil {
		return "req-1", nil
	}
	return s.createWithdrawalRequestFn(ctx, input)
}

func (s stubBridge) UpdateWithdrawalRequest(ctx context.Context, requestID string, update bridge.WithdrawalUpdate) error {
	if s.updateWithdrawalRequestFn == nil {
		return nil
	}
	return s.updateWithdrawalRequestFn(ctx, requestID, update)
}

func (s stubBridge) GetWithdrawalRequest(ctx context.Context, requestID string) (bridge.WithdrawalRequest, error) {
	if s.getWithdrawalRequestFn == nil {
		return bridge.WithdrawalRequest{}, nil
	}
	return s.getWithdrawalRequestFn(ctx, requestID)
}

func (s stubBridge) CreateLedgerEntries(ctx context.Context, entry bridge.LedgerEntry) error {
	if s.createLedgerEntriesFn == nil {
		return nil
	}
	return s.createLedgerEntriesFn(ctx, entry)
}

func (s stubBridge) GetUserInfo(ctx context.Context, walletID string) (bridge.UserInfo, error) {
	if s.getUserInfoFn == nil {
		return bridge.UserInfo{Phone: "254700000000"}, nil
	}
	return s.getUserInfoFn(ctx, walletID)
}

func (s stubBridge) SendSMS(ctx context.Context, phone, message string) error {
	if s.sendSMSFn == nil {
		return nil
	}
	return s.sendSMSFn(ctx, phone, message)
}

type stubTransfer struct {
	transferFn func(ctx context.Context, destination string, amount decimal.Decimal, description string) deriv.TransferResult
	calls      *int
}

func (s stubTransfer) Transfer(ctx context.Context, destination string, amount decimal.Decimal, description string) deriv.TransferResult {
	if s.calls != nil {
		*s.calls++
	}
	if s.transferFn == nil {
		return deriv.TransferResult{Outcome: deriv.OutcomeOK, Message: "Transfer successful"}
	}
	return s.transferFn(ctx, destination, amount, description)
}

type stubJobStore struct {
	createFn             func(ctx context.Context, input store.DepositJobInput) error
	getByIDFn            func(ctx context.Context, id string) (store.DepositJob, error)
	getByTransactionIDFn func(ctx context.Context, transactionID string) (store.DepositJob, error)
	markProcessingFn     func(ctx context.Context, id string) (bool, error)
	markCompletedFn      func(ctx context.Context, id string, providerResponse []byte, note string) error
	markFailedFn         func(ctx context.Context, id, message string) error
	scheduleRetryFn      func(ctx context.Context, id string, at time.Time, message string) error
}

func (s stubJobStore) Create(ctx context.Context, input store.DepositJobInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, input)
}

func (s stubJobStore) GetByID(ctx context.Context, id string) (store.DepositJob, error) {
	if s.getByIDFn == nil {
		return store.DepositJob{}, store.ErrJobNotFound
	}
	return s.getByIDFn(ctx, id)
}

func (s stubJobStore) GetByTransactionID(ctx context.Context, transactionID string) (store.DepositJob, error) {
	if s.getByTransactionIDFn == nil {
		return store.DepositJob{}, store.ErrJobNotFound
	}
	return s.getByTransactionIDFn(ctx, transactionID)
}

func (s stubJobStore) MarkProcessing(ctx context.Context, id string) (bool, error) {
	if s.markProcessingFn == nil {
		return true, nil
	}
	return s.markProcessingFn(ctx, id)
}

func (s stubJobStore) MarkCompleted(ctx context.Context, id string, providerResponse []byte, note string) error {
	if s.markCompletedFn == nil {
		return nil
	}
	return s.markCompletedFn(ctx, id, providerResponse, note)
}

func (s stubJobStore) MarkFailed(ctx context.Context, id, message string) error {
	if s.markFailedFn == nil {
		return nil
	}
	return s.markFailedFn(ctx, id, message)
}

func (s stubJobStore) ScheduleRetry(ctx context.Context, id string, at time.Time, message string) error {
	if s.scheduleRetryFn == nil {
		return nil
	}
	return s.scheduleRetryFn(ctx, id, at, message)
}

func userDataWithRate(balanceLocal, rate string) func(ctx context.Context, walletID, sessionID string) (bridge.UserData, error) {
	return func(ctx context.Context, walletID, sessionID string) (bridge.UserData, error) {
		return bridge.UserData{
			BalanceLocal: decimal.RequireFromString(balanceLocal),
			BuyRate: bridge.RateSnapshot{
				Rate:     decimal.RequireFromString(rate),
				BoughtAt: decimal.RequireFromString(rate).Sub(decimal.NewFromInt(2)),
			},
		}, nil
	}
}
