package handlers

import (
	"context"

	"github.com/apelisol/stepakash-wallet/internal/bridge"
	"github.com/apelisol/stepakash-wallet/internal/services"
	"github.com/apelisol/stepakash-wallet/internal/store"
)

// SessionValidator resolves a session token to the wallet behind it.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID string) (bridge.Session, error)
}

// TransactionLister fetches a wallet's transaction history.
type TransactionLister interface {
	GetTransactions(ctx context.Context, walletID string) ([]map[string]any, error)
}

type DepositService interface {
	Process(ctx context.Context, p services.DepositParams) (services.DepositResult, error)
	Complete(ctx context.Context, requestID string) (services.DepositCompletion, error)
	Initiate(ctx context.Context, p services.DepositParams) (services.InitiateResult, error)
	Status(ctx context.Context, transactionID string) (store.DepositJob, error)
}

type WithdrawalService interface {
	Process(ctx context.Context, p services.WithdrawalParams) (services.WithdrawalResult, error)
	Complete(ctx context.Context, requestID string) (services.WithdrawalCompletion, error)
}

// Handler carries the dependencies for all HTTP handlers.
type Handler struct {
	sessions     SessionValidator
	transactions TransactionLister
	deposits     DepositService
	withdrawals  WithdrawalService
	internalKey  string
}

func New(sessions SessionValidator, transactions TransactionLister, deposits DepositService, withdrawals WithdrawalService, internalKey string) *Handler {
	return &Handler{
		sessions:     sessions,
		transactions: transactions,
		deposits:     deposits,
		withdrawals:  withdrawals,
		internalKey:  internalKey,
	}
}
