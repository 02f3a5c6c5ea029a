package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/apelisol/stepakash-wallet/internal/bridge"
	"github.com/apelisol/stepakash-wallet/internal/deriv"
	"github.com/apelisol/stepakash-wallet/internal/store"
)

// Bridge is the slice of the ledger bridge client the orchestrators use.
type Bridge interface {
	GetUserData(ctx context.Context, walletID, sessionID string) (bridge.UserData, error)
	GetSellRate(ctx context.Context) (bridge.RateSnapshot, error)
	CheckDuplicateTransaction(ctx context.Context, transactionID string) (bool, error)
	CheckPendingWithdrawals(ctx context.Context, walletID string) (int, error)
	CreateDepositRequest(ctx context.Context, input bridge.DepositRequestInput) (string, error)
	UpdateDepositRequest(ctx context.Context, requestID string, update bridge.DepositUpdate) error
	GetDepositRequest(ctx context.Context, requestID string) (bridge.DepositRequest, error)
	CreateWithdrawalRequest(ctx context.Context, input bridge.WithdrawalRequestInput) (string, error)
	UpdateWithdrawalRequest(ctx context.Context, requestID string, update bridge.WithdrawalUpdate) error
	GetWithdrawalRequest(ctx context.Context, requestID string) (bridge.WithdrawalRequest, error)
	CreateLedgerEntries(ctx context.Context, entry bridge.LedgerEntry) error
	GetUserInfo(ctx context.Context, walletID string) (bridge.UserInfo, error)
	SendSMS(ctx context.Context, phone, message string) error
}

// TransferClient moves funds at the external provider.
type TransferClient interface {
	Transfer(ctx context.Context, destination string, amount decimal.Decimal, description string) deriv.TransferResult
}

// JobStore persists deposit jobs for the async completion worker.
type JobStore interface {
	Create(ctx context.Context, input store.DepositJobInput) error
	GetByID(ctx context.Context, id string) (store.DepositJob, error)
	GetByTransactionID(ctx context.Context, transactionID string) (store.DepositJob, error)
	MarkProcessing(ctx context.Context, id string) (bool, error)
	MarkCompleted(ctx context.Context, id string, providerResponse []byte, note string) error
	MarkFailed(ctx context.Context, id, message string) error
	ScheduleRetry(ctx context.Context, id string, at time.Time, message string) error
}

// minAmountUSD is the business minimum for both deposits and withdrawals in
// the settlement currency.
var minAmountUSD = decimal.NewFromFloat(2.5)

const transferDescription = "Deposit via Stepakash"

// newTransactionNumber generates the human-facing transaction number. The
// uuid-derived suffix keeps concurrent requests in the same second from
// colliding.
func newTransactionNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "TXN" + now.Format("20060102150405") + suffix[:8]
}

func newJobID() string {
	return uuid.New().String()
}
