package bridge

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Status of a transfer request row in the legacy ledger. Pending is initial,
// Processing is set before the external call, Completed and Failed are
// terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Session identifies the authenticated wallet behind a session token.
type Session struct {
	WalletID string
}

// RateSnapshot is a point-in-time conversion rate. BoughtAt is the cost-basis
// rate the agent float was acquired at; the difference to Rate is the margin.
type RateSnapshot struct {
	ExchangeType string
	ServiceType  string
	Rate         decimal.Decimal
	BoughtAt     decimal.Decimal
}

// UserData is the balance summary plus the current buy rate for a wallet.
type UserData struct {
	BalanceLocal decimal.Decimal
	BuyRate      RateSnapshot
}

type UserInfo struct {
	Phone string
	Name  string
}

type DepositRequestInput struct {
	TransactionID     string
	TransactionNumber string
	WalletID          string
	CRNumber          string
	Amount            decimal.Decimal // settlement currency
	Rate              decimal.Decimal
	BoughtAt          decimal.Decimal
	Status            Status
	RequestedAt       time.Time
}

type DepositUpdate struct {
	Status           Status
	Deposited        *decimal.Decimal
	ErrorMessage     string
	ProcessedAt      *time.Time
	ProviderResponse json.RawMessage
}

type DepositRequest struct {
	RequestID         string
	TransactionID     string
	TransactionNumber string
	WalletID          string
	CRNumber          string
	Amount            decimal.Decimal
	Rate              decimal.Decimal
	BoughtAt          decimal.Decimal
	Status            Status
	ErrorMessage      string
	RequestedAt       time.Time
	ProcessedAt       *time.Time
}

type WithdrawalRequestInput struct {
	TransactionID     string
	TransactionNumber string
	WalletID          string
	CRNumber          string
	Amount            decimal.Decimal // settlement currency
	Rate              decimal.Decimal
	BoughtAt          decimal.Decimal
	Status            Status
	RequestedAt       time.Time
}

type WithdrawalUpdate struct {
	Status       Status
	Withdrawn    *decimal.Decimal
	ErrorMessage string
	ProcessedAt  *time.Time
}

type WithdrawalRequest struct {
	RequestID         string
	TransactionID     string
	TransactionNumber string
	WalletID          string
	CRNumber          string
	Amount            decimal.Decimal
	Rate              decimal.Decimal
	BoughtAt          decimal.Decimal
	Status            Status
	ErrorMessage      string
	RequestedAt       time.Time
	ProcessedAt       *time.Time
}

// LedgerEntry is an append-only accounting record, created only after an
// external transfer is confirmed.
type LedgerEntry struct {
	TransactionID     string
	TransactionNumber string
	WalletID          string
	Amount            decimal.Decimal // local currency
	AmountSettlement  decimal.Decimal
	Rate              decimal.Decimal
	Charge            decimal.Decimal
	Description       string
	Direction         string // "dr" or "cr"
}
