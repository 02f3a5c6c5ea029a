package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrBelowMinimum         = errors.New("the minimum amount is $2.50 USD")
	ErrRateUnavailable      = errors.New("exchange rate not available, please try again later")
	ErrDuplicateTransaction = errors.New("transaction already processed")
	ErrPendingWithdrawal    = errors.New("you have a pending withdrawal request, please wait for it to be processed")
	ErrRequestNotFound      = errors.New("request not found")
)

// InsufficientFundsError carries the computed settlement-currency balance so
// the rejection message can show the caller exactly what they hold.
type InsufficientFundsError struct {
	Balance decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds, your balance is $%s USD", e.Balance.StringFixed(2))
}

// TransferFailedError is a terminal failure of the external transfer. Unknown
// marks the timeout case where the provider may still have completed the
// transfer server-side.
type TransferFailedError struct {
	Message string
	Unknown bool
}

func (e *TransferFailedError) Error() string {
	return e.Message
}

// TransferUnreachableError means the provider could not be reached before the
// transfer message was sent; the attempt is safe to retry.
type TransferUnreachableError struct {
	Message string
}

func (e *TransferUnreachableError) Error() string {
	return e.Message
}

// ReconciliationError is raised when money moved externally but the ledger
// record could not be updated. It is never retried automatically: without
// manual verification a retry risks crediting the user twice.
type ReconciliationError struct {
	TransactionID string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("transfer completed but system update failed, contact support with transaction ID: %s", e.TransactionID)
}
