// Package rates converts between the local currency and the settlement
// currency (USD) and computes the house margin on each direction of the
// spread. All math runs on decimals; settlement amounts carry two decimal
// places.
package rates

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidRate = errors.New("invalid exchange rate")

// ToSettlement converts a local-currency amount to the settlement currency,
// rounded half-up to two decimal places. A zero or negative rate fails closed.
func ToSettlement(amountLocal, rate decimal.Decimal) (decimal.Decimal, error) {
	if rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, ErrInvalidRate
	}
	return amountLocal.Div(rate).Round(2), nil
}

// ToLocal converts a settlement-currency amount back to the local currency.
func ToLocal(amountSettlement, rate decimal.Decimal) decimal.Decimal {
	return amountSettlement.Mul(rate)
}

// DepositMargin is the charge captured on the deposit path: the spread
// between the current buy rate and the rate the agent float was bought at,
// applied to the settlement amount.
func DepositMargin(currentRate, costBasisRate, amountSettlement decimal.Decimal) decimal.Decimal {
	return currentRate.Sub(costBasisRate).Mul(amountSettlement)
}

// WithdrawalMargin is the charge on the withdrawal path; the sign convention
// is reversed because the house spread favors the opposite side.
func WithdrawalMargin(currentRate, costBasisRate, amountSettlement decimal.Decimal) decimal.Decimal {
	return costBasisRate.Sub(currentRate).Mul(amountSettlement)
}
