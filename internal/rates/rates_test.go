package rates

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestToSettlement(t *testing.T) {
	cases := []struct {
		name   string
		amount string
		rate   string
		want   string
	}{
		{"exact", "1000", "100", "10"},
		{"rounded", "333", "100", "3.33"},
		{"half up", "125", "1000", "0.13"},
		{"typical kes", "1300", "130", "10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToSettlement(dec(tc.amount), dec(tc.rate))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(dec(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestToSettlementFailsClosed(t *testing.T) {
	for _, rate := range []string{"0", "-1"} {
		if _, err := ToSettlement(dec("100"), dec(rate)); !errors.Is(err, ErrInvalidRate) {
			t.Fatalf("rate %s: expected ErrInvalidRate, got %v", rate, err)
		}
	}
}

func TestToLocal(t *testing.T) {
	if got := ToLocal(dec("10"), dec("130")); !got.Equal(dec("1300")) {
		t.Fatalf("expected 1300, got %s", got)
	}
}

func TestDepositMargin(t *testing.T) {
	got := DepositMargin(dec("130"), dec("128"), dec("50"))
	if !got.Equal(dec("100")) {
		t.Fatalf("expected 100, got %s", got)
	}
}

func TestWithdrawalMargin(t *testing.T) {
	got := WithdrawalMargin(dec("128"), dec("130"), dec("50"))
	if !got.Equal(dec("100")) {
		t.Fatalf("expected 100, got %s", got)
	}
}

func TestMarginCanGoNegative(t *testing.T) {
	got := DepositMargin(dec("128"), dec("130"), dec("50"))
	if !got.Equal(dec("-100")) {
		t.Fatalf("expected -100, got %s", got)
	}
}
