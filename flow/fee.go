package flow

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// minorUnits lists currencies whose minor unit is not the cent.
var minorUnits = map[string]int32{
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
	"GNF": 0,
	"JPY": 0,
	"KRW": 0,
	"RWF": 0,
	"UGX": 0,
	"VND": 0,
	"XAF": 0,
	"XOF": 0,
}

// MinorUnits returns the number of decimals of currency, 2 when unknown.
func MinorUnits(currency string) int32 {
	if n, ok := minorUnits[strings.ToUpper(currency)]; ok {
		return n
	}

	return 2
}

// Quote is the client side estimate of a transfer. The backend decides the
// fee actually charged.
type Quote struct {
	Amount   decimal.Decimal `json:"amount"`
	Fee      decimal.Decimal `json:"fee"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// CalculateFee computes fee = amount * percent / 100 rounded half-up to the
// currency's minor unit, and total = amount + fee.
func CalculateFee(amount, percent decimal.Decimal, currency string) Quote {
	fee := amount.Mul(percent).Shift(-2).Round(MinorUnits(currency))

	return Quote{
		Amount:   amount,
		Fee:      fee,
		Total:    amount.Add(fee),
		Currency: currency,
	}
}

// ValidateAmount accepts positive amounts expressible in the currency's
// minor unit.
func ValidateAmount(amount decimal.Decimal, currency string) error {
	if !amount.IsPositive() {
		return newError(KindInvalidAmount, fmt.Errorf("amount must be positive, got %s", amount))
	}

	units := MinorUnits(currency)
	if !amount.Equal(amount.Truncate(units)) {
		return newError(KindInvalidAmount, fmt.Errorf("%s allows %d decimals, got %s", currency, units, amount))
	}

	return nil
}
