package flow

import (
	"fmt"

	"github.com/pandodao/safe-pay/core"
	"github.com/shopspring/decimal"
)

// Check reports why a transfer cannot be sent, nil when it can. The result
// is advisory; the backend validates every submission again.
func Check(recipient *core.Recipient, quote Quote, balance decimal.Decimal, submitting bool) error {
	if quote.Total.GreaterThan(balance) {
		return newError(KindInsufficientBalance, fmt.Errorf("total %s exceeds balance %s", quote.Total, balance))
	}

	if submitting {
		return ErrSubmissionInFlight
	}

	if recipient == nil {
		return ErrRecipientRequired
	}

	if !quote.Amount.IsPositive() {
		return ErrInvalidAmount
	}

	return nil
}

func CanSend(recipient *core.Recipient, quote Quote, balance decimal.Decimal, submitting bool) bool {
	return Check(recipient, quote, balance, submitting) == nil
}
