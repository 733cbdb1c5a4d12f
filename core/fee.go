package core

import (
	"context"

	"github.com/shopspring/decimal"
)

type FeeSchedule struct {
	TransferFeePercent decimal.Decimal `json:"transfer_fee_percent"`
	Version            string          `json:"version,omitempty"`
}

type FeeService interface {
	// GetFeeSchedule always asks the backend, rate changes apply on the next session.
	GetFeeSchedule(ctx context.Context) (*FeeSchedule, error)
}
