package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type SettlementStatus string

const (
	SettlementSettled  SettlementStatus = "settled"
	SettlementRejected SettlementStatus = "rejected"
)

// Settlement is the backend's asynchronous verdict on a submitted transfer,
// delivered by webhook.
type Settlement struct {
	TraceID    string           `json:"trace_id"`
	TransferID string           `json:"transfer_id"`
	OwnerID    string           `json:"owner_id"`
	Status     SettlementStatus `json:"status"`
	Fee        decimal.Decimal  `json:"fee"`
	SettledAt  time.Time        `json:"settled_at"`
}

type SettlementQueue interface {
	Publish(ctx context.Context, settlement *Settlement) error
	// Consume blocks, calling fn for every delivered settlement until ctx is done.
	Consume(ctx context.Context, fn func(ctx context.Context, settlement *Settlement) error) error
}
