package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TransferRequest holds the only fields sent to the backend. Fee and total
// are derived on the client and never transmitted.
type TransferRequest struct {
	RecipientID string          `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

type TransferStatus uint8

const (
	_ TransferStatus = iota
	TransferStatusPending
	TransferStatusSubmitted
	TransferStatusFailed
	TransferStatusSettled
	TransferStatusRejected
)

func (s TransferStatus) String() string {
	switch s {
	case TransferStatusPending:
		return "Pending"
	case TransferStatusSubmitted:
		return "Submitted"
	case TransferStatusFailed:
		return "Failed"
	case TransferStatusSettled:
		return "Settled"
	case TransferStatusRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is expected.
func (s TransferStatus) Terminal() bool {
	return s == TransferStatusFailed || s == TransferStatusSettled || s == TransferStatusRejected
}

// Transfer is a journal entry of one submission attempt.
type Transfer struct {
	ID          uint64          `json:"id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	TraceID     string          `json:"trace_id"`
	TransferID  string          `json:"transfer_id,omitempty"`
	Status      TransferStatus  `json:"status"`
	OwnerID     string          `json:"owner_id"`
	RecipientID string          `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
	Fee         decimal.Decimal `json:"fee"`
	Currency    string          `json:"currency"`
	Memo        string          `json:"memo,omitempty"`
}

type TransferStore interface {
	Create(ctx context.Context, transfer *Transfer) error
	// UpdateStatus moves transfer from its current status to the given one,
	// failing when another writer changed it first.
	UpdateStatus(ctx context.Context, transfer *Transfer, to TransferStatus) error
	FindTrace(ctx context.Context, traceID string) (*Transfer, error)
	ListStatus(ctx context.Context, status TransferStatus, limit int) ([]*Transfer, error)
	List(ctx context.Context, offset uint64, limit int) ([]*Transfer, error)
	Delete(ctx context.Context, id uint64) error
}

type TransferService interface {
	// Submit sends the request; traceID lets the backend drop duplicates.
	Submit(ctx context.Context, traceID string, req *TransferRequest) (string, error)
}
