package cmds

import (
	"strings"
	"time"

	"github.com/pandodao/safe-pay/core"
	"github.com/shopspring/decimal"
)

type Transfer struct {
	ID          uint64          `json:"id"`
	TraceID     string          `json:"trace_id"`
	TransferID  string          `json:"transfer_id,omitempty"`
	Status      string          `json:"status"`
	OwnerID     string          `json:"owner_id"`
	RecipientID string          `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
	Fee         decimal.Decimal `json:"fee"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	Memo        string          `json:"memo,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func viewTransfer(transfer *core.Transfer) *Transfer {
	return &Transfer{
		ID:          transfer.ID,
		TraceID:     transfer.TraceID,
		TransferID:  transfer.TransferID,
		Status:      transfer.Status.String(),
		OwnerID:     transfer.OwnerID,
		RecipientID: transfer.RecipientID,
		Amount:      transfer.Amount,
		Fee:         transfer.Fee,
		Total:       transfer.Amount.Add(transfer.Fee),
		Currency:    transfer.Currency,
		Memo:        transfer.Memo,
		CreatedAt:   transfer.CreatedAt,
		UpdatedAt:   transfer.UpdatedAt,
	}
}

func parseStatus(s string) (core.TransferStatus, bool) {
	for status := core.TransferStatusPending; status <= core.TransferStatusRejected; status++ {
		if strings.EqualFold(status.String(), s) {
			return status, true
		}
	}

	return 0, false
}
