package transfer

import (
	"time"

	"github.com/pandodao/safe-pay/core"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

var scanColumns = []string{
	"id",
	"created_at",
	"updated_at",
	"trace_id",
	"transfer_id",
	"status",
	"owner_id",
	"recipient_id",
	"amount",
	"fee",
	"currency",
	"memo",
}

func scanTransfer(scanner scanner, transfer *core.Transfer) error {
	var createdAt, updatedAt int64

	if err := scanner.Scan(
		&transfer.ID,
		&createdAt,
		&updatedAt,
		&transfer.TraceID,
		&transfer.TransferID,
		&transfer.Status,
		&transfer.OwnerID,
		&transfer.RecipientID,
		&transfer.Amount,
		&transfer.Fee,
		&transfer.Currency,
		&transfer.Memo,
	); err != nil {
		return err
	}

	transfer.CreatedAt = time.UnixMilli(createdAt)
	transfer.UpdatedAt = time.UnixMilli(updatedAt)
	return nil
}
