package transfer

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/store"
	"github.com/tsenart/nap"
)

func New(db *nap.DB) core.TransferStore {
	return &transferStore{db: db}
}

type transferStore struct {
	db *nap.DB
}

func (s *transferStore) Create(ctx context.Context, transfer *core.Transfer) error {
	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = time.Now()
	}
	transfer.UpdatedAt = transfer.CreatedAt

	b := sq.Insert("transfers").
		Columns(scanColumns[1:]...).
		Values(
			transfer.CreatedAt.UnixMilli(),
			transfer.UpdatedAt.UnixMilli(),
			transfer.TraceID,
			transfer.TransferID,
			transfer.Status,
			transfer.OwnerID,
			transfer.RecipientID,
			transfer.Amount,
			transfer.Fee,
			transfer.Currency,
			transfer.Memo,
		)
	stmt, args := b.MustSql()
	r, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return err
	}

	id, err := r.LastInsertId()
	if err != nil {
		return err
	}

	transfer.ID = uint64(id)
	return nil
}

func (s *transferStore) UpdateStatus(ctx context.Context, transfer *core.Transfer, to core.TransferStatus) error {
	now := time.Now()
	b := sq.Update("transfers").
		Set("status", to).
		Set("transfer_id", transfer.TransferID).
		Set("updated_at", now.UnixMilli()).
		Where("id = ? AND status = ?", transfer.ID, transfer.Status)
	stmt, args := b.MustSql()
	r, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return err
	}

	n, err := r.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return store.ErrOptimisticLock
	}

	transfer.Status = to
	transfer.UpdatedAt = now
	return nil
}

func (s *transferStore) FindTrace(ctx context.Context, traceID string) (*core.Transfer, error) {
	b := sq.Select(scanColumns...).
		From("transfers").
		Where("trace_id = ?", traceID)
	stmt, args := b.MustSql()
	row := s.db.QueryRowContext(ctx, stmt, args...)

	var transfer core.Transfer
	if err := scanTransfer(row, &transfer); err != nil {
		return nil, err
	}

	return &transfer, nil
}

func (s *transferStore) query(ctx context.Context, b sq.SelectBuilder) ([]*core.Transfer, error) {
	stmt, args := b.MustSql()
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var transfers []*core.Transfer
	for rows.Next() {
		var transfer core.Transfer
		if err := scanTransfer(rows, &transfer); err != nil {
			return nil, err
		}

		transfers = append(transfers, &transfer)
	}

	return transfers, rows.Err()
}

func (s *transferStore) ListStatus(ctx context.Context, status core.TransferStatus, limit int) ([]*core.Transfer, error) {
	b := sq.Select(scanColumns...).
		From("transfers").
		Where("status = ?", status).
		OrderBy("id").
		Limit(uint64(limit))

	return s.query(ctx, b)
}

func (s *transferStore) List(ctx context.Context, offset uint64, limit int) ([]*core.Transfer, error) {
	b := sq.Select(scanColumns...).
		From("transfers").
		Where("id > ?", offset).
		OrderBy("id").
		Limit(uint64(limit))

	return s.query(ctx, b)
}

func (s *transferStore) Delete(ctx context.Context, id uint64) error {
	stmt, args := sq.Delete("transfers").Where("id = ?", id).MustSql()
	_, err := s.db.ExecContext(ctx, stmt, args...)
	return err
}
