package wallet

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/store"
	"github.com/tsenart/nap"
)

// New returns the wallet cache. It is shared with the worker process, so
// reads always hit the database.
func New(db *nap.DB) core.WalletStore {
	return &walletStore{db: db}
}

type walletStore struct {
	db *nap.DB
}

var columns = []string{"owner_id", "balance", "currency", "stale", "refreshed_at"}

func (s *walletStore) Save(ctx context.Context, wallet *core.Wallet) error {
	if wallet.RefreshedAt.IsZero() {
		wallet.RefreshedAt = time.Now()
	}
	wallet.Stale = false

	refreshedAt := wallet.RefreshedAt.UnixNano()
	update := sq.Update("wallets").
		Set("balance", wallet.Balance).
		Set("currency", wallet.Currency).
		Set("stale", 0).
		Set("refreshed_at", refreshedAt).
		Where("owner_id = ?", wallet.OwnerID).
		Where("refreshed_at <= ?", refreshedAt)
	stmt, args := update.MustSql()
	r, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return err
	}

	if n, err := r.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		return nil
	}

	// no row yet, or a newer one
	if cur, err := s.Find(ctx, wallet.OwnerID); err == nil {
		// mysql reports an unchanged row as unaffected
		if cur.RefreshedAt.After(wallet.RefreshedAt) {
			return store.ErrOptimisticLock
		}

		return nil
	} else if !store.IsErrNotFound(err) {
		return err
	}

	insert := sq.Insert("wallets").
		Columns(columns...).
		Values(wallet.OwnerID, wallet.Balance, wallet.Currency, 0, refreshedAt)
	stmt, args = insert.MustSql()
	_, err = s.db.ExecContext(ctx, stmt, args...)
	return err
}

func (s *walletStore) Find(ctx context.Context, ownerID string) (*core.Wallet, error) {
	b := sq.Select(columns...).From("wallets").Where(sq.Eq{"owner_id": ownerID})
	stmt, args := b.MustSql()
	row := s.db.QueryRowContext(ctx, stmt, args...)

	var (
		wallet      core.Wallet
		refreshedAt int64
	)

	if err := row.Scan(&wallet.OwnerID, &wallet.Balance, &wallet.Currency, &wallet.Stale, &refreshedAt); err != nil {
		return nil, err
	}

	wallet.RefreshedAt = time.Unix(0, refreshedAt)
	return &wallet, nil
}

func (s *walletStore) MarkStale(ctx context.Context, ownerID string) error {
	stmt, args := sq.Update("wallets").
		Set("stale", 1).
		Where("owner_id = ?", ownerID).
		MustSql()
	_, err := s.db.ExecContext(ctx, stmt, args...)
	return err
}
