package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/store"
	"golang.org/x/sync/singleflight"
)

type ReconcilerConfig struct {
	Attempts int
	Backoff  time.Duration
}

// Reconciler owns the cached wallets. It never adjusts a balance locally:
// every refresh replaces the cached copy with the backend's record.
type Reconciler struct {
	wallets core.WalletStore
	cfg     ReconcilerConfig
	logger  *slog.Logger
	sf      singleflight.Group
}

func NewReconciler(wallets core.WalletStore, cfg ReconcilerConfig, logger *slog.Logger) *Reconciler {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}

	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}

	return &Reconciler{
		wallets: wallets,
		cfg:     cfg,
		logger:  logger.With("component", "reconciler"),
	}
}

// Reconcile fetches the wallet from source and stores it. ownerID may be
// empty before the owner is known; concurrent calls for the same owner share
// one fetch. After the last failed attempt the cached wallet is flagged stale
// and a ReconciliationFailure is returned. A rejected token is not retried.
func (r *Reconciler) Reconcile(ctx context.Context, ownerID string, source core.WalletService) (*core.Wallet, error) {
	if ownerID == "" {
		return r.reconcile(ctx, ownerID, source)
	}

	v, err, _ := r.sf.Do(ownerID, func() (interface{}, error) {
		return r.reconcile(ctx, ownerID, source)
	})
	if err != nil {
		return nil, err
	}

	return v.(*core.Wallet), nil
}

// Refetch is Reconcile for a caller that just changed the balance on the
// backend: it never joins a fetch that was already in flight, so the wallet
// returned was read after the change.
func (r *Reconciler) Refetch(ctx context.Context, ownerID string, source core.WalletService) (*core.Wallet, error) {
	if ownerID != "" {
		r.sf.Forget(ownerID)
	}

	return r.Reconcile(ctx, ownerID, source)
}

func (r *Reconciler) reconcile(ctx context.Context, ownerID string, source core.WalletService) (*core.Wallet, error) {
	var err error

retry:
	for attempt := 1; ; attempt++ {
		var wallet *core.Wallet
		if wallet, err = r.fetch(ctx, ownerID, source); err == nil {
			return wallet, nil
		}

		r.logger.Warn("reconcile wallet", "owner", ownerID, "attempt", attempt, "err", err)
		if attempt >= r.cfg.Attempts || errors.Is(err, core.ErrUnauthorized) {
			break
		}

		select {
		case <-ctx.Done():
			err = ctx.Err()
			break retry
		case <-time.After(r.cfg.Backoff * time.Duration(attempt)):
		}
	}

	if ownerID != "" {
		if err := r.wallets.MarkStale(ctx, ownerID); err != nil {
			r.logger.Error("wallets.MarkStale", "err", err)
		}
	}

	return nil, newError(KindReconciliationFailure, err)
}

func (r *Reconciler) fetch(ctx context.Context, ownerID string, source core.WalletService) (*core.Wallet, error) {
	started := time.Now()
	wallet, err := source.GetCurrentWallet(ctx)
	if err != nil {
		return nil, err
	}

	if ownerID != "" && wallet.OwnerID != ownerID {
		return nil, fmt.Errorf("wallet owner changed from %s to %s", ownerID, wallet.OwnerID)
	}

	// a wallet is as old as the request that read it
	wallet.RefreshedAt = started

	if err := r.wallets.Save(ctx, wallet); err != nil {
		if !errors.Is(err, store.ErrOptimisticLock) {
			return nil, fmt.Errorf("save wallet: %w", err)
		}

		// a fetch started later has already been stored
		newer, err := r.wallets.Find(ctx, wallet.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("find wallet: %w", err)
		}

		return newer, nil
	}

	return wallet, nil
}

// Cached returns the stored wallet of ownerID, including its stale flag.
func (r *Reconciler) Cached(ctx context.Context, ownerID string) (*core.Wallet, error) {
	return r.wallets.Find(ctx, ownerID)
}
