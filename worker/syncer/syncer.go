package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/store"
)

func New(
	settlements core.SettlementQueue,
	transfers core.TransferStore,
	wallets core.WalletStore,
	logger *slog.Logger,
) *Syncer {
	return &Syncer{
		settlements: settlements,
		transfers:   transfers,
		wallets:     wallets,
		logger:      logger.With("worker", "syncer"),
	}
}

// Syncer applies settlement verdicts to the journal and flags the owner's
// cached wallet stale. It holds no user credentials, so the balance itself
// is refreshed by the owner's next reconciliation.
type Syncer struct {
	settlements core.SettlementQueue
	transfers   core.TransferStore
	wallets     core.WalletStore
	logger      *slog.Logger
}

func (w *Syncer) Run(ctx context.Context) error {
	w.logger.Info("syncer start")

	for {
		err := w.settlements.Consume(ctx, w.handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		w.logger.Error("settlements.Consume", "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (w *Syncer) handle(ctx context.Context, settlement *core.Settlement) error {
	logger := w.logger.With("trace", settlement.TraceID)

	ownerID, err := w.apply(ctx, logger, settlement)
	if err != nil {
		return err
	}

	if ownerID == "" {
		ownerID = settlement.OwnerID
	}

	if ownerID == "" {
		return nil
	}

	if err := w.wallets.MarkStale(ctx, ownerID); err != nil {
		logger.Error("wallets.MarkStale", "err", err)
		return err
	}

	return nil
}

// apply returns the owner of the settled transfer, empty when the journal
// does not know it.
func (w *Syncer) apply(ctx context.Context, logger *slog.Logger, settlement *core.Settlement) (string, error) {
	transfer, err := w.transfers.FindTrace(ctx, settlement.TraceID)
	if err != nil {
		if store.IsErrNotFound(err) {
			// submitted by another client of the same user
			logger.Info("settlement of unknown transfer")
			return "", nil
		}

		logger.Error("transfers.FindTrace", "err", err)
		return "", err
	}

	to := core.TransferStatusSettled
	if settlement.Status == core.SettlementRejected {
		to = core.TransferStatusRejected
	}

	switch transfer.Status {
	case core.TransferStatusSettled, core.TransferStatusRejected:
		logger.Debug("settlement already applied", "status", transfer.Status)
		return transfer.OwnerID, nil
	}

	if settlement.TransferID != "" {
		transfer.TransferID = settlement.TransferID
	}

	if err := w.transfers.UpdateStatus(ctx, transfer, to); err != nil {
		if errors.Is(err, store.ErrOptimisticLock) {
			logger.Warn("transfer changed concurrently, retry later")
		} else {
			logger.Error("transfers.UpdateStatus", "err", err)
		}

		return "", err
	}

	if to == core.TransferStatusSettled && !settlement.Fee.Equal(transfer.Fee) {
		logger.Info("charged fee differs from estimate", "estimate", transfer.Fee, "charged", settlement.Fee)
	}

	logger.Info("transfer settled", "status", to, "transfer", transfer.TransferID)
	return transfer.OwnerID, nil
}
