package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the client side copy of the custodial balance. The backend is
// the only writer; the copy is replaced wholesale on every reconciliation.
type Wallet struct {
	OwnerID     string          `json:"owner_id"`
	Balance     decimal.Decimal `json:"balance"`
	Currency    string          `json:"currency"`
	Stale       bool            `json:"stale,omitempty"`
	RefreshedAt time.Time       `json:"refreshed_at"`
}

type WalletStore interface {
	// Save replaces the cached wallet of wallet.OwnerID and clears the stale
	// flag. A wallet older than the cached one is refused with
	// store.ErrOptimisticLock.
	Save(ctx context.Context, wallet *Wallet) error
	Find(ctx context.Context, ownerID string) (*Wallet, error)
	// MarkStale flags the cached wallet as possibly outdated.
	MarkStale(ctx context.Context, ownerID string) error
}

type WalletService interface {
	GetCurrentWallet(ctx context.Context) (*Wallet, error)
}
