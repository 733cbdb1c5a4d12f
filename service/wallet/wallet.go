package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pandodao/safe-pay/backend"
	"github.com/pandodao/safe-pay/core"
)

type service struct {
	client *backend.Client
}

func New(client *backend.Client) core.WalletService {
	return &service{client: client}
}

func (s *service) GetCurrentWallet(ctx context.Context) (*core.Wallet, error) {
	user, err := s.client.Me(ctx)
	if backend.IsUnauthorized(err) {
		return nil, fmt.Errorf("%w: %w", core.ErrUnauthorized, err)
	} else if err != nil {
		return nil, err
	}

	if user.UserID == "" {
		return nil, fmt.Errorf("current user has no id")
	}

	if user.WalletBalance.IsNegative() {
		return nil, fmt.Errorf("negative wallet balance %s", user.WalletBalance)
	}

	return &core.Wallet{
		OwnerID:     user.UserID,
		Balance:     user.WalletBalance,
		Currency:    strings.ToUpper(user.Currency),
		RefreshedAt: time.Now(),
	}, nil
}
