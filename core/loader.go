package core

import (
	"context"
	"errors"
)

// ErrUnauthorized marks a backend call refused for the user's token.
var ErrUnauthorized = errors.New("unauthorized")

// Services bundles the backend collaborators acting on behalf of one user.
type Services struct {
	Wallets    WalletService
	Fees       FeeService
	Recipients RecipientService
	Transfers  TransferService
}

type ServiceLoader interface {
	Load(ctx context.Context, token string) (*Services, error)
}
