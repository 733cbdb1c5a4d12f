package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pandodao/safe-pay/backend"
	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/service/fee"
	"github.com/pandodao/safe-pay/service/recipient"
	"github.com/pandodao/safe-pay/service/transfer"
	"github.com/pandodao/safe-pay/service/wallet"
)

var ErrMissingToken = errors.New("missing user token")

type loader struct {
	client   *backend.Client
	services *lru.Cache[string, *core.Services]
}

// New returns a loader handing out services bound to a user token. Bundles
// are kept per token so the recipient cache survives between sessions.
func New(client *backend.Client) core.ServiceLoader {
	services, err := lru.New[string, *core.Services](1024)
	if err != nil {
		panic(err)
	}

	return &loader{client: client, services: services}
}

func (l *loader) Load(_ context.Context, token string) (*core.Services, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	sum := sha256.Sum256([]byte(token))
	key := hex.EncodeToString(sum[:])
	if s, ok := l.services.Get(key); ok {
		return s, nil
	}

	s := Bundle(l.client.WithToken(token))
	l.services.Add(key, s)
	return s, nil
}

// Bundle builds the services acting with client's credentials.
func Bundle(client *backend.Client) *core.Services {
	return &core.Services{
		Wallets:    wallet.New(client),
		Fees:       fee.New(client),
		Recipients: recipient.New(client),
		Transfers:  transfer.New(client),
	}
}
