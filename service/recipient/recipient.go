package recipient

import (
	"context"
	"fmt"
	"sync"

	"github.com/fox-one/mixin-sdk-go/v2"
	"github.com/pandodao/safe-pay/backend"
	"github.com/pandodao/safe-pay/core"
	"github.com/zyedidia/generic/cache"
)

func New(client *backend.Client) core.RecipientService {
	return &service{
		client: client,
		cache:  cache.New[string, *core.Recipient](256),
	}
}

type service struct {
	client *backend.Client

	cache *cache.Cache[string, *core.Recipient]
	mux   sync.Mutex
}

func (s *service) Resolve(ctx context.Context, id core.Identifier) (*core.Recipient, error) {
	key := id.String()

	s.mux.Lock()
	v, ok := s.cache.Get(key)
	s.mux.Unlock()
	if ok {
		return v, nil
	}

	contact, err := s.read(ctx, id)
	if err != nil {
		if backend.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrRecipientNotFound, id)
		}

		return nil, err
	}

	if contact.ID == "" {
		return nil, fmt.Errorf("%w: %s", core.ErrRecipientNotFound, id)
	}

	v = &core.Recipient{
		ID:          contact.ID,
		DisplayName: contact.FullName,
		AvatarRef:   contact.AvatarURL,
	}

	s.mux.Lock()
	s.cache.Put(key, v)
	s.mux.Unlock()

	return v, nil
}

func (s *service) read(ctx context.Context, id core.Identifier) (*backend.Contact, error) {
	switch id.Kind {
	case core.IdentifierContact:
		return s.client.ReadContact(ctx, id.Value)
	case core.IdentifierQRToken:
		// a code carrying a single owner mix address points straight at a user
		if userID, ok := mixAddressUser(id.Value); ok {
			return s.client.ReadContact(ctx, userID)
		}

		return s.client.ReadQRCode(ctx, id.Value)
	default:
		return nil, fmt.Errorf("unknown identifier kind %d", id.Kind)
	}
}

func mixAddressUser(token string) (string, bool) {
	addr, err := mixin.MixAddressFromString(token)
	if err != nil {
		return "", false
	}

	members := addr.Members()
	if addr.Threshold != 1 || len(members) != 1 {
		return "", false
	}

	return members[0], true
}
