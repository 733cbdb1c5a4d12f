package core

import (
	"context"
	"errors"
)

var ErrRecipientNotFound = errors.New("recipient not found")

type IdentifierKind uint8

const (
	_ IdentifierKind = iota
	IdentifierContact
	IdentifierQRToken
)

func (k IdentifierKind) String() string {
	switch k {
	case IdentifierContact:
		return "contact"
	case IdentifierQRToken:
		return "qr"
	default:
		return "unknown"
	}
}

// Identifier is what a recipient is looked up by: a contact directory id on
// the manual path, or the token decoded from a QR code.
type Identifier struct {
	Kind  IdentifierKind `json:"kind"`
	Value string         `json:"value"`
}

func ContactID(id string) Identifier {
	return Identifier{Kind: IdentifierContact, Value: id}
}

func QRToken(token string) Identifier {
	return Identifier{Kind: IdentifierQRToken, Value: token}
}

func (id Identifier) String() string {
	return id.Kind.String() + ":" + id.Value
}

type Recipient struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
}

type RecipientService interface {
	// Resolve returns ErrRecipientNotFound (possibly wrapped) when the
	// backend does not know the identifier.
	Resolve(ctx context.Context, id Identifier) (*Recipient, error)
}
