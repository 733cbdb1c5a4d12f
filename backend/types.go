package backend

import "github.com/shopspring/decimal"

type User struct {
	UserID        string          `json:"user_id"`
	FullName      string          `json:"full_name,omitempty"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	Currency      string          `json:"currency"`
}

type FeeSchedule struct {
	TransferFeePercent decimal.Decimal `json:"transfer_fee_percent"`
	Version            string          `json:"version,omitempty"`
}

type Contact struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type TransferInput struct {
	TraceID     string `json:"trace_id"`
	RecipientID string `json:"recipient_id"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

type TransferView struct {
	TransferID string `json:"transfer_id"`
}
