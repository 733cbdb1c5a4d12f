package transfer

import (
	"context"
	"fmt"

	"github.com/pandodao/safe-pay/backend"
	"github.com/pandodao/safe-pay/core"
)

func New(client *backend.Client) core.TransferService {
	return &service{client: client}
}

type service struct {
	client *backend.Client
}

func (s *service) Submit(ctx context.Context, traceID string, req *core.TransferRequest) (string, error) {
	view, err := s.client.CreateTransfer(ctx, &backend.TransferInput{
		TraceID:     traceID,
		RecipientID: req.RecipientID,
		Amount:      req.Amount.String(),
		Description: req.Description,
	})
	if err != nil {
		return "", fmt.Errorf("create transfer failed: %w", err)
	}

	return view.TransferID, nil
}
