package fee

import (
	"context"
	"fmt"

	"github.com/pandodao/safe-pay/backend"
	"github.com/pandodao/safe-pay/core"
	"golang.org/x/sync/singleflight"
)

func New(client *backend.Client) core.FeeService {
	return &service{client: client}
}

// service never keeps a schedule between calls; concurrent callers share
// one request.
type service struct {
	client *backend.Client
	sf     singleflight.Group
}

func (s *service) GetFeeSchedule(ctx context.Context) (*core.FeeSchedule, error) {
	v, err, _ := s.sf.Do("fees", func() (interface{}, error) {
		return s.client.ReadFeeSchedule(ctx)
	})

	if backend.IsUnauthorized(err) {
		return nil, fmt.Errorf("%w: %w", core.ErrUnauthorized, err)
	} else if err != nil {
		return nil, err
	}

	fees := v.(*backend.FeeSchedule)
	if fees.TransferFeePercent.IsNegative() {
		return nil, fmt.Errorf("invalid transfer fee percent %s", fees.TransferFeePercent)
	}

	return &core.FeeSchedule{
		TransferFeePercent: fees.TransferFeePercent,
		Version:            fees.Version,
	}, nil
}
