package settlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/store"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type acker struct {
	acked, nacked, rejected int
	requeue                 bool
}

func (a *acker) Ack(uint64, bool) error { a.acked++; return nil }

func (a *acker) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *acker) Reject(_ uint64, requeue bool) error {
	a.rejected++
	a.requeue = requeue
	return nil
}

func TestHandle(t *testing.T) {
	q := &Queue{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	body := []byte(`{"trace_id":"t-1","owner_id":"me","status":"settled","fee":"0.75"}`)

	tests := []struct {
		name        string
		body        []byte
		redelivered bool
		fnErr       error
		want        acker
	}{
		{name: "handled", body: body, want: acker{acked: 1}},
		{name: "retry later", body: body, fnErr: errors.New("db down"), want: acker{nacked: 1, requeue: true}},
		{name: "failed again", body: body, redelivered: true, fnErr: errors.New("db down"), want: acker{rejected: 1}},
		{name: "lost race again", body: body, redelivered: true, fnErr: store.ErrOptimisticLock, want: acker{nacked: 1, requeue: true}},
		{name: "handled on redelivery", body: body, redelivered: true, want: acker{acked: 1}},
		{name: "malformed", body: []byte("{"), want: acker{rejected: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				a   acker
				got *core.Settlement
			)

			q.handle(context.Background(), amqp091.Delivery{Acknowledger: &a, Body: tt.body, Redelivered: tt.redelivered}, func(_ context.Context, s *core.Settlement) error {
				got = s
				return tt.fnErr
			})

			assert.Equal(t, tt.want, a)
			if tt.name != "malformed" {
				require.NotNil(t, got)
				assert.Equal(t, "t-1", got.TraceID)
				assert.Equal(t, core.SettlementSettled, got.Status)
			}
		})
	}
}

func TestNewInvalidConfig(t *testing.T) {
	_, err := New(Config{URL: "amqp://localhost"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
