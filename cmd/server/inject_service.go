package main

import (
	"log/slog"

	"github.com/google/wire"
	"github.com/pandodao/safe-pay/backend"
	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/service/loader"
	"github.com/pandodao/safe-pay/service/settlement"
	"github.com/spf13/viper"
)

var serviceSet = wire.NewSet(
	provideBackendClient,
	loader.New,
	provideSettlementQueue,
)

func provideBackendClient(v *viper.Viper) *backend.Client {
	return backend.New(backend.Config{
		Endpoint: v.GetString("backend.endpoint"),
		Timeout:  v.GetDuration("backend.timeout"),
	})
}

func provideSettlementQueue(v *viper.Viper, logger *slog.Logger) (core.SettlementQueue, func(), error) {
	v.SetDefault("amqp.exchange", "safe-pay")
	v.SetDefault("amqp.queue", "settlements")

	q, err := settlement.New(settlement.Config{
		URL:      v.GetString("amqp.url"),
		Exchange: v.GetString("amqp.exchange"),
		Queue:    v.GetString("amqp.queue"),
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	return q, q.Close, nil
}
