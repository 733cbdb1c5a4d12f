package main

import (
	"log/slog"

	"github.com/google/wire"
	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/service/settlement"
	"github.com/spf13/viper"
)

var serviceSet = wire.NewSet(
	provideSettlementQueue,
)

func provideSettlementQueue(v *viper.Viper, logger *slog.Logger) (core.SettlementQueue, func(), error) {
	v.SetDefault("amqp.exchange", "safe-pay")
	v.SetDefault("amqp.queue", "settlements")
	v.SetDefault("amqp.prefetch", 16)

	q, err := settlement.New(settlement.Config{
		URL:      v.GetString("amqp.url"),
		Exchange: v.GetString("amqp.exchange"),
		Queue:    v.GetString("amqp.queue"),
		Prefetch: v.GetInt("amqp.prefetch"),
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	return q, q.Close, nil
}
