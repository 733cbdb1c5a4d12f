package main

import (
	"time"

	"github.com/google/wire"
	"github.com/pandodao/safe-pay/worker/cleaner"
	"github.com/pandodao/safe-pay/worker/syncer"
	"github.com/spf13/viper"
)

var workerSet = wire.NewSet(
	syncer.New,
	provideCleanerConfig,
	cleaner.New,
)

func provideCleanerConfig(v *viper.Viper) cleaner.Config {
	v.SetDefault("cleaner.interval", time.Minute)
	v.SetDefault("cleaner.retention", 30*24*time.Hour)

	return cleaner.Config{
		Interval:  v.GetDuration("cleaner.interval"),
		Retention: v.GetDuration("cleaner.retention"),
	}
}
