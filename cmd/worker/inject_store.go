package main

import (
	"github.com/google/wire"
	"github.com/pandodao/safe-pay/store/db"
	"github.com/pandodao/safe-pay/store/property"
	"github.com/pandodao/safe-pay/store/transfer"
	"github.com/pandodao/safe-pay/store/wallet"
	"github.com/spf13/viper"
	"github.com/tsenart/nap"
)

var storeSet = wire.NewSet(
	provideDB,
	transfer.New,
	property.New,
	wallet.New,
)

func provideDB(v *viper.Viper) (*nap.DB, func(), error) {
	v.SetDefault("db.driver", "mysql")

	driver := v.GetString("db.driver")
	dsn := db.DSN(v.GetString("db.dsn"), v.GetStringSlice("db.replicas")...)

	conn, err := db.Open(driver, dsn)
	if err != nil {
		return nil, nil, err
	}

	return conn, func() { _ = conn.Close() }, nil
}
