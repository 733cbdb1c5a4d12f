package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/wire"
	"github.com/pandodao/safe-pay/camera"
	"github.com/pandodao/safe-pay/flow"
	"github.com/pandodao/safe-pay/handler/api"
	"github.com/pandodao/safe-pay/handler/hc"
	"github.com/rs/cors"
	"github.com/spf13/viper"
	"github.com/tsenart/nap"
)

var serverSet = wire.NewSet(
	provideReconcilerConfig,
	flow.NewReconciler,
	provideDecoder,
	provideManagerConfig,
	flow.NewManager,
	provideAPIConfig,
	api.New,
	provideServer,
)

func provideReconcilerConfig(v *viper.Viper) flow.ReconcilerConfig {
	v.SetDefault("flow.reconcile_attempts", 3)
	v.SetDefault("flow.reconcile_backoff", 500*time.Millisecond)

	return flow.ReconcilerConfig{
		Attempts: v.GetInt("flow.reconcile_attempts"),
		Backoff:  v.GetDuration("flow.reconcile_backoff"),
	}
}

func provideDecoder() camera.Decoder {
	return camera.NewQRDecoder()
}

func provideManagerConfig(v *viper.Viper) flow.ManagerConfig {
	v.SetDefault("flow.session_ttl", 15*time.Minute)

	return flow.ManagerConfig{
		TTL:    v.GetDuration("flow.session_ttl"),
		Frames: v.GetInt("flow.frame_buffer"),
	}
}

func provideAPIConfig(v *viper.Viper) api.Config {
	return api.Config{
		WebhookSecret: v.GetString("webhook.secret"),
	}
}

func provideServer(apiHandler *api.Server, conn *nap.DB, logger *slog.Logger) *http.Server {
	m := chi.NewMux()
	m.Use(middleware.RealIP)
	m.Use(middleware.RequestID)
	m.Use(middleware.Logger)
	m.Use(middleware.Recoverer)
	m.Use(cors.AllowAll().Handler)

	m.Mount("/api", apiHandler.Handler())
	m.Mount("/hc", hc.Handler(version, map[string]hc.Check{
		"db": conn.Master().PingContext,
	}))

	return &http.Server{
		Addr:     fmt.Sprintf(":%d", opt.port),
		Handler:  m,
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}
