package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pandodao/safe-pay/backend"
	"github.com/pandodao/safe-pay/camera"
	"github.com/pandodao/safe-pay/flow"
	"github.com/pandodao/safe-pay/service/loader"
	"github.com/pandodao/safe-pay/store/db"
	"github.com/pandodao/safe-pay/store/transfer"
	"github.com/pandodao/safe-pay/store/wallet"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "safepay-cli",
	Short:        "send money to a contact or a scanned code",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().StringP("endpoint", "l", "http://localhost:7001", "wallet backend endpoint")
	rootCmd.PersistentFlags().String("token", "", "user access token")
	rootCmd.PersistentFlags().String("journal", "safepay.db", "local transfer journal (sqlite)")
	rootCmd.PersistentFlags().Bool("debug", false, "debug logging")

	for _, name := range []string{"endpoint", "token", "journal", "debug"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func initConfig() {
	viper.SetEnvPrefix("safepay")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		cobra.CheckErr(viper.ReadInConfig())
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openSession starts a transfer session against the backend, journaling to
// the local sqlite file. dev may be nil when no camera is wanted.
func openSession(cmd *cobra.Command, dev camera.Device) (*flow.Session, func(), error) {
	token := viper.GetString("token")
	if token == "" {
		return nil, nil, loader.ErrMissingToken
	}

	logger := newLogger(cmd)
	client := backend.New(backend.Config{
		Endpoint: viper.GetString("endpoint"),
		Token:    token,
	})

	conn, err := db.Open("sqlite", viper.GetString("journal"))
	if err != nil {
		return nil, nil, err
	}

	deps := flow.Deps{
		Services:   loader.Bundle(client),
		Journal:    transfer.New(conn),
		Reconciler: flow.NewReconciler(wallet.New(conn), flow.ReconcilerConfig{}, logger),
		Decoder:    camera.NewQRDecoder(),
		Logger:     logger,
	}

	if dev != nil {
		deps.Camera = camera.Exclusive(dev)
	}

	sess, err := flow.Open(cmd.Context(), deps)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	return sess, func() {
		_ = sess.Close()
		_ = conn.Close()
	}, nil
}

func printJson(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

func outcomeErr(outcome flow.Outcome) error {
	if outcome.Success || outcome.Err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", outcome.Kind, outcome.Err)
}
