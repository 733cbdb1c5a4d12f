package cmd

import (
	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/store/db"
	"github.com/pandodao/safe-pay/store/transfer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var historyOpt struct {
	offset uint64
	limit  int
}

var historyCmd = &cobra.Command{
	Use:   "history [trace_id]",
	Short: "list the local transfer journal",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.Open("sqlite", viper.GetString("journal"))
		if err != nil {
			return err
		}

		defer conn.Close()

		transfers := transfer.New(conn)
		ctx := cmd.Context()

		if len(args) == 1 {
			t, err := transfers.FindTrace(ctx, args[0])
			if err != nil {
				return err
			}

			return printJson(cmd, t)
		}

		list, err := transfers.List(ctx, historyOpt.offset, historyOpt.limit)
		if err != nil {
			return err
		}

		if list == nil {
			list = []*core.Transfer{}
		}

		return printJson(cmd, list)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Uint64Var(&historyOpt.offset, "offset", 0, "list entries with id above offset")
	historyCmd.Flags().IntVar(&historyOpt.limit, "limit", 20, "max entries")
}
