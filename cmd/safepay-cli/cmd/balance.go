package cmd

import (
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "reconcile and show the wallet balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, done, err := openSession(cmd, nil)
		if err != nil {
			return err
		}

		defer done()

		snap := sess.Snapshot(cmd.Context())
		return printJson(cmd, map[string]any{
			"owner_id":      sess.OwnerID(),
			"balance":       snap.Balance,
			"currency":      snap.Currency,
			"fee_percent":   snap.FeePercent,
			"balance_stale": snap.BalanceStale,
		})
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
