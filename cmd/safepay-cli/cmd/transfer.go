package cmd

import (
	"errors"

	"github.com/pandodao/safe-pay/flow"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var transferOpt struct {
	to     string
	amount string
	memo   string
	dryRun bool
}

// transferCmd represents the transfer command
var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "send money to a contact",
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := decimal.NewFromString(transferOpt.amount)
		if err != nil {
			return errors.New("invalid amount")
		}

		sess, done, err := openSession(cmd, nil)
		if err != nil {
			return err
		}

		defer done()

		ctx := cmd.Context()
		if err := sess.SelectContact(ctx, transferOpt.to); err != nil {
			return err
		}

		return send(cmd, sess, amount, transferOpt.memo, transferOpt.dryRun)
	},
}

func init() {
	rootCmd.AddCommand(transferCmd)

	transferCmd.Flags().StringVar(&transferOpt.to, "to", "", "contact id")
	transferCmd.Flags().StringVar(&transferOpt.amount, "amount", "0", "amount")
	transferCmd.Flags().StringVar(&transferOpt.memo, "memo", "", "memo (optional)")
	transferCmd.Flags().BoolVar(&transferOpt.dryRun, "dry-run", false, "print the quote without sending")
	_ = transferCmd.MarkFlagRequired("to")
}

// send finishes a session whose recipient is already selected.
func send(cmd *cobra.Command, sess *flow.Session, amount decimal.Decimal, memo string, dryRun bool) error {
	ctx := cmd.Context()

	if _, err := sess.SetAmount(amount, memo); err != nil {
		return err
	}

	if dryRun {
		return printJson(cmd, sess.Snapshot(ctx))
	}

	outcome := sess.Submit(ctx)
	if err := printJson(cmd, outcome); err != nil {
		return err
	}

	return outcomeErr(outcome)
}
