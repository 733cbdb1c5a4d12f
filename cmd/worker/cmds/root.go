package cmds

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pandodao/generic"
	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/store"
	"github.com/spf13/cobra"
)

type Cmd struct {
	Transfers core.TransferStore
	Wallets   core.WalletStore
}

func (c *Cmd) Run(ctx context.Context, args []string) error {
	root := c.root()
	root.SetArgs(args)
	root.SetOut(os.Stdout)

	return root.ExecuteContext(ctx)
}

func (c *Cmd) root() *cobra.Command {
	root := &cobra.Command{
		Use:   "safe-pay",
		Short: "safe-pay journal admin",
	}

	root.AddCommand(c.journalCmd())
	root.AddCommand(c.traceCmd())
	root.AddCommand(c.walletCmd())

	return root
}

func (c *Cmd) journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "list transfer journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetUint64("offset")
			status, _ := cmd.Flags().GetString("status")

			var (
				transfers []*core.Transfer
				err       error
			)

			if status != "" {
				s, ok := parseStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}

				transfers, err = c.Transfers.ListStatus(ctx, s, limit)
			} else {
				transfers, err = c.Transfers.List(ctx, offset, limit)
			}

			if err != nil {
				return err
			}

			return jsonPrint(cmd, generic.MapSlice(transfers, viewTransfer))
		},
	}

	cmd.Flags().Int("limit", 50, "max entries")
	cmd.Flags().Uint64("offset", 0, "list entries with id above offset")
	cmd.Flags().String("status", "", "filter by status (Pending, Submitted, Failed, Settled, Rejected)")
	return cmd
}

func (c *Cmd) traceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace <trace_id>",
		Short: "show the journal entry of a trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transfer, err := c.Transfers.FindTrace(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return jsonPrint(cmd, viewTransfer(transfer))
		},
	}
}

func (c *Cmd) walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet <owner_id>",
		Short: "show the cached wallet of an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ownerID := args[0]

			if stale, _ := cmd.Flags().GetBool("mark-stale"); stale {
				if err := c.Wallets.MarkStale(ctx, ownerID); err != nil {
					return err
				}
			}

			wallet, err := c.Wallets.Find(ctx, ownerID)
			if store.IsErrNotFound(err) {
				return fmt.Errorf("no cached wallet for %s", ownerID)
			} else if err != nil {
				return err
			}

			return jsonPrint(cmd, wallet)
		},
	}

	cmd.Flags().Bool("mark-stale", false, "flag the wallet for reconciliation first")
	return cmd
}

func jsonPrint(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
