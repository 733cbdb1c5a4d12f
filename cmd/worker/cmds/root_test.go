package cmds

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/store/db"
	"github.com/pandodao/safe-pay/store/transfer"
	"github.com/pandodao/safe-pay/store/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCmd(t *testing.T) {
	ctx := context.Background()

	conn, err := db.Open("sqlite", filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &Cmd{
		Transfers: transfer.New(conn),
		Wallets:   wallet.New(conn),
	}

	for _, e := range []*core.Transfer{
		{TraceID: "t1", Status: core.TransferStatusSettled},
		{TraceID: "t2", Status: core.TransferStatusSubmitted},
	} {
		e.OwnerID, e.RecipientID, e.Currency = "me", "friend", "USD"
		e.Amount = decimal.RequireFromString("12.50")
		e.Fee = decimal.RequireFromString("0.19")
		e.CreatedAt = time.Now()
		require.NoError(t, c.Transfers.Create(ctx, e))
	}

	require.NoError(t, c.Wallets.Save(ctx, &core.Wallet{
		OwnerID:     "me",
		Balance:     decimal.NewFromInt(100),
		Currency:    "USD",
		RefreshedAt: time.Now(),
	}))

	run := func(t *testing.T, args ...string) []byte {
		var out bytes.Buffer
		cmd := c.root()
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		require.NoError(t, cmd.ExecuteContext(ctx))
		return out.Bytes()
	}

	t.Run("journal", func(t *testing.T) {
		var views []Transfer
		require.NoError(t, json.Unmarshal(run(t, "journal"), &views))
		require.Len(t, views, 2)
		assert.Equal(t, "t1", views[0].TraceID)
		assert.Equal(t, "Settled", views[0].Status)
		assert.Equal(t, "12.69", views[0].Total.String())
	})

	t.Run("journal by status", func(t *testing.T) {
		var views []Transfer
		require.NoError(t, json.Unmarshal(run(t, "journal", "--status", "submitted"), &views))
		require.Len(t, views, 1)
		assert.Equal(t, "t2", views[0].TraceID)
	})

	t.Run("unknown status", func(t *testing.T) {
		cmd := c.root()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"journal", "--status", "lost"})
		assert.Error(t, cmd.ExecuteContext(ctx))
	})

	t.Run("trace", func(t *testing.T) {
		var view Transfer
		require.NoError(t, json.Unmarshal(run(t, "trace", "t2"), &view))
		assert.Equal(t, "Submitted", view.Status)
	})

	t.Run("wallet mark stale", func(t *testing.T) {
		var w core.Wallet
		require.NoError(t, json.Unmarshal(run(t, "wallet", "me", "--mark-stale"), &w))
		assert.True(t, w.Stale)
		assert.True(t, decimal.NewFromInt(100).Equal(w.Balance))
	})
}
