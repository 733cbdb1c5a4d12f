package cleaner

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/store"
	"github.com/pandodao/safe-pay/store/db"
	"github.com/pandodao/safe-pay/store/property"
	"github.com/pandodao/safe-pay/store/transfer"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleaner(t *testing.T) {
	ctx := context.Background()

	conn, err := db.Open("sqlite", filepath.Join(t.TempDir(), "worker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	transfers := transfer.New(conn)
	properties := property.New(conn)

	now := time.Now()
	old := now.Add(-48 * time.Hour)

	entries := []*core.Transfer{
		{TraceID: "old-settled", Status: core.TransferStatusSettled, CreatedAt: old},
		{TraceID: "old-submitted", Status: core.TransferStatusSubmitted, CreatedAt: old},
		{TraceID: "old-failed", Status: core.TransferStatusFailed, CreatedAt: old},
		{TraceID: "new-settled", Status: core.TransferStatusSettled, CreatedAt: now},
	}

	for _, e := range entries {
		e.OwnerID, e.RecipientID, e.Currency = "me", "friend", "USD"
		e.Amount = decimal.NewFromInt(1)
		require.NoError(t, transfers.Create(ctx, e))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := New(transfers, properties, logger, Config{Interval: time.Minute, Retention: 24 * time.Hour})

	exists := func(trace string) bool {
		_, err := transfers.FindTrace(ctx, trace)
		if store.IsErrNotFound(err) {
			return false
		}

		require.NoError(t, err)
		return true
	}

	require.NoError(t, w.run(ctx, now))
	assert.False(t, exists("old-settled"))
	assert.True(t, exists("old-submitted"), "waiting for settlement")
	assert.False(t, exists("old-failed"))
	assert.True(t, exists("new-settled"), "within retention")

	var offset uint64
	require.NoError(t, properties.Get(ctx, propertyCleanOffset, &offset))
	assert.Equal(t, entries[0].ID, offset, "checkpoint held by the pending entry")

	require.NoError(t, transfers.UpdateStatus(ctx, entries[1], core.TransferStatusSettled))
	require.NoError(t, w.run(ctx, now))
	assert.False(t, exists("old-submitted"))
	assert.True(t, exists("new-settled"))

	require.NoError(t, properties.Get(ctx, propertyCleanOffset, &offset))
	assert.Equal(t, entries[1].ID, offset)
}

func TestNewInvalidConfig(t *testing.T) {
	assert.Panics(t, func() {
		New(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})
	})
}
