package flow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pandodao/safe-pay/camera"
	"github.com/pandodao/safe-pay/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionScenarioA(t *testing.T) {
	ctx := context.Background()
	e := newEnv("100.00", "1.5")
	s := e.open(t)

	require.NoError(t, s.SelectContact(ctx, "friend"))
	q, err := s.SetAmount(dec("50.00"), "lunch")
	require.NoError(t, err)
	assert.True(t, q.Fee.Equal(dec("0.75")))
	assert.True(t, q.Total.Equal(dec("50.75")))
	assert.True(t, s.CanSend(ctx))

	snap := s.Snapshot(ctx)
	assert.Equal(t, StageReady, snap.Stage)
	assert.True(t, snap.PreviewBalance.Equal(dec("49.25")))

	// the backend charged a different fee than the estimate
	e.wallets.set("49.10", false)

	out := s.Submit(ctx)
	require.True(t, out.Success, "%v", out.Err)
	assert.Zero(t, out.Kind)
	assert.False(t, out.BalanceStale)

	snap = s.Snapshot(ctx)
	assert.Equal(t, StageDone, snap.Stage)
	assert.True(t, snap.Balance.Equal(dec("49.10")), "balance %s", snap.Balance)
	assert.False(t, snap.BalanceStale)
	assert.False(t, snap.CanSend)

	require.Len(t, e.transfers.requests, 1)
	req := e.transfers.requests[0]
	assert.Equal(t, "friend", req.RecipientID)
	assert.True(t, req.Amount.Equal(dec("50")))
	assert.Equal(t, "lunch", req.Description)

	entries := e.journal.all()
	require.Len(t, entries, 1)
	assert.Equal(t, out.TraceID, entries[0].TraceID)
	assert.Equal(t, core.TransferStatusSubmitted, entries[0].Status)
}

func TestSessionScenarioB(t *testing.T) {
	ctx := context.Background()
	e := newEnv("10.00", "0")
	s := e.open(t)

	require.NoError(t, s.SelectContact(ctx, "friend"))
	_, err := s.SetAmount(dec("50.00"), "")
	require.NoError(t, err)
	assert.False(t, s.CanSend(ctx))

	out := s.Submit(ctx)
	assert.False(t, out.Success)
	assert.Equal(t, KindInsufficientBalance, out.Kind)
	assert.Zero(t, e.transfers.Calls())
	assert.Empty(t, e.journal.all())

	snap := s.Snapshot(ctx)
	assert.Equal(t, KindInsufficientBalance, snap.ErrorKind)
	assert.True(t, snap.Balance.Equal(dec("10")))
}

func TestSessionScenarioC(t *testing.T) {
	ctx := context.Background()
	e := newEnv("100.00", "1.5")
	s := e.open(t)

	require.NoError(t, s.StartScan(ctx))
	require.Equal(t, camera.StateScanning, s.Snapshot(ctx).Scan)

	require.NoError(t, e.relay.Push(frame("unknown-code")))
	require.Eventually(t, func() bool {
		snap := s.Snapshot(ctx)
		return snap.ErrorKind == KindRecipientNotFound && snap.Scan == camera.StateScanning
	}, time.Second, 5*time.Millisecond)

	snap := s.Snapshot(ctx)
	assert.Nil(t, snap.Recipient)
	assert.Equal(t, StageSelecting, snap.Stage)
	assert.Zero(t, e.transfers.Calls())
	assert.Empty(t, e.journal.all())

	// scanning goes on and picks up a good code
	require.NoError(t, e.relay.Push(frame("friend-code")))
	require.Eventually(t, func() bool {
		snap := s.Snapshot(ctx)
		return snap.Recipient != nil && snap.Scan == camera.StateStopped
	}, time.Second, 5*time.Millisecond)

	snap = s.Snapshot(ctx)
	assert.Equal(t, "friend", snap.Recipient.ID)
	assert.Equal(t, StageReady, snap.Stage)
	assert.Zero(t, snap.ErrorKind)
	assert.ErrorIs(t, e.relay.Push(frame("friend-code")), camera.ErrUnavailable, "camera released")
}

func TestSessionScenarioD(t *testing.T) {
	ctx := context.Background()
	e := newEnv("100.00", "1.5")
	s := e.open(t)

	require.NoError(t, s.SelectContact(ctx, "friend"))
	_, err := s.SetAmount(dec("50.00"), "")
	require.NoError(t, err)

	e.transfers.err = errors.New("connection refused")
	out := s.Submit(ctx)
	assert.False(t, out.Success)
	assert.Equal(t, KindSubmissionFailure, out.Kind)
	assert.Equal(t, 1, e.wallets.Calls(), "no reconciliation after a failure")

	snap := s.Snapshot(ctx)
	assert.True(t, snap.Balance.Equal(dec("100")))
	assert.Equal(t, StageReady, snap.Stage)
	assert.Equal(t, KindSubmissionFailure, snap.ErrorKind)
	assert.True(t, snap.CanSend, "the user may try again")

	entries := e.journal.all()
	require.Len(t, entries, 1)
	assert.Equal(t, core.TransferStatusFailed, entries[0].Status)
}

func TestSessionCanSendUntilReconciled(t *testing.T) {
	ctx := context.Background()
	e := newEnv("100.00", "1.5")
	s := e.open(t)

	require.NoError(t, s.SelectContact(ctx, "friend"))
	_, err := s.SetAmount(dec("10.00"), "")
	require.NoError(t, err)

	e.transfers.gate = make(chan struct{})
	e.transfers.started = make(chan struct{}, 1)

	var (
		canSendReconciling bool
		stageReconciling   Stage
	)
	e.wallets.hook(func() {
		canSendReconciling = s.CanSend(ctx)
		stageReconciling = s.Snapshot(ctx).Stage
	})

	done := make(chan Outcome)
	go func() {
		done <- s.Submit(ctx)
	}()

	<-e.transfers.started
	assert.False(t, s.CanSend(ctx))
	assert.Equal(t, StageSubmitting, s.Snapshot(ctx).Stage)

	second := s.Submit(ctx)
	assert.Equal(t, KindSubmissionInFlight, second.Kind)

	close(e.transfers.gate)
	out := <-done
	require.True(t, out.Success)

	assert.False(t, canSendReconciling)
	assert.Equal(t, StageReconciling, stageReconciling)
	assert.Equal(t, 1, e.transfers.Calls())
}

func TestSessionReconciliationFailure(t *testing.T) {
	ctx := context.Background()
	e := newEnv("100.00", "1.5")
	s := e.open(t)

	require.NoError(t, s.SelectContact(ctx, "friend"))
	_, err := s.SetAmount(dec("50.00"), "")
	require.NoError(t, err)

	e.wallets.set("49.25", true)
	out := s.Submit(ctx)
	assert.True(t, out.Success)
	assert.True(t, out.BalanceStale)
	assert.Equal(t, KindReconciliationFailure, out.Kind)

	snap := s.Snapshot(ctx)
	assert.True(t, snap.BalanceStale)
	assert.True(t, snap.Balance.Equal(dec("100")), "the cached balance is never adjusted locally")
	assert.Equal(t, KindReconciliationFailure, snap.ErrorKind)

	e.wallets.set("49.25", false)
	require.NoError(t, s.Refresh(ctx))

	snap = s.Snapshot(ctx)
	assert.False(t, snap.BalanceStale)
	assert.True(t, snap.Balance.Equal(dec("49.25")))
}

func TestSessionRecipient(t *testing.T) {
	ctx := context.Background()
	e := newEnv("100.00", "1.5")
	s := e.open(t)

	require.NoError(t, s.SelectContact(ctx, "friend"))
	assert.Equal(t, StageReady, s.Snapshot(ctx).Stage)

	err := s.SelectContact(ctx, "stranger")
	assert.ErrorIs(t, err, ErrRecipientNotFound)
	assert.Nil(t, s.Snapshot(ctx).Recipient, "unknown contact clears the selection")
	assert.Equal(t, StageSelecting, s.Snapshot(ctx).Stage)

	err = s.SelectContact(ctx, "me")
	assert.ErrorIs(t, err, ErrSelfTransfer)
	assert.False(t, s.CanSend(ctx))
}

func TestSessionSetAmount(t *testing.T) {
	e := newEnv("100.00", "1.5")
	s := e.open(t)

	_, err := s.SetAmount(dec("0"), "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = s.SetAmount(dec("1.005"), "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	long := make([]rune, maxMemoLength+1)
	for i := range long {
		long[i] = 'é'
	}
	_, err = s.SetAmount(dec("1"), string(long))
	assert.ErrorIs(t, err, ErrInvalidMemo)

	_, err = s.SetAmount(dec("1"), string(long[:maxMemoLength]))
	assert.NoError(t, err)
}

func TestSessionCamera(t *testing.T) {
	ctx := context.Background()

	t.Run("no device", func(t *testing.T) {
		e := newEnv("1", "0")
		deps := e.deps()
		deps.Camera = nil

		s, err := Open(ctx, deps)
		require.NoError(t, err)
		defer s.Close()

		assert.ErrorIs(t, s.StartScan(ctx), ErrCameraUnavailable)
		assert.Equal(t, KindCameraUnavailable, s.Snapshot(ctx).ErrorKind)
	})

	t.Run("permission denied", func(t *testing.T) {
		e := newEnv("1", "0")
		deps := e.deps()
		deps.Camera = deniedDevice{}

		s, err := Open(ctx, deps)
		require.NoError(t, err)
		defer s.Close()

		assert.ErrorIs(t, s.StartScan(ctx), ErrPermissionDenied)
		assert.Equal(t, camera.StateStopped, s.Snapshot(ctx).Scan)
	})

	t.Run("start twice", func(t *testing.T) {
		e := newEnv("1", "0")
		s := e.open(t)

		require.NoError(t, s.StartScan(ctx))
		require.NoError(t, s.StartScan(ctx))
		require.NoError(t, s.StopScan())
		require.NoError(t, s.StopScan())
		assert.Equal(t, camera.StateStopped, s.Snapshot(ctx).Scan)

		// a new scan can take the released camera
		require.NoError(t, s.StartScan(ctx))
		assert.Equal(t, camera.StateScanning, s.Snapshot(ctx).Scan)
	})

	t.Run("close releases the camera", func(t *testing.T) {
		e := newEnv("1", "0")
		s := e.open(t)

		require.NoError(t, s.StartScan(ctx))
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		assert.ErrorIs(t, e.relay.Push(frame("friend-code")), camera.ErrUnavailable)
		assert.Equal(t, camera.StateStopped, s.Snapshot(ctx).Scan)
		assert.Equal(t, StageClosed, s.Snapshot(ctx).Stage)
		assert.ErrorIs(t, s.SelectContact(ctx, "friend"), ErrSessionClosed)
		assert.ErrorIs(t, s.StartScan(ctx), ErrSessionClosed)
		assert.Equal(t, KindSessionClosed, s.Submit(ctx).Kind)
	})
}

func TestSessionRefreshDuringSubmit(t *testing.T) {
	ctx := context.Background()
	e := newEnv("100.00", "1.5")
	s1 := e.open(t)
	s2 := e.open(t)

	require.NoError(t, s2.SelectContact(ctx, "friend"))
	_, err := s2.SetAmount(dec("50.00"), "")
	require.NoError(t, err)

	entered, release := make(chan struct{}), make(chan struct{})
	var stalled atomic.Bool
	e.wallets.stall(func() {
		if stalled.CompareAndSwap(false, true) {
			close(entered)
			<-release
		}
	})

	refreshed := make(chan error, 1)
	go func() { refreshed <- s1.Refresh(ctx) }()
	<-entered

	// the transfer lands while the refresh above holds the old balance
	e.wallets.set("49.25", false)
	out := s2.Submit(ctx)
	require.True(t, out.Success, "%v", out.Err)
	assert.False(t, out.BalanceStale)
	assert.True(t, s2.Snapshot(ctx).Balance.Equal(dec("49.25")))

	close(release)
	require.NoError(t, <-refreshed)

	snap := s1.Snapshot(ctx)
	assert.True(t, snap.Balance.Equal(dec("49.25")), "balance %s", snap.Balance)
	assert.False(t, snap.BalanceStale)

	cached, err := e.reconciler.Cached(ctx, "me")
	require.NoError(t, err)
	assert.True(t, cached.Balance.Equal(dec("49.25")), "cached %s", cached.Balance)
}

func TestSessionGatesOnNewestBalance(t *testing.T) {
	ctx := context.Background()
	e := newEnv("100.00", "1.5")
	s1 := e.open(t)
	s2 := e.open(t)

	require.NoError(t, s2.SelectContact(ctx, "friend"))
	_, err := s2.SetAmount(dec("60.00"), "")
	require.NoError(t, err)
	require.True(t, s2.CanSend(ctx))

	require.NoError(t, s1.SelectContact(ctx, "friend"))
	_, err = s1.SetAmount(dec("50.00"), "")
	require.NoError(t, err)

	e.wallets.set("49.25", false)
	out := s1.Submit(ctx)
	require.True(t, out.Success, "%v", out.Err)

	// s2 never refreshed, but the owner's balance moved under it
	assert.False(t, s2.CanSend(ctx))

	snap := s2.Snapshot(ctx)
	assert.False(t, snap.CanSend)
	assert.True(t, snap.Balance.Equal(dec("49.25")), "balance %s", snap.Balance)

	out = s2.Submit(ctx)
	assert.False(t, out.Success)
	assert.Equal(t, KindInsufficientBalance, out.Kind)
	assert.Equal(t, 1, e.transfers.Calls())
}
