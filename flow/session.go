package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pandodao/safe-pay/camera"
	"github.com/pandodao/safe-pay/core"
	"github.com/shopspring/decimal"
)

const maxMemoLength = 200

type Stage uint8

const (
	StageSelecting Stage = iota
	StageReady
	StageSubmitting
	StageReconciling
	StageDone
	StageClosed
)

func (s Stage) String() string {
	switch s {
	case StageSelecting:
		return "Selecting"
	case StageReady:
		return "Ready"
	case StageSubmitting:
		return "Submitting"
	case StageReconciling:
		return "Reconciling"
	case StageDone:
		return "Done"
	case StageClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Deps are the collaborators of one transfer session. Camera may be nil
// when no capture device exists.
type Deps struct {
	Services   *core.Services
	Journal    core.TransferStore
	Reconciler *Reconciler
	Camera     camera.Device
	Decoder    camera.Decoder
	Logger     *slog.Logger
}

// Session is one transfer: pick a recipient from contacts or by scanning a
// code, enter an amount, submit, reconcile. Both paths share everything
// after the recipient is known.
type Session struct {
	id        string
	owner     string
	deps      Deps
	logger    *slog.Logger
	submitter *Submitter

	// ctx lives until Close, bounding work started on the scan goroutine.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	stage     Stage
	wallet    *core.Wallet
	stale     bool
	fees      *core.FeeSchedule
	recipient *core.Recipient
	amount    decimal.Decimal
	memo      string
	scan      *camera.Session
	lastErr   error
	changes   chan struct{}
}

// Open starts a session, loading the wallet and a fresh fee schedule.
func Open(ctx context.Context, deps Deps) (*Session, error) {
	wallet, err := deps.Reconciler.Reconcile(ctx, "", deps.Services.Wallets)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}

	fees, err := deps.Services.Fees.GetFeeSchedule(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fee schedule: %w", err)
	}

	return New(deps, wallet, fees), nil
}

// New returns a session over an already loaded wallet and fee schedule.
func New(deps Deps, wallet *core.Wallet, fees *core.FeeSchedule) *Session {
	id := uuid.NewString()
	logger := deps.Logger.With("session", id, "owner", wallet.OwnerID)
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		id:        id,
		owner:     wallet.OwnerID,
		deps:      deps,
		logger:    logger,
		submitter: NewSubmitter(deps.Services.Transfers, deps.Journal, logger),
		ctx:       ctx,
		cancel:    cancel,
		wallet:    wallet,
		fees:      fees,
		changes:   make(chan struct{}, 1),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) OwnerID() string {
	return s.owner
}

// Changes signals after every state change. Signals are coalesced; the
// channel is never closed.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// notify must be called with mu held.
func (s *Session) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// fail records err for the snapshot and returns it, mu must be held.
func (s *Session) fail(err error) error {
	s.lastErr = err
	s.notify()
	return err
}

// settle picks the resting stage from the selection, mu must be held.
func (s *Session) settle() {
	if s.stage == StageClosed || s.submitter.Submitting() {
		return
	}

	if s.recipient == nil {
		s.stage = StageSelecting
	} else {
		s.stage = StageReady
	}
}

func (s *Session) checkOpen() error {
	if s.stage == StageClosed {
		return ErrSessionClosed
	}

	return nil
}

// SelectContact is the manual path. An unknown contact clears the selection.
func (s *Session) SelectContact(ctx context.Context, contactID string) error {
	s.mu.Lock()
	err := s.checkOpen()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	recipient, resolveErr := s.resolve(ctx, core.ContactID(contactID))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	if resolveErr != nil {
		s.recipient = nil
		s.settle()
		return s.fail(resolveErr)
	}

	s.recipient = recipient
	s.lastErr = nil
	s.settle()
	s.notify()
	return nil
}

func (s *Session) resolve(ctx context.Context, id core.Identifier) (*core.Recipient, error) {
	recipient, err := s.deps.Services.Recipients.Resolve(ctx, id)
	if err != nil {
		s.logger.Error("recipients.Resolve", "id", id, "err", err)
		return nil, resolveError(err)
	}

	if recipient.ID == s.owner {
		return nil, newError(KindSelfTransfer, fmt.Errorf("recipient %s is the sender", recipient.ID))
	}

	return recipient, nil
}

// StartScan opens the camera and looks for a recipient code. A scan that
// is already running is left alone.
func (s *Session) StartScan(ctx context.Context) error {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}

	if s.scan != nil && s.scan.State() != camera.StateStopped {
		s.mu.Unlock()
		return nil
	}

	if s.deps.Camera == nil {
		err := s.fail(newError(KindCameraUnavailable, camera.ErrUnavailable))
		s.mu.Unlock()
		return err
	}

	scan := camera.NewSession(s.deps.Camera, s.deps.Decoder, s.logger)
	s.scan = scan
	s.notify()
	s.mu.Unlock()

	err := scan.Start(ctx, func(payload string) {
		s.onDetect(scan, payload)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		return s.fail(cameraError(err))
	}

	s.notify()
	return nil
}

// StopScan releases the camera. Safe to call at any time.
func (s *Session) StopScan() error {
	s.mu.Lock()
	scan := s.scan
	s.mu.Unlock()

	if scan == nil {
		return nil
	}

	err := scan.Stop()

	s.mu.Lock()
	s.notify()
	s.mu.Unlock()
	return err
}

// onDetect runs once per scanning period on the scan goroutine. A payload
// that does not resolve sends the scan back to Scanning.
func (s *Session) onDetect(scan *camera.Session, payload string) {
	s.mu.Lock()
	s.notify()
	s.mu.Unlock()

	recipient, err := s.resolve(s.ctx, core.QRToken(payload))
	if s.ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	if err != nil {
		s.lastErr = err
		if scan.Resume() {
			s.logger.Info("code rejected, scanning again", "kind", KindOf(err))
		}

		s.notify()
		s.mu.Unlock()
		return
	}

	s.recipient = recipient
	s.lastErr = nil
	s.settle()
	s.mu.Unlock()

	if err := scan.Stop(); err != nil {
		s.logger.Error("scan.Stop", "err", err)
	}

	s.mu.Lock()
	s.notify()
	s.mu.Unlock()
}

// SetAmount validates and stores the amount and memo, returning the quote.
func (s *Session) SetAmount(amount decimal.Decimal, memo string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return Quote{}, err
	}

	if utf8.RuneCountInString(memo) > maxMemoLength {
		return Quote{}, s.fail(newError(KindInvalidMemo, fmt.Errorf("memo longer than %d characters", maxMemoLength)))
	}

	if err := ValidateAmount(amount, s.wallet.Currency); err != nil {
		return Quote{}, s.fail(err)
	}

	s.amount = amount
	s.memo = memo
	s.lastErr = nil
	if s.stage == StageDone {
		s.settle()
	}
	s.notify()

	return s.quote(), nil
}

// quote must be called with mu held.
func (s *Session) quote() Quote {
	return CalculateFee(s.amount, s.fees.TransferFeePercent, s.wallet.Currency)
}

func (s *Session) Quote() Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quote()
}

// CanSend reports whether Submit would send, against the newest reconciled
// balance of the owner.
func (s *Session) CanSend(ctx context.Context) bool {
	cached := s.cached(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.adopt(cached)
	return s.checkOpen() == nil && CanSend(s.recipient, s.quote(), s.wallet.Balance, s.submitter.Submitting())
}

// cached reads the owner's wallet from the reconciler. Other sessions of the
// same owner may have reconciled it since this one did.
func (s *Session) cached(ctx context.Context) *core.Wallet {
	cached, err := s.deps.Reconciler.Cached(ctx, s.owner)
	if err != nil {
		s.logger.Warn("reconciler.Cached", "err", err)
		return nil
	}

	return cached
}

// adopt replaces the session's wallet with cached unless cached is older.
// It must be called with mu held.
func (s *Session) adopt(cached *core.Wallet) {
	if cached != nil && !cached.RefreshedAt.Before(s.wallet.RefreshedAt) {
		s.wallet = cached
	}
}

// Submit sends the current transfer and reconciles the wallet before the
// session accepts another submission. Once sent the submission completes
// even when ctx is canceled or the session is closed.
func (s *Session) Submit(ctx context.Context) Outcome {
	cached := s.cached(ctx)

	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return failure(err)
	}

	s.adopt(cached)

	quote := s.quote()
	if err := Check(s.recipient, quote, s.wallet.Balance, s.submitter.Submitting()); err != nil {
		s.fail(err)
		s.mu.Unlock()
		return failure(err)
	}

	draft := Draft{
		OwnerID: s.owner,
		Request: core.TransferRequest{
			RecipientID: s.recipient.ID,
			Amount:      s.amount,
			Description: s.memo,
		},
		Quote: quote,
	}
	s.stage = StageSubmitting
	s.notify()
	s.mu.Unlock()

	out := s.submitter.Submit(ctx, draft, func(ctx context.Context) error {
		s.mu.Lock()
		if s.stage != StageClosed {
			s.stage = StageReconciling
		}
		s.notify()
		s.mu.Unlock()

		return s.refresh(ctx, s.deps.Reconciler.Refetch)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastErr = out.Err
	if s.stage != StageClosed {
		if out.Success {
			s.stage = StageDone
			s.amount = decimal.Zero
			s.memo = ""
		} else {
			s.settle()
		}
	}

	s.notify()
	return out
}

// Refresh reconciles the wallet on demand, e.g. after a settlement flagged
// it stale.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	err := s.checkOpen()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.refresh(ctx, s.deps.Reconciler.Reconcile)
}

type reconcileFunc func(ctx context.Context, ownerID string, source core.WalletService) (*core.Wallet, error)

func (s *Session) refresh(ctx context.Context, reconcile reconcileFunc) error {
	wallet, err := reconcile(ctx, s.owner, s.deps.Services.Wallets)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.stale = true
		return s.fail(err)
	}

	s.adopt(wallet)
	s.stale = false
	s.notify()
	return nil
}

// Snapshot is the view handed to the UI layer.
type Snapshot struct {
	ID             string          `json:"id"`
	Stage          Stage           `json:"stage"`
	Scan           camera.State    `json:"scan"`
	Recipient      *core.Recipient `json:"recipient,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Fee            decimal.Decimal `json:"fee"`
	Total          decimal.Decimal `json:"total"`
	Memo           string          `json:"memo,omitempty"`
	Currency       string          `json:"currency"`
	FeePercent     decimal.Decimal `json:"fee_percent"`
	FeeVersion     string          `json:"fee_version,omitempty"`
	Balance        decimal.Decimal `json:"balance"`
	PreviewBalance decimal.Decimal `json:"preview_balance"`
	BalanceStale   bool            `json:"balance_stale"`
	CanSend        bool            `json:"can_send"`
	Submitting     bool            `json:"submitting"`
	ErrorKind      Kind            `json:"error_kind,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// Snapshot reports the session state. The balance comes from the wallet
// cache, so a settlement flagging it stale shows up here. PreviewBalance is
// balance minus total and is never stored.
func (s *Session) Snapshot(ctx context.Context) Snapshot {
	cached := s.cached(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.adopt(cached)
	wallet := s.wallet

	quote := s.quote()
	submitting := s.submitter.Submitting()

	snap := Snapshot{
		ID:             s.id,
		Stage:          s.stage,
		Recipient:      s.recipient,
		Amount:         quote.Amount,
		Fee:            quote.Fee,
		Total:          quote.Total,
		Memo:           s.memo,
		Currency:       wallet.Currency,
		FeePercent:     s.fees.TransferFeePercent,
		FeeVersion:     s.fees.Version,
		Balance:        wallet.Balance,
		PreviewBalance: wallet.Balance.Sub(quote.Total),
		BalanceStale:   s.stale || wallet.Stale,
		Submitting:     submitting,
		CanSend:        s.checkOpen() == nil && CanSend(s.recipient, quote, wallet.Balance, submitting),
	}

	if s.scan != nil {
		snap.Scan = s.scan.State()
	}

	if s.lastErr != nil {
		snap.ErrorKind = KindOf(s.lastErr)
		snap.Error = s.lastErr.Error()
	}

	return snap
}

// Close stops any scan and ends the session. An in-flight submission still
// completes. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.stage == StageClosed {
		s.mu.Unlock()
		return nil
	}

	s.stage = StageClosed
	scan := s.scan
	s.notify()
	s.mu.Unlock()

	s.cancel()
	s.logger.Debug("session closed")

	if scan != nil {
		return scan.Stop()
	}

	return nil
}
