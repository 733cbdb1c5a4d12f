package flow

import (
	"context"
	"database/sql"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pandodao/safe-pay/camera"
	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/store"
	"github.com/shopspring/decimal"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeWallets struct {
	mu      sync.Mutex
	balance decimal.Decimal
	fail    bool
	calls   int
	onFetch func()
	onRead  func()
}

func (w *fakeWallets) set(balance string, fail bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance = dec(balance)
	w.fail = fail
}

func (w *fakeWallets) hook(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onFetch = fn
}

// stall runs fn after a fetch has read the balance, before it returns.
func (w *fakeWallets) stall(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onRead = fn
}

func (w *fakeWallets) GetCurrentWallet(_ context.Context) (*core.Wallet, error) {
	w.mu.Lock()
	w.calls++
	fn := w.onFetch
	w.mu.Unlock()

	if fn != nil {
		fn()
	}

	w.mu.Lock()
	fail, balance, read := w.fail, w.balance, w.onRead
	w.mu.Unlock()

	if read != nil {
		read()
	}

	if fail {
		return nil, errors.New("connection reset")
	}

	return &core.Wallet{OwnerID: "me", Balance: balance, Currency: "USD", RefreshedAt: time.Now()}, nil
}

func (w *fakeWallets) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

type fakeFees struct {
	percent decimal.Decimal
}

func (f *fakeFees) GetFeeSchedule(_ context.Context) (*core.FeeSchedule, error) {
	return &core.FeeSchedule{TransferFeePercent: f.percent, Version: "v1"}, nil
}

type fakeRecipients map[string]*core.Recipient

func (r fakeRecipients) Resolve(_ context.Context, id core.Identifier) (*core.Recipient, error) {
	if v, ok := r[id.Value]; ok {
		return v, nil
	}

	return nil, core.ErrRecipientNotFound
}

type fakeTransfers struct {
	mu       sync.Mutex
	calls    int
	requests []core.TransferRequest
	err      error
	gate     chan struct{}
	started  chan struct{}
}

func (f *fakeTransfers) Submit(_ context.Context, traceID string, req *core.TransferRequest) (string, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, *req)
	gate, err := f.gate, f.err
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}

	if gate != nil {
		<-gate
	}

	if err != nil {
		return "", err
	}

	return "tx-" + traceID, nil
}

func (f *fakeTransfers) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memJournal struct {
	mu      sync.Mutex
	entries []*core.Transfer
}

func (j *memJournal) Create(_ context.Context, t *core.Transfer) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, e := range j.entries {
		if e.TraceID == t.TraceID {
			return errors.New("duplicate trace")
		}
	}

	t.ID = uint64(len(j.entries) + 1)
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	c := *t
	j.entries = append(j.entries, &c)
	return nil
}

func (j *memJournal) UpdateStatus(_ context.Context, t *core.Transfer, to core.TransferStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, e := range j.entries {
		if e.TraceID != t.TraceID {
			continue
		}

		if e.Status != t.Status {
			return store.ErrOptimisticLock
		}

		e.Status, e.TransferID = to, t.TransferID
		t.Status = to
		return nil
	}

	return sql.ErrNoRows
}

func (j *memJournal) FindTrace(_ context.Context, traceID string) (*core.Transfer, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, e := range j.entries {
		if e.TraceID == traceID {
			c := *e
			return &c, nil
		}
	}

	return nil, sql.ErrNoRows
}

func (j *memJournal) ListStatus(_ context.Context, status core.TransferStatus, limit int) ([]*core.Transfer, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var list []*core.Transfer
	for _, e := range j.entries {
		if e.Status == status && len(list) < limit {
			c := *e
			list = append(list, &c)
		}
	}

	return list, nil
}

func (j *memJournal) List(_ context.Context, offset uint64, limit int) ([]*core.Transfer, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var list []*core.Transfer
	for _, e := range j.entries {
		if e.ID > offset && len(list) < limit {
			c := *e
			list = append(list, &c)
		}
	}

	return list, nil
}

func (j *memJournal) Delete(_ context.Context, id uint64) error {
	return errors.New("not supported")
}

func (j *memJournal) all() []core.Transfer {
	j.mu.Lock()
	defer j.mu.Unlock()

	list := make([]core.Transfer, len(j.entries))
	for i, e := range j.entries {
		list[i] = *e
	}

	return list
}

type memWalletStore struct {
	mu      sync.Mutex
	wallets map[string]core.Wallet
}

func newMemWalletStore() *memWalletStore {
	return &memWalletStore{wallets: map[string]core.Wallet{}}
}

func (s *memWalletStore) Save(_ context.Context, w *core.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.wallets[w.OwnerID]; ok && w.RefreshedAt.Before(cur.RefreshedAt) {
		return store.ErrOptimisticLock
	}

	w.Stale = false
	s.wallets[w.OwnerID] = *w
	return nil
}

func (s *memWalletStore) Find(_ context.Context, ownerID string) (*core.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[ownerID]
	if !ok {
		return nil, sql.ErrNoRows
	}

	return &w, nil
}

func (s *memWalletStore) MarkStale(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.wallets[ownerID]; ok {
		w.Stale = true
		s.wallets[ownerID] = w
	}

	return nil
}

type codeFrame struct {
	image.Image
	payload string
}

func frame(payload string) image.Image {
	return codeFrame{Image: image.NewGray(image.Rect(0, 0, 1, 1)), payload: payload}
}

type frameDecoder struct{}

func (frameDecoder) Decode(img image.Image) (string, error) {
	if f, ok := img.(codeFrame); ok && f.payload != "" {
		return f.payload, nil
	}

	return "", errors.New("no code in frame")
}

type deniedDevice struct{}

func (deniedDevice) Acquire(_ context.Context) (camera.Handle, error) {
	return nil, camera.ErrPermissionDenied
}

// env wires a session against in memory collaborators. The wallet owner is
// "me"; "friend" and the "friend-code" QR token resolve to a recipient.
type env struct {
	wallets    *fakeWallets
	fees       *fakeFees
	transfers  *fakeTransfers
	journal    *memJournal
	store      *memWalletStore
	relay      *camera.Relay
	reconciler *Reconciler
	services   *core.Services
}

func newEnv(balance, percent string) *env {
	friend := &core.Recipient{ID: "friend", DisplayName: "Friend"}
	e := &env{
		wallets:   &fakeWallets{balance: dec(balance)},
		fees:      &fakeFees{percent: dec(percent)},
		transfers: &fakeTransfers{},
		journal:   &memJournal{},
		store:     newMemWalletStore(),
		relay:     camera.NewRelay(1),
	}

	e.reconciler = NewReconciler(e.store, ReconcilerConfig{Attempts: 2, Backoff: time.Millisecond}, discard)
	e.services = &core.Services{
		Wallets: e.wallets,
		Fees:    e.fees,
		Recipients: fakeRecipients{
			"friend":      friend,
			"friend-code": friend,
			"me":          {ID: "me", DisplayName: "Me"},
		},
		Transfers: e.transfers,
	}

	return e
}

func (e *env) deps() Deps {
	return Deps{
		Services:   e.services,
		Journal:    e.journal,
		Reconciler: e.reconciler,
		Camera:     camera.Exclusive(e.relay),
		Decoder:    frameDecoder{},
		Logger:     discard,
	}
}

func (e *env) open(t *testing.T) *Session {
	t.Helper()

	s, err := Open(context.Background(), e.deps())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })
	return s
}
