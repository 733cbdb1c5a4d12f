package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pandodao/safe-pay/core"
)

// Outcome is what a submission hands back to the caller. A successful
// outcome may still carry ReconciliationFailure, in which case the balance
// shown is stale.
type Outcome struct {
	Success      bool   `json:"success"`
	TraceID      string `json:"trace_id,omitempty"`
	TransferID   string `json:"transfer_id,omitempty"`
	Kind         Kind   `json:"error_kind,omitempty"`
	Err          error  `json:"-"`
	BalanceStale bool   `json:"balance_stale,omitempty"`
}

func failure(err error) Outcome {
	return Outcome{Kind: KindOf(err), Err: err}
}

// Draft is a validated transfer ready to be submitted.
type Draft struct {
	OwnerID string
	Request core.TransferRequest
	Quote   Quote
}

// Submitter sends at most one transfer at a time.
type Submitter struct {
	transfers core.TransferService
	journal   core.TransferStore
	logger    *slog.Logger

	mu         sync.Mutex
	submitting bool
}

func NewSubmitter(transfers core.TransferService, journal core.TransferStore, logger *slog.Logger) *Submitter {
	return &Submitter{
		transfers: transfers,
		journal:   journal,
		logger:    logger,
	}
}

func (s *Submitter) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// Submit journals and sends draft. A call made while another one is in
// flight is rejected without any network call. Once sent, the submission is
// not canceled with ctx. then runs after the backend accepted the transfer,
// before the in-flight flag is cleared.
func (s *Submitter) Submit(ctx context.Context, draft Draft, then func(ctx context.Context) error) Outcome {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return failure(ErrSubmissionInFlight)
	}
	s.submitting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
	}()

	ctx = context.WithoutCancel(ctx)

	entry := &core.Transfer{
		TraceID:     uuid.NewString(),
		Status:      core.TransferStatusPending,
		OwnerID:     draft.OwnerID,
		RecipientID: draft.Request.RecipientID,
		Amount:      draft.Request.Amount,
		Fee:         draft.Quote.Fee,
		Currency:    draft.Quote.Currency,
		Memo:        draft.Request.Description,
	}

	logger := s.logger.With("trace", entry.TraceID)

	if err := s.journal.Create(ctx, entry); err != nil {
		logger.Error("journal.Create", "err", err)
		return failure(newError(KindSubmissionFailure, fmt.Errorf("journal transfer: %w", err)))
	}

	transferID, err := s.transfers.Submit(ctx, entry.TraceID, &draft.Request)
	if err != nil {
		logger.Error("transfers.Submit", "err", err)
		s.mark(ctx, logger, entry, core.TransferStatusFailed)

		out := failure(newError(KindSubmissionFailure, err))
		out.TraceID = entry.TraceID
		return out
	}

	entry.TransferID = transferID
	s.mark(ctx, logger, entry, core.TransferStatusSubmitted)
	logger.Info("transfer submitted", "transfer", transferID, "amount", entry.Amount, "fee", entry.Fee)

	out := Outcome{
		Success:    true,
		TraceID:    entry.TraceID,
		TransferID: transferID,
	}

	if then != nil {
		if err := then(ctx); err != nil {
			out.Kind = KindOf(err)
			out.Err = err
			out.BalanceStale = true
		}
	}

	return out
}

// mark records the submission result. A settlement may already have moved
// the entry on, which is not an error for the submitter.
func (s *Submitter) mark(ctx context.Context, logger *slog.Logger, entry *core.Transfer, status core.TransferStatus) {
	if err := s.journal.UpdateStatus(ctx, entry, status); err != nil {
		logger.Warn("journal.UpdateStatus", "status", status, "err", err)
	}
}
