package api

import (
	"crypto/subtle"
	"encoding/json"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pandodao/generic"
	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/flow"
	"github.com/shopspring/decimal"
)

const maxFrameSize = 4 << 20

type Config struct {
	// WebhookSecret, when set, must be sent by the backend in the
	// X-Webhook-Secret header.
	WebhookSecret string
}

func New(sessions *flow.Manager, settlements core.SettlementQueue, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		sessions:    sessions,
		settlements: settlements,
		cfg:         cfg,
		logger:      logger.With("server", "api"),
	}
}

type Server struct {
	sessions    *flow.Manager
	settlements core.SettlementQueue
	cfg         Config
	logger      *slog.Logger
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.openSession)

		r.Route("/{session_id}", func(r chi.Router) {
			r.Get("/", s.findSession)
			r.Delete("/", s.closeSession)
			r.Put("/recipient", s.selectRecipient)
			r.Put("/amount", s.setAmount)
			r.Post("/scan", s.startScan)
			r.Delete("/scan", s.stopScan)
			r.Post("/scan/frames", s.pushFrame)
			r.Post("/submit", s.submit)
			r.Post("/refresh", s.refresh)
		})
	})

	r.Post("/webhooks/settlement", s.settle)

	return r
}

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}

	return strings.TrimSpace(token)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*flow.Session, bool) {
	session, err := s.sessions.Get(chi.URLParam(r, "session_id"), bearerToken(r))
	if err != nil {
		renderError(w, r, err)
		return nil, false
	}

	return session, true
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Open(r.Context(), bearerToken(r))
	if err != nil {
		s.logger.Error("sessions.Open", "err", err)
		renderError(w, r, err)
		return
	}

	renderJSON(w, r, http.StatusCreated, session.Snapshot(r.Context()))
}

func (s *Server) findSession(w http.ResponseWriter, r *http.Request) {
	if session, ok := s.session(w, r); ok {
		renderJSON(w, r, http.StatusOK, session.Snapshot(r.Context()))
	}
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(chi.URLParam(r, "session_id"), bearerToken(r)); err != nil {
		renderError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) selectRecipient(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var body struct {
		ContactID string `json:"contact_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ContactID == "" {
		renderBadRequest(w, r, "contact_id required")
		return
	}

	if err := session.SelectContact(r.Context(), body.ContactID); err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, r, http.StatusOK, session.Snapshot(r.Context()))
}

func (s *Server) setAmount(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var body struct {
		Amount      string `json:"amount"`
		Description string `json:"description"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		renderBadRequest(w, r, "invalid body")
		return
	}

	// unparsable amounts fail validation as zero
	amount := generic.Try(decimal.NewFromString(body.Amount))
	if _, err := session.SetAmount(amount, body.Description); err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, r, http.StatusOK, session.Snapshot(r.Context()))
}

func (s *Server) startScan(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	if err := session.StartScan(r.Context()); err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, r, http.StatusOK, session.Snapshot(r.Context()))
}

func (s *Server) stopScan(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	if err := session.StopScan(); err != nil {
		s.logger.Error("session.StopScan", "err", err)
	}

	renderJSON(w, r, http.StatusOK, session.Snapshot(r.Context()))
}

func (s *Server) pushFrame(w http.ResponseWriter, r *http.Request) {
	frame, _, err := image.Decode(http.MaxBytesReader(w, r.Body, maxFrameSize))
	if err != nil {
		renderBadRequest(w, r, "invalid frame")
		return
	}

	if err := s.sessions.PushFrame(chi.URLParam(r, "session_id"), bearerToken(r), frame); err != nil {
		renderError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

type outcomeView struct {
	flow.Outcome
	Error    string        `json:"error,omitempty"`
	Snapshot flow.Snapshot `json:"snapshot"`
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	out := session.Submit(r.Context())
	view := outcomeView{Outcome: out, Snapshot: session.Snapshot(r.Context())}

	code := http.StatusOK
	if out.Err != nil {
		view.Error = out.Err.Error()
	}

	if !out.Success {
		code = statusOf(out.Err)
	}

	renderJSON(w, r, code, view)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	if err := session.Refresh(r.Context()); err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, r, http.StatusOK, session.Snapshot(r.Context()))
}

func (s *Server) validSecret(got string) bool {
	if s.cfg.WebhookSecret == "" {
		return true
	}

	return subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.WebhookSecret)) == 1
}

func (s *Server) settle(w http.ResponseWriter, r *http.Request) {
	if !s.validSecret(r.Header.Get("X-Webhook-Secret")) {
		renderJSON(w, r, http.StatusUnauthorized, errorView{Code: http.StatusUnauthorized, Msg: "invalid webhook secret"})
		return
	}

	var settlement core.Settlement
	if err := json.NewDecoder(r.Body).Decode(&settlement); err != nil {
		renderBadRequest(w, r, "invalid body")
		return
	}

	if settlement.TraceID == "" {
		renderBadRequest(w, r, "trace_id required")
		return
	}

	switch settlement.Status {
	case core.SettlementSettled, core.SettlementRejected:
	default:
		renderBadRequest(w, r, "invalid status")
		return
	}

	if settlement.SettledAt.IsZero() {
		settlement.SettledAt = time.Now()
	}

	if err := s.settlements.Publish(r.Context(), &settlement); err != nil {
		s.logger.Error("settlements.Publish", "err", err)
		renderError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
