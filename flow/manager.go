package flow

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/pandodao/safe-pay/camera"
	"github.com/pandodao/safe-pay/core"
)

var ErrSessionNotFound = errors.New("session not found")

type ManagerConfig struct {
	TTL    time.Duration
	Frames int
}

// Manager keeps the sessions opened over HTTP. Each session is bound to
// the token that opened it and scans frames pushed through its own relay.
type Manager struct {
	loader     core.ServiceLoader
	journal    core.TransferStore
	reconciler *Reconciler
	decoder    camera.Decoder
	cfg        ManagerConfig
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*managed
}

type managed struct {
	session *Session
	token   [sha256.Size]byte
	relay   *camera.Relay
	touched time.Time
}

func NewManager(
	loader core.ServiceLoader,
	journal core.TransferStore,
	reconciler *Reconciler,
	decoder camera.Decoder,
	cfg ManagerConfig,
	logger *slog.Logger,
) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}

	if cfg.Frames <= 0 {
		cfg.Frames = 4
	}

	return &Manager{
		loader:     loader,
		journal:    journal,
		reconciler: reconciler,
		decoder:    decoder,
		cfg:        cfg,
		logger:     logger.With("component", "sessions"),
		sessions:   map[string]*managed{},
	}
}

func (m *Manager) Open(ctx context.Context, token string) (*Session, error) {
	services, err := m.loader.Load(ctx, token)
	if err != nil {
		return nil, err
	}

	relay := camera.NewRelay(m.cfg.Frames)
	session, err := Open(ctx, Deps{
		Services:   services,
		Journal:    m.journal,
		Reconciler: m.reconciler,
		Camera:     camera.Exclusive(relay),
		Decoder:    m.decoder,
		Logger:     m.logger,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[session.ID()] = &managed{
		session: session,
		token:   sha256.Sum256([]byte(token)),
		relay:   relay,
		touched: time.Now(),
	}
	m.mu.Unlock()

	m.logger.Info("session opened", "session", session.ID(), "owner", session.OwnerID())
	return session, nil
}

func (m *Manager) lookup(id, token string) (*managed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	sum := sha256.Sum256([]byte(token))
	if subtle.ConstantTimeCompare(sum[:], s.token[:]) != 1 {
		return nil, ErrSessionNotFound
	}

	s.touched = time.Now()
	return s, nil
}

// Get returns the session id if it was opened with token.
func (m *Manager) Get(id, token string) (*Session, error) {
	s, err := m.lookup(id, token)
	if err != nil {
		return nil, err
	}

	return s.session, nil
}

// PushFrame feeds a camera frame to the scan of session id.
func (m *Manager) PushFrame(id, token string, frame image.Image) error {
	s, err := m.lookup(id, token)
	if err != nil {
		return err
	}

	if err := s.relay.Push(frame); err != nil {
		return cameraError(err)
	}

	return nil
}

func (m *Manager) Close(id, token string) error {
	s, err := m.lookup(id, token)
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	return s.session.Close()
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run expires idle sessions until ctx is done, then closes all of them.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(max(m.cfg.TTL/4, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return ctx.Err()
		case now := <-ticker.C:
			m.expire(now)
		}
	}
}

func (m *Manager) expire(now time.Time) {
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if now.Sub(s.touched) > m.cfg.TTL {
			expired = append(expired, s.session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, session := range expired {
		m.logger.Info("session expired", "session", session.ID())
		if err := session.Close(); err != nil {
			m.logger.Error("session.Close", "err", err)
		}
	}
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*managed{}
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.session.Close(); err != nil {
			m.logger.Error("session.Close", "err", err)
		}
	}
}
