package camera

import (
	"context"
	"image"
	"log/slog"
	"sync"
)

// DetectFunc receives a decoded payload. It runs on the analysis goroutine.
type DetectFunc func(payload string)

// Session drives one scan: Idle → Requesting → Scanning → Detected → Stopped.
// All state changes go through transition; Stopped is terminal and is the
// only state in which the handle has been released.
type Session struct {
	device  Device
	decoder Decoder
	logger  *slog.Logger

	mu     sync.Mutex
	state  State
	handle Handle
	detect DetectFunc
	done   chan struct{}
}

func NewSession(device Device, decoder Decoder, logger *slog.Logger) *Session {
	return &Session{
		device:  device,
		decoder: decoder,
		logger:  logger.With("component", "camera"),
		done:    make(chan struct{}),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// transition must be called with mu held.
func (s *Session) transition(to State) bool {
	if !s.state.canTransition(to) {
		return false
	}

	from := s.state
	s.state = to
	s.logger.Debug("scan state changed", "from", from, "to", to)

	if to == StateStopped {
		close(s.done)
	}

	return true
}

// Start acquires the device and begins analyzing frames. A session that
// already left Idle ignores the call.
func (s *Session) Start(ctx context.Context, fn DetectFunc) error {
	s.mu.Lock()
	if !s.transition(StateRequesting) {
		s.mu.Unlock()
		return nil
	}
	s.detect = fn
	s.mu.Unlock()

	h, err := s.device.Acquire(ctx)

	s.mu.Lock()
	if err != nil {
		s.transition(StateStopped)
		s.mu.Unlock()
		s.logger.Error("device.Acquire", "err", err)
		return err
	}

	if !s.transition(StateScanning) {
		// stopped while the device was being acquired
		s.mu.Unlock()
		if err := h.Close(); err != nil {
			s.logger.Error("handle.Close", "err", err)
		}

		return nil
	}

	s.handle = h
	s.mu.Unlock()

	go s.analyze(h)
	return nil
}

// Resume returns a Detected session to Scanning, used when the decoded
// payload could not be used.
func (s *Session) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateDetected {
		return false
	}

	return s.transition(StateScanning)
}

// Stop releases the handle. It is safe to call any number of times, from
// any state, including while Start is still acquiring the device.
func (s *Session) Stop() error {
	s.mu.Lock()
	if !s.transition(StateStopped) {
		s.mu.Unlock()
		return nil
	}

	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h == nil {
		return nil
	}

	if err := h.Close(); err != nil {
		s.logger.Error("handle.Close", "err", err)
		return err
	}

	return nil
}

func (s *Session) analyze(h Handle) {
	frames := h.Frames()

	for {
		select {
		case <-s.done:
			return
		case frame, ok := <-frames:
			if !ok {
				if s.State() != StateStopped {
					s.logger.Warn("frame stream ended")
					_ = s.Stop()
				}

				return
			}

			s.analyzeFrame(frame)
		}
	}
}

func (s *Session) analyzeFrame(frame image.Image) {
	if s.State() != StateScanning {
		return
	}

	payload, err := s.decoder.Decode(frame)
	if err != nil || payload == "" {
		// frames without a readable code are expected
		return
	}

	s.mu.Lock()
	if !s.transition(StateDetected) {
		s.mu.Unlock()
		return
	}
	fn := s.detect
	s.mu.Unlock()

	if fn != nil {
		fn(payload)
	}
}
