package camera

import (
	"context"
	"image"
	"sync"
)

// Relay is a Device whose frames are pushed by the caller, e.g. images
// uploaded by a browser or read from files.
type Relay struct {
	buffer int

	mu sync.Mutex
	ch chan image.Image
}

func NewRelay(buffer int) *Relay {
	return &Relay{buffer: max(buffer, 1)}
}

func (r *Relay) Acquire(_ context.Context) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch != nil {
		return nil, ErrBusy
	}

	r.ch = make(chan image.Image, r.buffer)
	return &relayHandle{relay: r, ch: r.ch}, nil
}

// Push hands a frame to the open handle, dropping it when the buffer is full.
func (r *Relay) Push(frame image.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch == nil {
		return ErrUnavailable
	}

	select {
	case r.ch <- frame:
	default:
	}

	return nil
}

type relayHandle struct {
	relay *Relay
	ch    chan image.Image
}

func (h *relayHandle) Frames() <-chan image.Image {
	return h.ch
}

func (h *relayHandle) Close() error {
	h.relay.mu.Lock()
	defer h.relay.mu.Unlock()

	if h.relay.ch == h.ch {
		close(h.ch)
		h.relay.ch = nil
	}

	return nil
}
