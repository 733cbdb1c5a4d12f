// Package camera owns the capture hardware used to scan QR codes. A Session
// holds at most one device handle and releases it on every exit path.
package camera

import (
	"context"
	"errors"
	"image"
	"sync"
)

var (
	ErrUnavailable      = errors.New("camera unavailable")
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrBusy             = errors.New("camera busy")
)

type Device interface {
	// Acquire opens the device. It fails with ErrUnavailable when no device
	// can be enumerated and ErrPermissionDenied when access is refused.
	Acquire(ctx context.Context) (Handle, error)
}

// Handle is an open capture stream. Frames may be dropped while the consumer
// lags; the channel is closed once the stream ends.
type Handle interface {
	Frames() <-chan image.Image
	Close() error
}

type Decoder interface {
	Decode(frame image.Image) (string, error)
}

// Exclusive wraps dev so that at most one handle is outstanding at a time.
func Exclusive(dev Device) Device {
	return &exclusive{dev: dev}
}

type exclusive struct {
	dev   Device
	mu    sync.Mutex
	owned bool
}

func (e *exclusive) Acquire(ctx context.Context) (Handle, error) {
	e.mu.Lock()
	if e.owned {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	e.owned = true
	e.mu.Unlock()

	h, err := e.dev.Acquire(ctx)
	if err != nil {
		e.release()
		return nil, err
	}

	return &exclusiveHandle{Handle: h, release: e.release}, nil
}

func (e *exclusive) release() {
	e.mu.Lock()
	e.owned = false
	e.mu.Unlock()
}

type exclusiveHandle struct {
	Handle
	once    sync.Once
	release func()
}

func (h *exclusiveHandle) Close() error {
	var err error
	h.once.Do(func() {
		err = h.Handle.Close()
		h.release()
	})

	return err
}
