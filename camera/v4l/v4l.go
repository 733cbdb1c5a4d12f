//go:build linux

// Package v4l captures frames from a Video4Linux device.
package v4l

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/asaskevich/govalidator"
	"github.com/blackjack/webcam"
	"github.com/pandodao/safe-pay/camera"
)

const pixelFormatMJPEG webcam.PixelFormat = 0x47504A4D

type Config struct {
	Path   string `valid:"required"`
	Width  uint32
	Height uint32
	// WaitTimeout bounds a single wait for a frame, in seconds.
	WaitTimeout uint32
}

type Device struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Device {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = 640, 480
	}

	if cfg.WaitTimeout == 0 {
		cfg.WaitTimeout = 1
	}

	return &Device{
		cfg:    cfg,
		logger: logger.With("device", cfg.Path),
	}
}

func (d *Device) Acquire(_ context.Context) (camera.Handle, error) {
	cam, err := webcam.Open(d.cfg.Path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%w: %s", camera.ErrPermissionDenied, d.cfg.Path)
		default:
			return nil, fmt.Errorf("%w: %s: %v", camera.ErrUnavailable, d.cfg.Path, err)
		}
	}

	if _, ok := cam.GetSupportedFormats()[pixelFormatMJPEG]; !ok {
		_ = cam.Close()
		return nil, fmt.Errorf("%w: %s does not support MJPEG", camera.ErrUnavailable, d.cfg.Path)
	}

	if _, _, _, err := cam.SetImageFormat(pixelFormatMJPEG, d.cfg.Width, d.cfg.Height); err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("%w: set image format: %v", camera.ErrUnavailable, err)
	}

	if err := cam.StartStreaming(); err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("%w: start streaming: %v", camera.ErrUnavailable, err)
	}

	h := &handle{
		cam:     cam,
		timeout: d.cfg.WaitTimeout,
		logger:  d.logger,
		frames:  make(chan image.Image, 1),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}

	go h.stream()
	return h, nil
}

type handle struct {
	cam     *webcam.Webcam
	timeout uint32
	logger  *slog.Logger

	frames chan image.Image
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

func (h *handle) Frames() <-chan image.Image {
	return h.frames
}

func (h *handle) stream() {
	defer close(h.exited)
	defer close(h.frames)

	for {
		select {
		case <-h.done:
			return
		default:
		}

		err := h.cam.WaitForFrame(h.timeout)
		var timeout *webcam.Timeout
		if errors.As(err, &timeout) {
			continue
		} else if err != nil {
			h.logger.Error("cam.WaitForFrame", "err", err)
			return
		}

		buf, err := h.cam.ReadFrame()
		if err != nil || len(buf) == 0 {
			continue
		}

		// the buffer is reused by the driver after ReadFrame returns
		img, err := jpeg.Decode(bytes.NewReader(bytes.Clone(buf)))
		if err != nil {
			continue
		}

		select {
		case h.frames <- img:
		default:
		}
	}
}

func (h *handle) Close() error {
	var err error
	h.once.Do(func() {
		close(h.done)
		<-h.exited
		err = h.cam.Close()
	})

	return err
}
