//go:build linux

package cmd

import (
	"log/slog"

	"github.com/pandodao/safe-pay/camera"
	"github.com/pandodao/safe-pay/camera/v4l"
)

func openDevice(path string, logger *slog.Logger) camera.Device {
	return v4l.New(v4l.Config{Path: path}, logger)
}
