//go:build !linux

package cmd

import (
	"log/slog"

	"github.com/pandodao/safe-pay/camera"
)

// openDevice has no capture backend here; scanning reports the camera as
// unavailable.
func openDevice(_ string, _ *slog.Logger) camera.Device {
	return nil
}
