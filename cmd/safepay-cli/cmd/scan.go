package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/pandodao/safe-pay/camera"
	"github.com/pandodao/safe-pay/flow"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var scanOpt struct {
	device  string
	images  []string
	timeout time.Duration
	amount  string
	memo    string
	dryRun  bool
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "scan a recipient code from a camera or image files, then send",
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := decimal.NewFromString(scanOpt.amount)
		if err != nil {
			return errors.New("invalid amount")
		}

		var (
			dev    camera.Device
			relay  *camera.Relay
			frames []image.Image
		)

		if len(scanOpt.images) > 0 {
			if frames, err = readImages(scanOpt.images); err != nil {
				return err
			}

			relay = camera.NewRelay(1)
			dev = relay
		} else {
			dev = openDevice(scanOpt.device, newLogger(cmd))
		}

		sess, done, err := openSession(cmd, dev)
		if err != nil {
			return err
		}

		defer done()

		ctx, cancel := context.WithTimeout(cmd.Context(), scanOpt.timeout)
		defer cancel()

		if err := sess.StartScan(ctx); err != nil {
			return err
		}

		var snap flow.Snapshot
		if relay != nil {
			snap, err = feedFrames(ctx, sess, relay, frames)
		} else {
			snap, err = awaitScan(ctx, sess, scanOpt.timeout)
		}

		_ = sess.StopScan()

		if err != nil {
			return err
		}

		if snap.Recipient == nil {
			if snap.Error != "" {
				return fmt.Errorf("no recipient found: %s", snap.Error)
			}

			return errors.New("no recipient found")
		}

		cmd.PrintErrf("recipient: %s (%s)\n", snap.Recipient.DisplayName, snap.Recipient.ID)
		return send(cmd, sess, amount, scanOpt.memo, scanOpt.dryRun)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanOpt.device, "device", "/dev/video0", "capture device")
	scanCmd.Flags().StringSliceVar(&scanOpt.images, "image", nil, "scan image files instead of a device")
	scanCmd.Flags().DurationVar(&scanOpt.timeout, "timeout", 30*time.Second, "give up scanning after")
	scanCmd.Flags().StringVar(&scanOpt.amount, "amount", "0", "amount")
	scanCmd.Flags().StringVar(&scanOpt.memo, "memo", "", "memo (optional)")
	scanCmd.Flags().BoolVar(&scanOpt.dryRun, "dry-run", false, "print the quote without sending")
}

func readImages(paths []string) ([]image.Image, error) {
	frames := make([]image.Image, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}

		img, _, err := image.Decode(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}

		frames = append(frames, img)
	}

	return frames, nil
}

// feedFrames pushes one frame at a time, waiting for each to be analyzed.
func feedFrames(ctx context.Context, sess *flow.Session, relay *camera.Relay, frames []image.Image) (flow.Snapshot, error) {
	var snap flow.Snapshot
	for _, frame := range frames {
		if err := relay.Push(frame); err != nil {
			return snap, err
		}

		var err error
		if snap, err = awaitScan(ctx, sess, time.Second); err != nil {
			return snap, err
		}

		if snap.Recipient != nil || snap.Scan == camera.StateStopped {
			break
		}
	}

	return snap, nil
}

// awaitScan waits until a recipient is selected, the scan stops, or the
// scan sat idle in Scanning for wait.
func awaitScan(ctx context.Context, sess *flow.Session, wait time.Duration) (flow.Snapshot, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		snap := sess.Snapshot(ctx)
		if snap.Recipient != nil || snap.Scan == camera.StateStopped {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-sess.Done():
			return snap, flow.ErrSessionClosed
		case <-sess.Changes():
		case <-timer.C:
			if snap.Scan != camera.StateDetected {
				return snap, nil
			}

			timer.Reset(wait)
		}
	}
}
