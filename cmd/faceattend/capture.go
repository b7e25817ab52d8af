package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/camera"
	"github.com/MrCodeEU/faceattend/pkg/display"
	"github.com/MrCodeEU/faceattend/pkg/gallery"
	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture <name>",
	Short: "Take enrollment photos with the camera",
	Long: `Take a series of photos of one person with a countdown between shots.
Photos are stored as <gallery>/<name>/photo_<n>.jpg. Press Q to stop early.`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().Int("count", 3, "Number of photos to take")
	captureCmd.Flags().Duration("delay", 2*time.Second, "Countdown before each photo")
}

func runCapture(cmd *cobra.Command, args []string) error {
	name := args[0]
	count, _ := cmd.Flags().GetInt("count")
	delay, _ := cmd.Flags().GetDuration("delay")

	if err := gallery.ValidateName(name); err != nil {
		return err
	}
	if count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cam := camera.New(cameraOptions(cfg))
	if err := cam.Open(ctx); err != nil {
		return err
	}
	defer func() { _ = cam.Close() }()

	var window *display.Window
	if cfg.Display.Enabled {
		window = display.NewWindow("Take Multiple Photos")
		defer func() { _ = window.Close() }()
	}

	out := cmd.OutOrStdout()
	taken := 0
	nextShot := time.Now().Add(delay)

	for taken < count && ctx.Err() == nil {
		frame, err := cam.Capture(ctx)
		if errors.Is(err, camera.ErrNoFrame) {
			logging.Debug("Failed to grab frame, retrying")
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}

		now := time.Now()
		if window != nil {
			lines := []string{
				fmt.Sprintf("Taking photo for: %s (%d/%d)", name, taken+1, count),
				countdownText(nextShot.Sub(now)),
				"Press Q to quit",
			}
			if window.ShowPrompt(frame.Image, lines) == display.Quit {
				_ = frame.Close()
				break
			}
		}

		if !now.Before(nextShot) {
			data, err := camera.EncodeJPEG(frame.Image)
			if err != nil {
				_ = frame.Close()
				return fmt.Errorf("failed to encode photo: %w", err)
			}
			path, err := gallery.AddPhoto(cfg.Gallery.Dir, name, ".jpg", data)
			if err != nil {
				_ = frame.Close()
				return err
			}
			taken++
			fmt.Fprintf(out, "Photo %d saved as %s\n", taken, path)

			if window != nil {
				window.Flash(frame.Width, frame.Height, 100*time.Millisecond)
			}
			nextShot = time.Now().Add(delay)
		}
		_ = frame.Close()
	}

	fmt.Fprintf(out, "Took %d photo(s) for %s\n", taken, name)
	if taken == 0 {
		return fmt.Errorf("no photos taken")
	}
	return nil
}

func countdownText(remaining time.Duration) string {
	if remaining <= 0 {
		return "CAPTURING..."
	}
	return fmt.Sprintf("Next photo in: %d seconds", int(math.Ceil(remaining.Seconds())))
}
