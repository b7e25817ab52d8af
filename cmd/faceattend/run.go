package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/attendance"
	"github.com/MrCodeEU/faceattend/pkg/camera"
	"github.com/MrCodeEU/faceattend/pkg/display"
	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/MrCodeEU/faceattend/pkg/matcher"
	"github.com/MrCodeEU/faceattend/pkg/session"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start recognising faces and recording attendance",
	Long: `Load the enrollment gallery, open the camera and record attendance for
every recognised face. Press Q in the window (or Ctrl+C) to stop and R to
reset the on-screen present count.`,
	Args: cobra.NoArgs,
	RunE: runAttendance,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("headless", false, "Run without a display window")
}

func runAttendance(cmd *cobra.Command, args []string) error {
	headless, _ := cmd.Flags().GetBool("headless")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	rec, err := newRecognizer(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rec.Close() }()

	g, err := loadGallery(cfg, rec)
	if err != nil {
		return err
	}

	led, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = led.Close() }()

	cam := camera.New(cameraOptions(cfg))
	if err := cam.Open(ctx); err != nil {
		return err
	}
	defer func() { _ = cam.Close() }()

	var renderer display.Renderer = display.Headless{}
	if cfg.Display.Enabled && !headless {
		renderer = display.NewWindow(cfg.Display.WindowTitle)
	}
	defer func() { _ = renderer.Close() }()

	tracker := session.NewTracker(time.Now())
	p, err := attendance.NewPipeline(attendance.Deps{
		Camera:     cam,
		Recognizer: rec,
		Matcher:    matcher.New(g, rec),
		Ledger:     led,
		Session:    tracker,
		Renderer:   renderer,
		Registered: len(g.Identities()),
	})
	if err != nil {
		return err
	}

	logging.WithFields(logging.Fields{
		"session":    tracker.ID(),
		"entries":    g.Len(),
		"identities": len(g.Identities()),
		"ledger":     cfg.Ledger.Path,
	}).Info("Attendance system running")
	fmt.Fprintln(cmd.OutOrStdout(), "Attendance system running. Press Q to quit, R to reset the present count.")

	if err := p.Run(ctx); err != nil {
		return err
	}

	today, err := led.Today()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Present today: %d\n", len(today))
	if seen := tracker.Names(); len(seen) > 0 {
		fmt.Fprintf(out, "Seen this session: %s\n", strings.Join(seen, ", "))
	}
	return nil
}
