package main

import (
	"fmt"

	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	Long: `Show the effective configuration after defaults, the config file and
FACEATTEND_* environment overrides are applied.

Configuration locations:
  System: /etc/faceattend/faceattend.yaml
  User:   ~/.config/faceattend/faceattend.yaml

Use --config to specify a custom config file.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	logging.Debug("Showing configuration")
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Current Configuration:")
	fmt.Fprintln(out, "======================")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[Camera]")
	fmt.Fprintf(out, "  Device:          %d\n", cfg.Camera.Device)
	fmt.Fprintf(out, "  Resolution:      %dx%d\n", cfg.Camera.Width, cfg.Camera.Height)
	fmt.Fprintf(out, "  Open Attempts:   %d (%d ms apart)\n", cfg.Camera.OpenAttempts, cfg.Camera.OpenRetryDelay)
	fmt.Fprintf(out, "  Detection Scale: %.2f\n", cfg.Camera.DetectionScale)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[Recognition]")
	fmt.Fprintf(out, "  Tolerance:       %.2f\n", cfg.Recognition.Tolerance)
	fmt.Fprintf(out, "  Model Path:      %s\n", cfg.Recognition.ModelPath)
	fmt.Fprintf(out, "  CNN Detector:    %t\n", cfg.Recognition.CNN)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[Gallery]")
	fmt.Fprintf(out, "  Directory:       %s\n", cfg.Gallery.Dir)
	fmt.Fprintf(out, "  Cache:           %t\n", cfg.Gallery.CacheEnabled)
	fmt.Fprintf(out, "  Encryption:      %t\n", cfg.Gallery.CacheEncryption)
	fmt.Fprintf(out, "  Cache File:      %s\n", cfg.CachePath())
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[Ledger]")
	fmt.Fprintf(out, "  Backend:         %s\n", cfg.Ledger.Backend)
	fmt.Fprintf(out, "  Path:            %s\n", cfg.Ledger.Path)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[Display]")
	fmt.Fprintf(out, "  Enabled:         %t\n", cfg.Display.Enabled)
	fmt.Fprintf(out, "  Window Title:    %s\n", cfg.Display.WindowTitle)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[Logging]")
	fmt.Fprintf(out, "  Level:           %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  File:            %s\n", cfg.Logging.File)

	return nil
}
