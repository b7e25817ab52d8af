package main

import (
	"fmt"
	"os"

	"github.com/MrCodeEU/faceattend/pkg/config"
	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

var (
	cfg        *config.Config
	configFile string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "faceattend",
	Short: "Face recognition attendance system",
	Long: `FaceAttend records attendance by recognising enrolled faces in a live
camera feed. Each person is recorded at most once per day.

Enrollment photos live in the gallery directory, either as loose files
(john.jpg, john_2.jpg) or as one directory per person (john/front.jpg).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logging.WithError(err).Debug("Command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

// setup loads configuration and initialises logging before every command.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config %s: %w", configFile, err)
		}
	} else {
		cfg, err = config.LoadDefault()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
			cfg = config.DefaultConfig()
		}
	}

	cfg.ExpandPaths()

	logLevel := cfg.Logging.Level
	if debug {
		logLevel = "debug"
	}
	if err := logging.Init(logLevel, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Debugf("FaceAttend v%s starting, gallery: %s", version, cfg.Gallery.Dir)
	return nil
}
