package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MrCodeEU/faceattend/pkg/gallery"
	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <name> <image>...",
	Short: "Add existing photos to a person's enrollment",
	Long: `Copy one or more photos into <gallery>/<name>/ as photo_<n>.<ext>.
By default each photo is checked for a detectable face first; photos
without one are skipped.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	enrollCmd.Flags().Bool("verify", true, "Skip photos without a detectable face")
}

// faceChecker reports whether an image contains a usable face.
type faceChecker func(data []byte) error

func runEnroll(cmd *cobra.Command, args []string) error {
	verify, _ := cmd.Flags().GetBool("verify")

	var check faceChecker
	if verify {
		rec, err := newRecognizer(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = rec.Close() }()
		check = func(data []byte) error {
			_, err := rec.DetectFirstFace(data)
			return err
		}
	}

	return enrollPhotos(cmd, cfg.Gallery.Dir, args[0], args[1:], check)
}

func enrollPhotos(cmd *cobra.Command, root, name string, paths []string, check faceChecker) error {
	if err := gallery.ValidateName(name); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	added := 0
	for _, path := range paths {
		if !gallery.IsImageFile(path) {
			fmt.Fprintf(out, "  skipped %s: not a jpg, jpeg or png file\n", path)
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logging.WithError(err).Warnf("Skipping %s", path)
			fmt.Fprintf(out, "  skipped %s: %v\n", path, err)
			continue
		}

		if check != nil {
			if err := check(data); err != nil {
				fmt.Fprintf(out, "  skipped %s: %v\n", path, err)
				continue
			}
		}

		dst, err := gallery.AddPhoto(root, name, filepath.Ext(path), data)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  added %s -> %s\n", path, dst)
		added++
	}

	if added == 0 {
		return fmt.Errorf("no photos enrolled for %s", name)
	}
	fmt.Fprintf(out, "Enrolled %d photo(s) for %s\n", added, name)
	return nil
}
