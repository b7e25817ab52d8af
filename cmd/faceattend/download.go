package main

import (
	"compress/bzip2"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// model is one dlib model file published as a bzip2 archive.
type model struct {
	Name string
	URL  string
}

var dlibModels = []model{
	{
		Name: "shape_predictor_5_face_landmarks.dat",
		URL:  "http://dlib.net/files/shape_predictor_5_face_landmarks.dat.bz2",
	},
	{
		Name: "dlib_face_recognition_resnet_model_v1.dat",
		URL:  "http://dlib.net/files/dlib_face_recognition_resnet_model_v1.dat.bz2",
	},
	{
		Name: "mmod_human_face_detector.dat",
		URL:  "http://dlib.net/files/mmod_human_face_detector.dat.bz2",
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download-models [dir]",
	Short: "Download the dlib face models",
	Long: `Download the dlib landmark, recognition and CNN detector models into
[dir], or into recognition.model_path when no directory is given. Models
already present are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDownloadModels,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}

func runDownloadModels(cmd *cobra.Command, args []string) error {
	modelDir := cfg.Recognition.ModelPath
	if len(args) > 0 {
		modelDir = args[0]
	}

	logging.Infof("Downloading models to: %s", modelDir)

	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	for _, m := range dlibModels {
		targetPath := filepath.Join(modelDir, m.Name)
		if _, err := os.Stat(targetPath); err == nil {
			logging.Infof("Model %s already exists, skipping", m.Name)
			continue
		}

		logging.Infof("Downloading %s...", m.Name)
		if err := downloadAndExtract(client, m, targetPath, cmd.ErrOrStderr()); err != nil {
			return fmt.Errorf("failed to download %s: %w", m.Name, err)
		}
		logging.Infof("Successfully downloaded %s", m.Name)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "All models downloaded successfully!")
	return nil
}

// downloadAndExtract streams a bzip2 archive into targetPath. The data goes
// to a temporary file first so an interrupted download never leaves a
// truncated model behind.
func downloadAndExtract(client *http.Client, m model, targetPath string, progress io.Writer) error {
	resp, err := client.Get(m.URL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(targetPath), ".download-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	bar := progressbar.NewOptions64(resp.ContentLength,
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription(m.Name),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
	)
	body := io.TeeReader(resp.Body, bar)

	if _, err := io.Copy(tmp, bzip2.NewReader(body)); err != nil {
		_ = tmp.Close()
		return err
	}
	_ = bar.Finish()

	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, targetPath)
}
