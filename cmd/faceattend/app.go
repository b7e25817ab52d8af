package main

import (
	"fmt"
	"os"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/camera"
	"github.com/MrCodeEU/faceattend/pkg/config"
	"github.com/MrCodeEU/faceattend/pkg/gallery"
	"github.com/MrCodeEU/faceattend/pkg/ledger"
	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/MrCodeEU/faceattend/pkg/recognition"
	"github.com/MrCodeEU/faceattend/pkg/storage"
)

func newRecognizer(c *config.Config) (*recognition.DlibRecognizer, error) {
	rec := recognition.NewRecognizer()
	rec.SetTolerance(c.Recognition.Tolerance)
	rec.UseCNN(c.Recognition.CNN)
	rec.SetMaxImageSide(c.Recognition.MaxImageSide)

	if err := rec.LoadModels(c.Recognition.ModelPath); err != nil {
		return nil, fmt.Errorf("%w\nRun 'faceattend download-models' to fetch the dlib models", err)
	}
	return rec, nil
}

// loadGallery builds the gallery, reusing cached descriptors when enabled.
func loadGallery(c *config.Config, enc gallery.Encoder) (*gallery.Gallery, error) {
	opts := gallery.Options{}
	if c.Gallery.ShowProgress {
		opts.Progress = os.Stderr
	}

	var cache *storage.DescriptorCache
	if c.Gallery.CacheEnabled {
		var err error
		cache, err = storage.NewDescriptorCache(c.CachePath(), c.Gallery.CacheEncryption)
		if err != nil {
			logging.WithError(err).Warn("Descriptor cache disabled")
			cache = nil
		} else if err := cache.Load(); err != nil {
			logging.WithError(err).Warn("Ignoring unreadable descriptor cache")
			cache, _ = storage.NewDescriptorCache(c.CachePath(), c.Gallery.CacheEncryption)
		}
	}
	if cache != nil {
		opts.Cache = cache
	}

	g, err := gallery.Build(c.Gallery.Dir, enc, opts)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		if n := cache.Prune(); n > 0 {
			logging.Debugf("Pruned %d stale cached descriptor(s)", n)
		}
		if err := cache.Save(); err != nil {
			logging.WithError(err).Warn("Failed to save descriptor cache")
		}
	}

	if w := g.Warning(); w != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (gallery: %s)\n", w, c.Gallery.Dir)
	}
	return g, nil
}

func openLedger(c *config.Config) (*ledger.Ledger, error) {
	l, err := ledger.Open(c.Ledger.Backend, c.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open attendance ledger: %w", err)
	}
	return l, nil
}

func cameraOptions(c *config.Config) camera.Options {
	return camera.Options{
		Device:         c.Camera.Device,
		Width:          c.Camera.Width,
		Height:         c.Camera.Height,
		OpenAttempts:   c.Camera.OpenAttempts,
		OpenRetryDelay: time.Duration(c.Camera.OpenRetryDelay) * time.Millisecond,
		ReadRetryDelay: time.Duration(c.Camera.ReadRetryDelay) * time.Millisecond,
		Warmup:         time.Duration(c.Camera.WarmupMillis) * time.Millisecond,
		DetectionScale: c.Camera.DetectionScale,
	}
}
