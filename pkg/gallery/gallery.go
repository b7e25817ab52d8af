// Package gallery builds the in-memory index of enrolled faces.
//
// The gallery is built once from a directory of photos and is read-only
// afterwards, so it can be shared by any number of matchers without locking.
// New enrollments are only picked up by building a new gallery.
package gallery

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/MrCodeEU/faceattend/pkg/recognition"
	"github.com/MrCodeEU/faceattend/pkg/storage"
	"github.com/schollz/progressbar/v3"
)

// ErrEmptyGallery is reported when a build produced no entries. It is a
// warning: the system still runs and labels every face unknown.
var ErrEmptyGallery = errors.New("no faces enrolled")

// EnrollmentImageError describes an enrollment photo that was skipped.
type EnrollmentImageError struct {
	Path string
	Err  error
}

func (e *EnrollmentImageError) Error() string {
	return fmt.Sprintf("enrollment image %s: %v", e.Path, e.Err)
}

func (e *EnrollmentImageError) Unwrap() error {
	return e.Err
}

// Encoder turns an image into detected faces.
type Encoder interface {
	DetectAndEncode(imageData []byte) ([]recognition.Face, error)
}

// Cache stores descriptors by image content.
type Cache interface {
	Get(key string) (recognition.Descriptor, bool)
	Put(key string, source string, d recognition.Descriptor)
}

// Entry is one enrolled photo.
type Entry struct {
	Name       string
	Descriptor recognition.Descriptor
	Source     string
}

// Gallery is an immutable, ordered list of entries.
type Gallery struct {
	entries    []Entry
	identities []string
	skipped    []*EnrollmentImageError
}

// Options tune a gallery build.
type Options struct {
	// Cache, when set, is consulted before running the encoder.
	Cache Cache
	// Progress, when set, receives a progress bar while encoding.
	Progress io.Writer
}

// New returns a gallery holding entries in the given order.
func New(entries []Entry) *Gallery {
	g := &Gallery{entries: append([]Entry(nil), entries...)}
	seen := make(map[string]bool)
	for _, e := range g.entries {
		if !seen[e.Name] {
			seen[e.Name] = true
			g.identities = append(g.identities, e.Name)
		}
	}
	return g
}

// Build scans root and encodes every enrollment photo. Per-image failures
// are logged and skipped; only an unreadable root is an error.
func Build(root string, enc Encoder, opts Options) (*Gallery, error) {
	images, err := Scan(root)
	if err != nil {
		return nil, err
	}

	log := logging.Component("gallery")
	log.Infof("Loading %d enrollment image(s) from %s", len(images), root)

	var bar *progressbar.ProgressBar
	if opts.Progress != nil && len(images) > 0 {
		bar = progressbar.NewOptions(len(images),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("Encoding faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var entries []Entry
	var skipped []*EnrollmentImageError

	for _, img := range images {
		d, err := encodeImage(img.Path, enc, opts.Cache)
		if bar != nil {
			_ = bar.Add(1)
		}
		if err != nil {
			imgErr := &EnrollmentImageError{Path: img.Path, Err: err}
			skipped = append(skipped, imgErr)
			log.Warn(imgErr.Error())
			continue
		}
		entries = append(entries, Entry{Name: img.Name, Descriptor: d, Source: img.Path})
		log.Debugf("Enrolled %s from %s", img.Name, img.Path)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	g := New(entries)
	g.skipped = skipped

	log.WithFields(logging.Fields{
		"entries":    g.Len(),
		"identities": len(g.identities),
		"skipped":    len(skipped),
	}).Info("Gallery loaded")

	if g.Len() == 0 {
		log.Warn(g.Warning().Error())
	}

	return g, nil
}

func encodeImage(path string, enc Encoder, cache Cache) (recognition.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return recognition.Descriptor{}, err
	}

	var key string
	if cache != nil {
		key = storage.Key(data)
		if d, ok := cache.Get(key); ok {
			return d, nil
		}
	}

	faces, err := enc.DetectAndEncode(data)
	if err != nil {
		return recognition.Descriptor{}, err
	}
	if len(faces) == 0 {
		return recognition.Descriptor{}, recognition.ErrNoFaceDetected
	}
	if len(faces) > 1 {
		logging.Debugf("%d faces in %s, enrolling the first", len(faces), path)
	}

	d := faces[0].Descriptor
	if cache != nil {
		cache.Put(key, path, d)
	}
	return d, nil
}

// Entries returns a copy of the entries in load order.
func (g *Gallery) Entries() []Entry {
	return append([]Entry(nil), g.entries...)
}

// Len returns the number of entries.
func (g *Gallery) Len() int {
	return len(g.entries)
}

// Identities returns the distinct names in first-seen order.
func (g *Gallery) Identities() []string {
	return append([]string(nil), g.identities...)
}

// Skipped returns the photos that contributed no entry.
func (g *Gallery) Skipped() []*EnrollmentImageError {
	return append([]*EnrollmentImageError(nil), g.skipped...)
}

// Warning returns ErrEmptyGallery when nothing was enrolled.
func (g *Gallery) Warning() error {
	if len(g.entries) == 0 {
		return fmt.Errorf("%w: every face will be reported as unknown", ErrEmptyGallery)
	}
	return nil
}
