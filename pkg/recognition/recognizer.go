// Package recognition provides face detection and encoding.
// It uses dlib/go-face to find faces in an image and produce a
// 128-dimensional descriptor for each of them.
package recognition

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/Kagami/go-face"
	"github.com/MrCodeEU/faceattend/pkg/logging"
)

// DefaultTolerance is the distance below which two descriptors are the same person.
const DefaultTolerance = 0.6

// Face represents a detected face in an image.
type Face struct {
	BoundingBox Rectangle
	Descriptor  Descriptor
}

// Rectangle represents a bounding box.
type Rectangle struct {
	X, Y          int
	Width, Height int
}

// Scale returns the rectangle with every coordinate multiplied by factor.
func (r Rectangle) Scale(factor float64) Rectangle {
	return Rectangle{
		X:      int(math.Round(float64(r.X) * factor)),
		Y:      int(math.Round(float64(r.Y) * factor)),
		Width:  int(math.Round(float64(r.Width) * factor)),
		Height: int(math.Round(float64(r.Height) * factor)),
	}
}

// Rect converts to an image.Rectangle.
func (r Rectangle) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Descriptor is a 128-dimensional face descriptor from dlib.
type Descriptor = face.Descriptor

// ErrNoFaceDetected is returned when no face is found in the image.
var ErrNoFaceDetected = errors.New("no face detected")

// ErrModelNotLoaded is returned when models are not loaded.
var ErrModelNotLoaded = errors.New("recognition models not loaded")

// FaceEngine is the subset of *face.Recognizer used here.
type FaceEngine interface {
	Recognize(data []byte) ([]face.Face, error)
	RecognizeCNN(data []byte) ([]face.Face, error)
	Close()
}

// EngineFactory opens a FaceEngine from a model directory.
type EngineFactory func(modelPath string) (FaceEngine, error)

func defaultFactory(modelPath string) (FaceEngine, error) {
	return face.NewRecognizer(modelPath)
}

// DlibRecognizer implements the descriptor source using dlib via go-face.
type DlibRecognizer struct {
	rec          FaceEngine
	factory      EngineFactory
	modelPath    string
	loaded       bool
	mu           sync.RWMutex
	tolerance    float64
	useCNN       bool
	maxImageSide int
}

// NewRecognizer creates a new DlibRecognizer instance.
func NewRecognizer() *DlibRecognizer {
	return &DlibRecognizer{
		factory:   defaultFactory,
		tolerance: DefaultTolerance,
	}
}

// SetTolerance sets the tolerance for face matching.
// Lower values are more strict (fewer false positives).
func (r *DlibRecognizer) SetTolerance(tolerance float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tolerance = tolerance
}

// Tolerance returns the configured match tolerance.
func (r *DlibRecognizer) Tolerance() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tolerance
}

// UseCNN switches detection to the mmod CNN detector.
func (r *DlibRecognizer) UseCNN(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.useCNN = enabled
}

// SetMaxImageSide downsizes images larger than maxSide before detection.
// Zero disables resizing.
func (r *DlibRecognizer) SetMaxImageSide(maxSide int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxImageSide = maxSide
}

// LoadModels loads the dlib face recognition models from the specified path.
// The path should contain:
// - shape_predictor_5_face_landmarks.dat
// - dlib_face_recognition_resnet_model_v1.dat
// - mmod_human_face_detector.dat (only needed with UseCNN)
func (r *DlibRecognizer) LoadModels(modelPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return nil
	}

	logging.Infof("Loading face recognition models from: %s", modelPath)

	rec, err := r.factory(modelPath)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	r.rec = rec
	r.modelPath = modelPath
	r.loaded = true

	logging.Info("Face recognition models loaded successfully")
	return nil
}

// IsLoaded returns true if models are loaded.
func (r *DlibRecognizer) IsLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Close releases the recognizer resources.
func (r *DlibRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rec != nil {
		r.rec.Close()
		r.rec = nil
	}
	r.loaded = false
	return nil
}

// DetectAndEncode finds every face in the image and returns them ordered
// the way go-face reports them (left to right). An image without faces
// yields an empty slice and no error.
//
// PNG input and oversized JPEGs are normalised first since go-face only
// decodes JPEG.
func (r *DlibRecognizer) DetectAndEncode(imageData []byte) ([]Face, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.loaded {
		return nil, ErrModelNotLoaded
	}

	jpegData, err := NormalizeImage(imageData, r.maxImageSide)
	if err != nil {
		return nil, err
	}

	var faces []face.Face
	if r.useCNN {
		faces, err = r.rec.RecognizeCNN(jpegData)
	} else {
		faces, err = r.rec.Recognize(jpegData)
	}
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	result := make([]Face, len(faces))
	for i, f := range faces {
		rect := f.Rectangle
		result[i] = Face{
			BoundingBox: Rectangle{
				X:      rect.Min.X,
				Y:      rect.Min.Y,
				Width:  rect.Dx(),
				Height: rect.Dy(),
			},
			Descriptor: f.Descriptor,
		}
	}

	logging.Debugf("Detected %d face(s) in image", len(result))
	return result, nil
}

// DetectFirstFace returns the first face go-face reports.
// It returns ErrNoFaceDetected for an image without faces.
func (r *DlibRecognizer) DetectFirstFace(imageData []byte) (*Face, error) {
	faces, err := r.DetectAndEncode(imageData)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, ErrNoFaceDetected
	}
	return &faces[0], nil
}

// IsMatch reports whether two descriptors are within the tolerance.
func (r *DlibRecognizer) IsMatch(a, b Descriptor) bool {
	r.mu.RLock()
	tolerance := r.tolerance
	r.mu.RUnlock()

	return EuclideanDistance(a, b) <= tolerance
}

// EuclideanDistance calculates the Euclidean distance between two descriptors.
func EuclideanDistance(d1, d2 Descriptor) float64 {
	var sum float64
	for i := range d1 {
		diff := float64(d1[i] - d2[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
