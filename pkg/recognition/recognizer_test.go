package recognition

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/Kagami/go-face"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(w, h), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func loadedRecognizer(t *testing.T, engine *MockFaceEngine) *DlibRecognizer {
	t.Helper()
	r := NewRecognizer()
	r.factory = func(path string) (FaceEngine, error) {
		return engine, nil
	}
	if err := r.LoadModels("dummy"); err != nil {
		t.Fatalf("LoadModels failed: %v", err)
	}
	return r
}

func TestNewRecognizer(t *testing.T) {
	rec := NewRecognizer()
	if rec == nil {
		t.Fatal("NewRecognizer returned nil")
	}
	if rec.Tolerance() != DefaultTolerance {
		t.Errorf("expected default tolerance %f, got %f", DefaultTolerance, rec.Tolerance())
	}
	if rec.IsLoaded() {
		t.Error("expected IsLoaded to be false initially")
	}
}

func TestSetTolerance(t *testing.T) {
	rec := NewRecognizer()
	rec.SetTolerance(0.4)
	if rec.Tolerance() != 0.4 {
		t.Errorf("expected tolerance 0.4, got %f", rec.Tolerance())
	}
}

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name     string
		d1       Descriptor
		d2       Descriptor
		expected float64
	}{
		{
			name:     "identical",
			d1:       Descriptor{1, 2, 3},
			d2:       Descriptor{1, 2, 3},
			expected: 0.0,
		},
		{
			name:     "different",
			d1:       Descriptor{1, 2, 3},
			d2:       Descriptor{4, 6, 8},
			expected: 7.0710678, // sqrt(9+16+25)
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist := EuclideanDistance(tt.d1, tt.d2)
			if dist < tt.expected-0.0001 || dist > tt.expected+0.0001 {
				t.Errorf("expected %f, got %f", tt.expected, dist)
			}
		})
	}
}

func TestIsMatch(t *testing.T) {
	rec := NewRecognizer()
	rec.SetTolerance(0.5)

	d1 := Descriptor{1, 2, 3}
	d2 := Descriptor{1.1, 2.1, 3.1}
	d3 := Descriptor{10, 20, 30}

	if !rec.IsMatch(d1, d2) {
		t.Error("expected match for close descriptors")
	}
	if rec.IsMatch(d1, d3) {
		t.Error("expected no match for far descriptors")
	}
}

func TestIsMatch_ToleranceIsInclusive(t *testing.T) {
	rec := NewRecognizer()
	rec.SetTolerance(1.0)

	if !rec.IsMatch(Descriptor{0}, Descriptor{1}) {
		t.Error("distance equal to tolerance should match")
	}
	if rec.IsMatch(Descriptor{0}, Descriptor{1.5}) {
		t.Error("distance above tolerance should not match")
	}
}

func TestLoadModels(t *testing.T) {
	r := NewRecognizer()
	calls := 0
	r.factory = func(path string) (FaceEngine, error) {
		calls++
		return &MockFaceEngine{}, nil
	}

	if err := r.LoadModels("/tmp/models"); err != nil {
		t.Errorf("LoadModels failed: %v", err)
	}
	if !r.IsLoaded() {
		t.Error("Expected loaded to be true")
	}

	if err := r.LoadModels("/tmp/models"); err != nil {
		t.Errorf("LoadModels failed on second call: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected factory to run once, ran %d times", calls)
	}
}

func TestLoadModels_Failure(t *testing.T) {
	r := NewRecognizer()
	r.factory = func(path string) (FaceEngine, error) {
		return nil, errors.New("load failed")
	}

	if err := r.LoadModels("/tmp/models"); err == nil {
		t.Error("Expected LoadModels to fail")
	}
	if r.IsLoaded() {
		t.Error("Expected loaded to be false")
	}
}

func TestDetectAndEncode(t *testing.T) {
	r := loadedRecognizer(t, &MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			return []face.Face{
				{Rectangle: image.Rect(0, 0, 100, 100), Descriptor: face.Descriptor{1, 2, 3}},
				{Rectangle: image.Rect(120, 10, 180, 70), Descriptor: face.Descriptor{4, 5, 6}},
			}, nil
		},
	})

	faces, err := r.DetectAndEncode(jpegBytes(t, 8, 8))
	if err != nil {
		t.Fatalf("DetectAndEncode failed: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("Expected 2 faces, got %d", len(faces))
	}
	if faces[0].BoundingBox.Width != 100 {
		t.Errorf("Expected width 100, got %d", faces[0].BoundingBox.Width)
	}
	if faces[1].BoundingBox != (Rectangle{X: 120, Y: 10, Width: 60, Height: 60}) {
		t.Errorf("unexpected second box: %+v", faces[1].BoundingBox)
	}
	if faces[1].Descriptor[0] != 4 {
		t.Error("descriptors must keep detection order")
	}
}

func TestDetectAndEncode_NoFaces(t *testing.T) {
	r := loadedRecognizer(t, &MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			return []face.Face{}, nil
		},
	})

	faces, err := r.DetectAndEncode(jpegBytes(t, 8, 8))
	if err != nil {
		t.Fatalf("empty frames are not an error: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("expected no faces, got %d", len(faces))
	}
}

func TestDetectAndEncode_NotLoaded(t *testing.T) {
	r := NewRecognizer()
	_, err := r.DetectAndEncode(jpegBytes(t, 8, 8))
	if !errors.Is(err, ErrModelNotLoaded) {
		t.Errorf("Expected ErrModelNotLoaded, got %v", err)
	}
}

func TestDetectAndEncode_EngineError(t *testing.T) {
	r := loadedRecognizer(t, &MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			return nil, errors.New("engine error")
		},
	})

	if _, err := r.DetectAndEncode(jpegBytes(t, 8, 8)); err == nil {
		t.Error("Expected error")
	}
}

func TestDetectAndEncode_UnreadableImage(t *testing.T) {
	called := false
	r := loadedRecognizer(t, &MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			called = true
			return nil, nil
		},
	})

	_, err := r.DetectAndEncode([]byte("not an image"))
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("expected ErrUnsupportedImage, got %v", err)
	}
	if called {
		t.Error("engine should not see undecodable data")
	}
}

func TestDetectAndEncode_CNN(t *testing.T) {
	var usedCNN bool
	r := loadedRecognizer(t, &MockFaceEngine{
		RecognizeCNNFunc: func(data []byte) ([]face.Face, error) {
			usedCNN = true
			return []face.Face{{Rectangle: image.Rect(0, 0, 10, 10)}}, nil
		},
	})
	r.UseCNN(true)

	if _, err := r.DetectAndEncode(jpegBytes(t, 8, 8)); err != nil {
		t.Fatalf("DetectAndEncode failed: %v", err)
	}
	if !usedCNN {
		t.Error("expected CNN detector to be used")
	}
}

func TestDetectAndEncode_PNGIsConverted(t *testing.T) {
	var format string
	r := loadedRecognizer(t, &MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			_, format, _ = image.DecodeConfig(bytes.NewReader(data))
			return nil, nil
		},
	})

	if _, err := r.DetectAndEncode(pngBytes(t, 8, 8)); err != nil {
		t.Fatalf("DetectAndEncode failed: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("engine should receive jpeg, got %q", format)
	}
}

func TestDetectFirstFace(t *testing.T) {
	r := loadedRecognizer(t, &MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			return []face.Face{
				{Rectangle: image.Rect(0, 0, 100, 100), Descriptor: face.Descriptor{7}},
				{Rectangle: image.Rect(100, 100, 200, 200), Descriptor: face.Descriptor{8}},
			}, nil
		},
	})

	f, err := r.DetectFirstFace(jpegBytes(t, 8, 8))
	if err != nil {
		t.Fatalf("DetectFirstFace failed: %v", err)
	}
	if f.Descriptor[0] != 7 {
		t.Errorf("expected the first face, got descriptor %v", f.Descriptor[0])
	}
}

func TestDetectFirstFace_None(t *testing.T) {
	r := loadedRecognizer(t, &MockFaceEngine{})

	if _, err := r.DetectFirstFace(jpegBytes(t, 8, 8)); !errors.Is(err, ErrNoFaceDetected) {
		t.Errorf("Expected ErrNoFaceDetected, got %v", err)
	}
}

func TestClose(t *testing.T) {
	closed := false
	r := loadedRecognizer(t, &MockFaceEngine{
		CloseFunc: func() { closed = true },
	})

	if err := r.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if !closed {
		t.Error("Expected engine to be closed")
	}
	if r.IsLoaded() {
		t.Error("Expected loaded to be false")
	}
}

func TestRectangleScale(t *testing.T) {
	r := Rectangle{X: 10, Y: 20, Width: 30, Height: 40}
	got := r.Scale(4)
	want := Rectangle{X: 40, Y: 80, Width: 120, Height: 160}
	if got != want {
		t.Errorf("Scale(4) = %+v, want %+v", got, want)
	}
}

func TestRectangleRect(t *testing.T) {
	r := Rectangle{X: 10, Y: 20, Width: 30, Height: 40}
	if got, want := r.Rect(), image.Rect(10, 20, 40, 60); got != want {
		t.Errorf("Rect() = %v, want %v", got, want)
	}
}
