package attendance

import (
	"context"

	"github.com/MrCodeEU/faceattend/pkg/camera"
	"github.com/MrCodeEU/faceattend/pkg/display"
	"github.com/MrCodeEU/faceattend/pkg/ledger"
	"github.com/MrCodeEU/faceattend/pkg/recognition"
)

// MockCamera implements Camera interface for testing
type MockCamera struct {
	CaptureFunc func(ctx context.Context) (*camera.Frame, error)
}

func (m *MockCamera) Capture(ctx context.Context) (*camera.Frame, error) {
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx)
	}
	return &camera.Frame{Scale: 1}, nil
}

// MockRecognizer implements Recognizer interface for testing
type MockRecognizer struct {
	DetectAndEncodeFunc func(data []byte) ([]recognition.Face, error)
}

func (m *MockRecognizer) DetectAndEncode(data []byte) ([]recognition.Face, error) {
	if m.DetectAndEncodeFunc != nil {
		return m.DetectAndEncodeFunc(data)
	}
	return nil, nil
}

// MockMatcher implements Matcher interface for testing
type MockMatcher struct {
	MatchFunc func(probe recognition.Descriptor) (string, bool)
}

func (m *MockMatcher) Match(probe recognition.Descriptor) (string, bool) {
	if m.MatchFunc != nil {
		return m.MatchFunc(probe)
	}
	return "Unknown", false
}

// MockLedger implements Ledger interface for testing
type MockLedger struct {
	MarkFunc func(name string) (ledger.Record, bool, error)
	Calls    []string
}

func (m *MockLedger) Mark(name string) (ledger.Record, bool, error) {
	m.Calls = append(m.Calls, name)
	if m.MarkFunc != nil {
		return m.MarkFunc(name)
	}
	return ledger.Record{Name: name}, true, nil
}

// MockRenderer implements display.Renderer for testing
type MockRenderer struct {
	RenderFunc func(frame *camera.Frame, view display.View) (display.Command, error)
	Views      []display.View
}

func (m *MockRenderer) Render(frame *camera.Frame, view display.View) (display.Command, error) {
	m.Views = append(m.Views, view)
	if m.RenderFunc != nil {
		return m.RenderFunc(frame, view)
	}
	return display.None, nil
}

func (m *MockRenderer) Close() error {
	return nil
}
