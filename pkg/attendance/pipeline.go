// Package attendance drives the per-frame loop: capture, detect, match,
// mark attendance, update the session and render.
//
// A Pipeline owns every piece of run state explicitly, so several pipelines
// can share one gallery and one ledger.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/camera"
	"github.com/MrCodeEU/faceattend/pkg/display"
	"github.com/MrCodeEU/faceattend/pkg/ledger"
	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/MrCodeEU/faceattend/pkg/recognition"
	"github.com/MrCodeEU/faceattend/pkg/session"
	"github.com/sirupsen/logrus"
)

// Camera defines the interface for camera operations.
type Camera interface {
	Capture(ctx context.Context) (*camera.Frame, error)
}

// Recognizer defines the interface for face detection and encoding.
type Recognizer interface {
	DetectAndEncode(imageData []byte) ([]recognition.Face, error)
}

// Matcher resolves a descriptor to an identity.
type Matcher interface {
	Match(probe recognition.Descriptor) (string, bool)
}

// Ledger records attendance.
type Ledger interface {
	Mark(name string) (ledger.Record, bool, error)
}

// Deps are the collaborators of a Pipeline. Renderer and Clock are optional.
type Deps struct {
	Camera     Camera
	Recognizer Recognizer
	Matcher    Matcher
	Ledger     Ledger
	Session    *session.Tracker
	Renderer   display.Renderer
	// Registered is the number of enrolled identities shown on the dashboard.
	Registered int
	Clock      func() time.Time
}

// FrameResult summarises one processed frame.
type FrameResult struct {
	Detections []display.Detection
	// Marked lists identities written to the ledger by this frame.
	Marked []string
	// Lost lists attendance events the ledger failed to store.
	Lost []error
	// Err is set when detection failed; the frame contributed nothing.
	Err error
}

// Pipeline processes frames one at a time.
type Pipeline struct {
	deps Deps
	log  *logrus.Entry
}

// ErrMissingDependency is returned by NewPipeline for incomplete Deps.
var ErrMissingDependency = errors.New("missing pipeline dependency")

// NewPipeline validates deps and creates a pipeline.
func NewPipeline(deps Deps) (*Pipeline, error) {
	switch {
	case deps.Camera == nil:
		return nil, fmt.Errorf("%w: camera", ErrMissingDependency)
	case deps.Recognizer == nil:
		return nil, fmt.Errorf("%w: recognizer", ErrMissingDependency)
	case deps.Matcher == nil:
		return nil, fmt.Errorf("%w: matcher", ErrMissingDependency)
	case deps.Ledger == nil:
		return nil, fmt.Errorf("%w: ledger", ErrMissingDependency)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Session == nil {
		deps.Session = session.NewTracker(deps.Clock())
	}
	if deps.Renderer == nil {
		deps.Renderer = display.Headless{}
	}

	return &Pipeline{
		deps: deps,
		log:  logging.Component("pipeline").WithField("session", deps.Session.ID()),
	}, nil
}

// Session returns the pipeline's session tracker.
func (p *Pipeline) Session() *session.Tracker {
	return p.deps.Session
}

// ProcessFrame detects faces in frame, matches each one in detection order
// and marks attendance for known identities. It never panics; failures are
// reported in the result.
func (p *Pipeline) ProcessFrame(frame *camera.Frame) (result FrameResult) {
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("panic while processing frame: %v", r)
		}
	}()

	faces, err := p.deps.Recognizer.DetectAndEncode(frame.Data)
	if err != nil {
		result.Err = fmt.Errorf("detection failed: %w", err)
		return result
	}

	if p.deps.Session.Rollover(p.deps.Clock().Format(ledger.DateLayout)) {
		p.log.Info("New day, present count reset")
	}

	scale := frame.Scale
	if scale <= 0 {
		scale = 1
	}

	for _, f := range faces {
		name, known := p.deps.Matcher.Match(f.Descriptor)
		box := f.BoundingBox.Scale(scale)
		result.Detections = append(result.Detections, display.Detection{
			Name:  name,
			Known: known,
			Box:   box.Rect(),
		})

		if !known {
			continue
		}
		if p.deps.Session.IsPresent(name) {
			continue
		}

		_, marked, err := p.deps.Ledger.Mark(name)
		if err != nil {
			p.log.WithError(err).Errorf("Attendance for %s was lost", name)
			result.Lost = append(result.Lost, err)
			continue
		}

		p.deps.Session.MarkPresent(name)
		if marked {
			result.Marked = append(result.Marked, name)
			p.log.Infof("Marked %s present", name)
		} else {
			p.log.Debugf("%s already recorded today", name)
		}
	}

	return result
}

// Run captures and processes frames until ctx is cancelled or the operator
// quits. Missing frames and per-frame failures do not stop the loop.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Info("Attendance loop started")
	defer func() {
		p.log.WithField("frames", p.deps.Session.Frames()).Info("Attendance loop stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := p.deps.Camera.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, camera.ErrNoFrame) {
				p.log.Debug("No frame from camera, retrying")
				continue
			}
			return fmt.Errorf("capture failed: %w", err)
		}

		cmd, err := p.step(frame)
		_ = frame.Close()
		if err != nil {
			p.log.WithError(err).Warn("Rendering failed")
		}

		switch cmd {
		case display.Quit:
			p.log.Info("Quit requested")
			return nil
		case display.Reset:
			p.deps.Session.Reset()
			p.log.Info("Present count reset")
		}
	}
}

func (p *Pipeline) step(frame *camera.Frame) (display.Command, error) {
	res := p.ProcessFrame(frame)
	if res.Err != nil {
		p.log.WithError(res.Err).Warn("Frame skipped")
	}

	now := p.deps.Clock()
	p.deps.Session.Tick(now)

	return p.deps.Renderer.Render(frame, display.View{
		Detections: res.Detections,
		FPS:        p.deps.Session.FPS(),
		Registered: p.deps.Registered,
		Present:    p.deps.Session.Present(),
		Now:        now,
	})
}
