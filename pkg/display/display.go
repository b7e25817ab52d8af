// Package display renders the live view and turns key presses into
// operator commands. It holds no state the pipeline depends on.
package display

import (
	"fmt"
	"image"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/camera"
)

// Command is an operator instruction read from the keyboard.
type Command int

const (
	// None means no key was pressed.
	None Command = iota
	// Quit stops the capture loop.
	Quit
	// Reset clears the on-screen present count.
	Reset
)

func (c Command) String() string {
	switch c {
	case Quit:
		return "quit"
	case Reset:
		return "reset"
	default:
		return "none"
	}
}

// CommandForKey maps a key code as returned by gocv.Window.WaitKey.
func CommandForKey(key int) Command {
	if key < 0 {
		return None
	}
	switch key & 0xFF {
	case 'q', 'Q':
		return Quit
	case 'r', 'R':
		return Reset
	default:
		return None
	}
}

// Detection is one labelled face in full-frame coordinates.
type Detection struct {
	Name  string
	Known bool
	Box   image.Rectangle
}

// View is everything drawn on top of a frame.
type View struct {
	Detections []Detection
	FPS        float64
	Registered int
	Present    int
	Now        time.Time
}

// DateLine is the dashboard's date and time row.
func (v View) DateLine() string {
	return fmt.Sprintf("Date: %s | Time: %s", v.Now.Format("2006-01-02"), v.Now.Format("15:04:05"))
}

// StatusLine is the dashboard's counters row.
func (v View) StatusLine() string {
	return fmt.Sprintf("FPS: %.1f | Registered: %d | Present Today: %d", v.FPS, v.Registered, v.Present)
}

// ControlsLine lists the keyboard controls.
const ControlsLine = "Controls: Q - Quit | R - Reset Present Count"

// Renderer shows a frame and reports the operator's command.
type Renderer interface {
	Render(frame *camera.Frame, view View) (Command, error)
	Close() error
}

// Headless is a Renderer for runs without a display.
type Headless struct{}

// Render does nothing and never returns a command.
func (Headless) Render(*camera.Frame, View) (Command, error) {
	return None, nil
}

// Close does nothing.
func (Headless) Close() error {
	return nil
}
