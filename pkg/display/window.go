package display

import (
	"image"
	"image/color"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/camera"
	"gocv.io/x/gocv"
)

const dashboardHeight = 100

var (
	white     = color.RGBA{R: 255, G: 255, B: 255}
	green     = color.RGBA{G: 255}
	red       = color.RGBA{R: 255}
	darkGray  = color.RGBA{R: 50, G: 50, B: 50}
	black     = color.RGBA{}
	pureWhite = gocv.NewScalar(255, 255, 255, 0)
)

// Window draws frames into a native OpenCV window.
type Window struct {
	title  string
	window *gocv.Window
}

// NewWindow opens a window titled title.
func NewWindow(title string) *Window {
	return &Window{
		title:  title,
		window: gocv.NewWindow(title),
	}
}

// Render draws the dashboard and face boxes on frame and shows it.
func (w *Window) Render(frame *camera.Frame, view View) (Command, error) {
	if frame == nil || frame.Image.Empty() {
		return CommandForKey(w.window.WaitKey(1)), nil
	}

	img := frame.Image
	w.drawDashboard(&img, view)
	for _, d := range view.Detections {
		drawDetection(&img, d)
	}

	w.window.IMShow(img)
	return CommandForKey(w.window.WaitKey(1)), nil
}

func (w *Window) drawDashboard(img *gocv.Mat, view View) {
	width := img.Cols()
	blend(img, image.Rect(0, 0, width, dashboardHeight), darkGray, 0.7)

	gocv.PutText(img, w.title, image.Pt(10, 30), gocv.FontHersheySimplex, 0.8, white, 2)
	gocv.PutText(img, view.DateLine(), image.Pt(10, 70), gocv.FontHersheySimplex, 0.6, white, 1)

	right := width - 400
	if right < 10 {
		right = 10
	}
	gocv.PutText(img, view.StatusLine(), image.Pt(right, 30), gocv.FontHersheySimplex, 0.6, white, 1)
	gocv.PutText(img, ControlsLine, image.Pt(right, 70), gocv.FontHersheySimplex, 0.6, white, 1)
}

func drawDetection(img *gocv.Mat, d Detection) {
	c := red
	if d.Known {
		c = green
	}

	gocv.Rectangle(img, d.Box, c, 2)
	label := image.Rect(d.Box.Min.X, d.Box.Max.Y-35, d.Box.Max.X, d.Box.Max.Y)
	blend(img, label, c, 0.7)
	gocv.PutText(img, d.Name, image.Pt(d.Box.Min.X+6, d.Box.Max.Y-6), gocv.FontHersheyDuplex, 0.6, white, 1)
}

// blend fills r with c at the given opacity.
func blend(img *gocv.Mat, r image.Rectangle, c color.RGBA, alpha float64) {
	overlay := img.Clone()
	defer overlay.Close()

	gocv.Rectangle(&overlay, r, c, -1)
	gocv.AddWeighted(overlay, alpha, *img, 1-alpha, 0, img)
}

// ShowPrompt shows img with lines of instructions over a dark band, as used
// by the photo capture flow. The drawing is done on a copy.
func (w *Window) ShowPrompt(img gocv.Mat, lines []string) Command {
	canvas := img.Clone()
	defer canvas.Close()

	blend(&canvas, image.Rect(0, 0, canvas.Cols(), 40*len(lines)+30), black, 0.5)
	for i, line := range lines {
		gocv.PutText(&canvas, line, image.Pt(10, 30+40*i), gocv.FontHersheySimplex, 0.7, green, 2)
	}

	w.window.IMShow(canvas)
	return CommandForKey(w.window.WaitKey(1))
}

// Flash briefly shows a white frame of the given size.
func (w *Window) Flash(width, height int, d time.Duration) {
	flash := gocv.NewMatWithSizeFromScalar(pureWhite, height, width, gocv.MatTypeCV8UC3)
	defer flash.Close()

	w.window.IMShow(flash)
	w.window.WaitKey(int(d / time.Millisecond))
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.window.Close()
}
