// Package camera provides webcam access and frame capture.
// Frames carry two views of the same image: a full-size Mat for display and
// a downscaled JPEG for face detection, which is much cheaper on small input.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/logging"
	"gocv.io/x/gocv"
)

// Frame represents a single camera frame.
type Frame struct {
	// Data is the detection-sized frame encoded as JPEG.
	Data []byte
	// Scale maps coordinates in Data back to the full-size image.
	Scale     float64
	Width     int
	Height    int
	Timestamp time.Time
	// Image is the full-size frame. It is owned by the Frame.
	Image gocv.Mat
}

// Close releases the frame's native memory.
func (f *Frame) Close() error {
	if f.Image.Ptr() == nil {
		return nil
	}
	return f.Image.Close()
}

// Device is the part of gocv.VideoCapture used here.
type Device interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Opener opens a capture device at the requested resolution.
type Opener func(device, width, height int) (Device, error)

// Options configures a Webcam.
type Options struct {
	Device         int
	Width          int
	Height         int
	OpenAttempts   int
	OpenRetryDelay time.Duration
	ReadRetryDelay time.Duration
	Warmup         time.Duration
	DetectionScale float64
}

// ErrCameraNotFound is returned when the camera device is not found.
var ErrCameraNotFound = errors.New("camera device not found")

// ErrCameraNotOpen is returned when trying to capture from a closed camera.
var ErrCameraNotOpen = errors.New("camera not open")

// ErrNoFrame is returned when no frame could be captured.
var ErrNoFrame = errors.New("failed to capture frame")

// Webcam captures frames from a local video device.
type Webcam struct {
	opts   Options
	opener Opener
	sleep  func(ctx context.Context, d time.Duration) error

	mu  sync.Mutex
	dev Device
}

// New creates a webcam. Nothing is opened until Open.
func New(opts Options) *Webcam {
	if opts.OpenAttempts < 1 {
		opts.OpenAttempts = 1
	}
	if opts.DetectionScale <= 0 || opts.DetectionScale > 1 {
		opts.DetectionScale = 1
	}
	return &Webcam{
		opts:   opts,
		opener: openVideoCapture,
		sleep:  sleepContext,
	}
}

func openVideoCapture(device, width, height int) (Device, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("device %d did not open", device)
	}
	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return vc, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Open opens the device, retrying up to OpenAttempts times, and waits for
// the sensor to warm up.
func (w *Webcam) Open(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dev != nil {
		return nil
	}

	log := logging.Component("camera")

	var lastErr error
	for attempt := 1; attempt <= w.opts.OpenAttempts; attempt++ {
		dev, err := w.opener(w.opts.Device, w.opts.Width, w.opts.Height)
		if err == nil {
			w.dev = dev
			log.Infof("Camera %d opened", w.opts.Device)
			return w.sleep(ctx, w.opts.Warmup)
		}

		lastErr = err
		log.WithError(err).Warnf("Failed to open camera %d (attempt %d/%d)",
			w.opts.Device, attempt, w.opts.OpenAttempts)

		if attempt < w.opts.OpenAttempts {
			if err := w.sleep(ctx, w.opts.OpenRetryDelay); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%w: device %d: %v", ErrCameraNotFound, w.opts.Device, lastErr)
}

// Capture reads one frame. On a failed read it pauses for ReadRetryDelay
// and returns ErrNoFrame so the caller can simply try again.
func (w *Webcam) Capture(ctx context.Context) (*Frame, error) {
	w.mu.Lock()
	dev := w.dev
	w.mu.Unlock()

	if dev == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := dev.Read(&mat); !ok || mat.Empty() {
		_ = mat.Close()
		if err := w.sleep(ctx, w.opts.ReadRetryDelay); err != nil {
			return nil, err
		}
		return nil, ErrNoFrame
	}

	data, err := encodeForDetection(mat, w.opts.DetectionScale)
	if err != nil {
		_ = mat.Close()
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	return &Frame{
		Data:      data,
		Scale:     1 / w.opts.DetectionScale,
		Width:     mat.Cols(),
		Height:    mat.Rows(),
		Timestamp: time.Now(),
		Image:     mat,
	}, nil
}

// encodeForDetection downscales img by scale and encodes it as JPEG.
func encodeForDetection(img gocv.Mat, scale float64) ([]byte, error) {
	src := img
	if scale != 1 {
		small := gocv.NewMat()
		defer small.Close()
		gocv.Resize(img, &small, image.Point{}, scale, scale, gocv.InterpolationLinear)
		src = small
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, src)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

// EncodeJPEG encodes a full-size frame, used when saving enrollment photos.
func EncodeJPEG(img gocv.Mat) ([]byte, error) {
	return encodeForDetection(img, 1)
}

// Close releases the device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dev == nil {
		return nil
	}
	err := w.dev.Close()
	w.dev = nil
	return err
}
