package recognition

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// ErrUnsupportedImage is returned for data that is neither JPEG nor PNG.
var ErrUnsupportedImage = errors.New("unsupported image format")

const jpegQuality = 95

// NormalizeImage returns JPEG bytes go-face can decode. JPEG input within
// maxSide is returned untouched. Anything else is decoded, scaled down so
// its longest side is at most maxSide (0 means no limit) and re-encoded.
func NormalizeImage(data []byte, maxSide int) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	oversized := maxSide > 0 && (cfg.Width > maxSide || cfg.Height > maxSide)
	if format == "jpeg" && !oversized {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if oversized {
		img = downscale(img, maxSide)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func downscale(img image.Image, maxSide int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSide
		newHeight = int(float64(height) * float64(maxSide) / float64(width))
	} else {
		newHeight = maxSide
		newWidth = int(float64(width) * float64(maxSide) / float64(height))
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}
