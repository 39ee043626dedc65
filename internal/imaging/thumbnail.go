package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
)

// ErrImageTooLarge is returned for images whose pixel count exceeds the decode limit.
var ErrImageTooLarge = errors.New("image too large")

// Thumbnail decodes a png, jpeg or gif image and returns a PNG that is at most maxWidth
// pixels wide. The aspect ratio is preserved and images are never upscaled.
// Images with more than maxPixels pixels are rejected from their header before decoding;
// a non-positive maxPixels disables the check.
func Thumbnail(imageData []byte, maxWidth, maxPixels int) ([]byte, error) {
	if maxWidth <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", maxWidth)
	}

	header, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if maxPixels > 0 && int64(header.Width)*int64(header.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, header.Width, header.Height, maxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	originalWidth := bounds.Dx()
	originalHeight := bounds.Dy()
	if originalWidth == 0 || originalHeight == 0 {
		return nil, fmt.Errorf("image has no pixels")
	}

	targetWidth := originalWidth
	targetHeight := originalHeight
	if originalWidth > maxWidth {
		targetWidth = maxWidth
		targetHeight = max(1, originalHeight*maxWidth/originalWidth)
	}

	slog.Debug("Thumbnail: scaling",
		"format", format,
		"original_width", originalWidth,
		"original_height", originalHeight,
		"target_width", targetWidth,
		"target_height", targetHeight)

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
