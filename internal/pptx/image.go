package pptx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned for image bytes no registered decoder understands.
var ErrUnsupportedImage = errors.New("unsupported image format")

// PreparedImage is a decoded-enough image ready to be embedded.
type PreparedImage struct {
	Data   []byte
	Ext    string
	Width  int
	Height int
}

// Rect is a placement box in EMU.
type Rect struct {
	X  int64
	Y  int64
	CX int64
	CY int64
}

var formatExtensions = map[string]string{
	"png":  "png",
	"jpeg": "jpeg",
	"gif":  "gif",
	"bmp":  "bmp",
	"tiff": "tiff",
	"webp": "webp",
}

// DecodeImage reads the image header to learn its format and pixel size.
func DecodeImage(data []byte) (*PreparedImage, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", ErrUnsupportedImage)
	}
	ext, ok := formatExtensions[format]
	if !ok {
		return nil, fmt.Errorf("decode image %q: %w", format, ErrUnsupportedImage)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("decode image: empty %dx%d canvas", cfg.Width, cfg.Height)
	}
	return &PreparedImage{Data: data, Ext: ext, Width: cfg.Width, Height: cfg.Height}, nil
}

// FitImage scales a width x height image into box keeping its aspect ratio and centres it.
func FitImage(width, height int, box Rect) Rect {
	if width <= 0 || height <= 0 || box.CX <= 0 || box.CY <= 0 {
		return box
	}
	ratio := min(float64(box.CX)/float64(width), float64(box.CY)/float64(height))
	cx := int64(float64(width) * ratio)
	cy := int64(float64(height) * ratio)
	return Rect{
		X:  box.X + (box.CX-cx)/2,
		Y:  box.Y + (box.CY-cy)/2,
		CX: cx,
		CY: cy,
	}
}
