package asset

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedChannels is returned for any channel count other than 4.
var ErrUnsupportedChannels = errors.New("unsupported number of channels")

// PixelFormat is the byte order of decoded pixels.
type PixelFormat int

const (
	// PixelFormatRGBA8 stores R, G, B, A bytes per pixel, not
	// premultiplied.
	PixelFormatRGBA8 PixelFormat = iota + 1
)

// PixelBuffer is a decoded image in a GPU-ready layout.
type PixelBuffer struct {
	Width  int
	Height int
	// Pitch is the length of one row in bytes.
	Pitch  int
	Pixels []byte
	Format PixelFormat
}

// Size returns the byte size of the pixel data.
func (p *PixelBuffer) Size() int {
	return p.Pitch * p.Height
}

// LoadImagePixels decodes the image at path into a 4-channel buffer.
func LoadImagePixels(path string, channels int) (*PixelBuffer, error) {
	if channels != 4 {
		return nil, fmt.Errorf("load image %s: %w: %d", path, ErrUnsupportedChannels, channels)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't load image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("couldn't load image %s: %w", path, err)
	}
	return PixelsFromImage(img), nil
}

// PixelsFromImage converts img to non-premultiplied RGBA8, copying only
// when the source layout differs.
func PixelsFromImage(img image.Image) *PixelBuffer {
	b := img.Bounds()
	rgba, ok := img.(*image.NRGBA)
	if !ok || b.Min != (image.Point{}) || rgba.Stride != 4*b.Dx() {
		rgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return &PixelBuffer{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pitch:  rgba.Stride,
		Pixels: rgba.Pix[:rgba.Stride*b.Dy()],
		Format: PixelFormatRGBA8,
	}
}
