package imageproc

import (
	"bytes"
	"image"
	"io"

	"github.com/brightpath-solar/siteimg/pkg/errors"
	"github.com/disintegration/imaging"

	_ "golang.org/x/image/webp"
)

// ImageModifier transforms a decoded image.
type ImageModifier interface {
	Modify(img image.Image) image.Image
}

// CoverFit fills a Width x Height box: aspect ratio is preserved, the
// overflow is cropped around the center.
type CoverFit struct {
	Width  int
	Height int
}

// Modify implements ImageModifier.
func (c CoverFit) Modify(img image.Image) image.Image {
	if c.Width <= 0 || c.Height <= 0 {
		return img
	}
	return imaging.Fill(img, c.Width, c.Height, imaging.Center, imaging.Lanczos)
}

// WidthLimit scales an image down to Width keeping its aspect ratio.
// Images already at or below Width are returned untouched, so it never
// upscales.
type WidthLimit struct {
	Width int
}

// Modify implements ImageModifier.
func (l WidthLimit) Modify(img image.Image) image.Image {
	w := img.Bounds().Dx()
	if l.Width <= 0 || w == 0 || w <= l.Width {
		return img
	}
	return imaging.Resize(img, l.Width, 0, imaging.Lanczos)
}

// LoadImage decodes r (honouring EXIF orientation) and applies modifiers
// in order.
func LoadImage(r io.Reader, modifiers ...ImageModifier) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}
	return apply(img, modifiers), nil
}

// LoadBytes is LoadImage over an in-memory payload.
func LoadBytes(b []byte, modifiers ...ImageModifier) (image.Image, error) {
	return LoadImage(bytes.NewReader(b), modifiers...)
}

// Open decodes the file at path and applies modifiers.
func Open(path string, modifiers ...ImageModifier) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "open image %s", path)
	}
	return apply(img, modifiers), nil
}

// Bounds returns the pixel dimensions of an encoded image without decoding
// the pixel data.
func Bounds(b []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return 0, 0, errors.Wrap(err, "read image header")
	}
	return cfg.Width, cfg.Height, nil
}

func apply(img image.Image, modifiers []ImageModifier) image.Image {
	for _, modifier := range modifiers {
		img = modifier.Modify(img)
	}
	return img
}
