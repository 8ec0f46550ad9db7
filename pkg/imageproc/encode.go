package imageproc

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/brightpath-solar/siteimg/pkg/errors"
	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/pixiv/go-libjpeg/jpeg"
)

// DefaultWebPMethod keeps libwebp's own effort level.
const DefaultWebPMethod = -1

// EncodeOptions tunes the encoders. Quality applies to JPEG and WebP;
// PNG output is always lossless at best compression. JPEG output is
// progressive with optimized Huffman tables.
type EncodeOptions struct {
	Quality    int
	WebPMethod int
}

// Encode writes img to w in format f.
func Encode(w io.Writer, img image.Image, f Format, opts EncodeOptions) error {
	switch f {
	case JPEG:
		return encodeJPEG(w, img, opts)
	case PNG:
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case WebP:
		return encodeWebP(w, img, opts)
	default:
		return fmt.Errorf("no encoder for format %q", f)
	}
}

func encodeJPEG(w io.Writer, img image.Image, opts EncodeOptions) error {
	// libjpeg takes RGBA, Gray or YCbCr; RGBA avoids subsampling ratios it
	// does not accept.
	switch img.(type) {
	case *image.RGBA, *image.Gray:
	default:
		b := img.Bounds()
		rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
		img = rgba
	}

	err := jpeg.Encode(w, img, &jpeg.EncoderOptions{
		Quality:         clampQuality(opts.Quality),
		OptimizeCoding:  true,
		ProgressiveMode: true,
	})
	if err != nil {
		return errors.Wrap(err, "encode jpeg")
	}
	return nil
}

func encodeWebP(w io.Writer, img image.Image, opts EncodeOptions) error {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(clampQuality(opts.Quality)))
	if err != nil {
		return errors.Wrap(err, "webp encoder options")
	}
	if opts.WebPMethod >= 0 {
		options.Method = opts.WebPMethod
	}

	// libwebp imports RGBA-family buffers only; decoded JPEGs are YCbCr.
	switch img.(type) {
	case *image.NRGBA, *image.RGBA:
	default:
		img = imaging.Clone(img)
	}

	if err := webp.Encode(w, img, options); err != nil {
		return errors.Wrap(err, "encode webp")
	}
	return nil
}

// Save encodes img into path, replacing any existing file. The bytes go to
// a temp file in the same directory first so an encode failure never
// leaves a truncated artifact behind. It returns the written size.
func Save(path string, img image.Image, f Format, opts EncodeOptions) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := Encode(tmp, img, f, opts); err != nil {
		tmp.Close()
		return 0, errors.Wrapf(err, "encode %s", filepath.Base(path))
	}

	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, errors.Wrap(err, "stat temp file")
	}
	if err := tmp.Close(); err != nil {
		return 0, errors.Wrap(err, "close temp file")
	}

	if err := os.Chmod(tmpName, 0644); err != nil {
		return 0, errors.Wrap(err, "chmod temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, errors.Wrapf(err, "replace %s", path)
	}
	return info.Size(), nil
}

func clampQuality(q int) int {
	switch {
	case q < 0:
		return 0
	case q > 100:
		return 100
	}
	return q
}
