package imageproc

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/soniakeys/quant/median"
)

// paletteSizes are tried largest first; each step halves the palette.
var paletteSizes = []int{256, 128, 64, 32, 16, 8, 4, 2}

// maxScoreSamples caps the pixels visited when scoring a palette.
const maxScoreSamples = 1 << 16

// QuantizeOptions bounds lossy palette reduction of PNGs.
//
// MinQuality and MaxQuality are in [0,1] on pngquant's quality scale
// (0.8 is close to visually lossless). Speed runs from 1 (try every
// palette size) to 11 (try only the 256 colour palette).
type QuantizeOptions struct {
	MinQuality float64
	MaxQuality float64
	Speed      int
}

// Quantize maps img onto the smallest median-cut palette that still scores
// MaxQuality, dithered with Floyd-Steinberg. When even the full 256 colour
// palette scores below MinQuality it returns ok=false and the caller keeps
// the lossless image. Palettes are scored on their plain remapping error,
// before dithering.
func Quantize(img image.Image, opts QuantizeOptions) (out image.Image, score float64, ok bool) {
	src := imaging.Clone(img)

	var best color.Palette
	bestScore := 0.0

	for i, size := range paletteSizes[:attempts(opts.Speed)] {
		palette := median.Quantizer(size).Quantize(make(color.Palette, 0, size), src)
		s := mseToQuality(remapMSE(src, palette))

		if i == 0 && s < opts.MinQuality {
			return nil, s, false
		}
		if i > 0 && s < opts.MaxQuality {
			break
		}

		best, bestScore = palette, s
		if s < opts.MaxQuality {
			// 256 colours already fell short of the target; nothing
			// smaller will reach it.
			break
		}
	}

	return dither(src, best), bestScore, true
}

func attempts(speed int) int {
	if speed < 1 {
		speed = 1
	}
	n := len(paletteSizes) - (speed - 1)
	if n < 1 {
		n = 1
	}
	if n > len(paletteSizes) {
		n = len(paletteSizes)
	}
	return n
}

func dither(src *image.NRGBA, palette color.Palette) *image.Paletted {
	bounds := src.Bounds()
	dst := image.NewPaletted(bounds, palette)
	draw.FloydSteinberg.Draw(dst, bounds, src, bounds.Min)
	return dst
}

// remapMSE is the mean squared error of mapping every pixel to its nearest
// palette entry. Large images are sampled on a regular grid.
func remapMSE(src *image.NRGBA, palette color.Palette) float64 {
	bounds := src.Bounds()
	if bounds.Empty() || len(palette) == 0 {
		return 0
	}

	step := 1
	for (bounds.Dx()/step)*(bounds.Dy()/step) > maxScoreSamples {
		step++
	}

	var sum float64
	var n int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			c := src.At(x, y)
			sum += pixelError(c, palette[palette.Index(c)])
			n++
		}
	}
	return sum / float64(n)
}

// Similarity scores b against a on the same 0..1 quality scale Quantize
// uses: 1 for identical pixels. Both images must share bounds.
func Similarity(a, b image.Image) float64 {
	bounds := a.Bounds()
	if bounds.Empty() {
		return 1
	}

	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum += pixelError(a.At(x, y), b.At(x, y))
		}
	}
	return mseToQuality(sum / float64(bounds.Dx()*bounds.Dy()))
}

// pixelError sums the squared premultiplied channel differences, each
// channel scaled to [0,1].
func pixelError(a, b color.Color) float64 {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return sq(ar, br) + sq(ag, bg) + sq(ab, bb) + sq(aa, ba)
}

func sq(a, b uint32) float64 {
	d := (float64(a) - float64(b)) / 0xffff
	return d * d
}

// qualityToMSE is pngquant's quality curve: the largest mean squared error
// (summed over RGBA in [0,1]) still rated quality q out of 100.
func qualityToMSE(q int) float64 {
	if q <= 0 {
		return math.MaxFloat64
	}
	if q >= 100 {
		return 0
	}
	fq := float64(q)
	lowFudge := math.Max(0, 0.016/(0.001+fq)-0.001)
	return lowFudge + 2.5/math.Pow(210+fq, 1.2)*(100.1-fq)/100
}

// mseToQuality inverts qualityToMSE onto a 0..1 score.
func mseToQuality(mse float64) float64 {
	for q := 100; q > 0; q-- {
		if mse <= qualityToMSE(q)+0.000001 {
			return float64(q) / 100
		}
	}
	return 0
}
