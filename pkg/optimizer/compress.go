package optimizer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/brightpath-solar/siteimg/pkg/errors"
	"github.com/brightpath-solar/siteimg/pkg/imageproc"
	"github.com/brightpath-solar/siteimg/pkg/report"
)

// CompressTool is the report/ledger name of compression passes.
const CompressTool = "compress"

// CompressSettings are the per-format parameters of the compression pass.
type CompressSettings struct {
	JPEGQuality   int
	PNGQualityMin float64
	PNGQualityMax float64
	PNGSpeed      int
	WebPQuality   int
	WebPMethod    int
}

// DefaultCompressSettings mirrors the configuration defaults.
func DefaultCompressSettings() CompressSettings {
	return CompressSettings{
		JPEGQuality:   80,
		PNGQualityMin: 0.6,
		PNGQualityMax: 0.8,
		PNGSpeed:      4,
		WebPQuality:   80,
		WebPMethod:    6,
	}
}

// CompressDir re-encodes every recognized image in dir in place. File names
// never change. The first error aborts the pass.
func CompressDir(ctx context.Context, dir string, s CompressSettings) (*report.Report, error) {
	rep := report.New(CompressTool)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return rep, errors.Wrap(err, "failed to read output directory")
	}

	slog.Info("compress_start", "run_id", rep.RunID, "dir", dir)

	for _, e := range entries {
		if e.IsDir() || !imageproc.IsRecognized(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		path := filepath.Join(dir, e.Name())
		format, _ := imageproc.FormatFromPath(path)
		artifact := report.Artifact{Name: e.Name(), Path: path, Format: string(format)}

		size, err := compressFile(path, format, s)
		if err != nil {
			slog.Error("compress_file_failed", "file", e.Name(), "error", err)
			rep.Add(report.Failed(artifact, err))
			return rep, errors.Wrapf(err, "compress %s", e.Name())
		}
		rep.Add(report.Succeeded(artifact, size))
	}

	rep.Log()
	return rep, nil
}

func compressFile(path string, f imageproc.Format, s CompressSettings) (int64, error) {
	img, err := imageproc.Open(path)
	if err != nil {
		return 0, err
	}

	switch f {
	case imageproc.JPEG:
		return imageproc.Save(path, img, f, imageproc.EncodeOptions{Quality: s.JPEGQuality})

	case imageproc.PNG:
		quantized, score, ok := imageproc.Quantize(img, imageproc.QuantizeOptions{
			MinQuality: s.PNGQualityMin,
			MaxQuality: s.PNGQualityMax,
			Speed:      s.PNGSpeed,
		})
		if !ok {
			slog.Info("compress_png_lossless", "file", filepath.Base(path), "score", score)
			return imageproc.Save(path, img, f, imageproc.EncodeOptions{})
		}
		slog.Debug("compress_png_quantized", "file", filepath.Base(path), "score", score)
		return imageproc.Save(path, quantized, f, imageproc.EncodeOptions{})

	default:
		return imageproc.Save(path, img, f, imageproc.EncodeOptions{
			Quality:    s.WebPQuality,
			WebPMethod: s.WebPMethod,
		})
	}
}
