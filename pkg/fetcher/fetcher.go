// Package fetcher downloads the hero slideshow images, cover-fits them to
// the canonical resolution and writes them as JPEG.
//
// Each descriptor is isolated: a failure is logged and recorded in the
// run report, and the batch moves on. Nothing is retried.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/brightpath-solar/siteimg/pkg/errors"
	"github.com/brightpath-solar/siteimg/pkg/imageproc"
	"github.com/brightpath-solar/siteimg/pkg/report"
	"github.com/brightpath-solar/siteimg/pkg/security"
	"github.com/brightpath-solar/siteimg/pkg/source"
	"golang.org/x/sync/errgroup"
)

// Tool is the report/ledger name of fetcher runs.
const Tool = "fetch"

// Descriptor is one image to fetch: where it comes from and the file name
// it is written under.
type Descriptor struct {
	URL      string
	Filename string
}

// Config holds the fetcher's output settings.
type Config struct {
	OutputDir string
	Width     int
	Height    int
	Quality   int
	Workers   int
}

// Retriever returns the bytes behind a descriptor URL.
type Retriever interface {
	Retrieve(ctx context.Context, rawURL string) (*source.Payload, error)
}

// ErrorReporter forwards item failures to an external tracker.
type ErrorReporter interface {
	CaptureError(err error, tags map[string]string)
}

var decodableTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// Fetcher runs descriptor batches.
type Fetcher struct {
	cfg       Config
	retriever Retriever
	validator *security.Validator
	reporter  ErrorReporter
}

// New creates a Fetcher. reporter may be nil.
func New(cfg Config, retriever Retriever, validator *security.Validator, reporter ErrorReporter) *Fetcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Fetcher{
		cfg:       cfg,
		retriever: retriever,
		validator: validator,
		reporter:  reporter,
	}
}

// Run attempts every descriptor exactly once and returns the report in
// descriptor order. It never fails as a whole.
func (f *Fetcher) Run(ctx context.Context, descriptors []Descriptor) *report.Report {
	rep := report.New(Tool)
	f.validator.Reset()

	slog.Info("fetch_run_start",
		"run_id", rep.RunID,
		"images", len(descriptors),
		"output_dir", f.cfg.OutputDir,
		"workers", f.cfg.Workers)

	outcomes := make([]report.Outcome, len(descriptors))

	var g errgroup.Group
	g.SetLimit(f.cfg.Workers)
	for i, d := range descriptors {
		g.Go(func() error {
			outcomes[i] = f.fetchOne(ctx, d)
			return nil
		})
	}
	_ = g.Wait()

	rep.Add(outcomes...)
	rep.Log()
	return rep
}

func (f *Fetcher) fetchOne(ctx context.Context, d Descriptor) report.Outcome {
	artifact := report.Artifact{
		Name:   d.Filename,
		Path:   filepath.Join(f.cfg.OutputDir, d.Filename),
		Format: string(imageproc.JPEG),
	}

	size, err := f.process(ctx, d, artifact.Path)
	if err != nil {
		slog.Error("fetch_item_failed", "filename", d.Filename, "url", d.URL, "error", err)
		if f.reporter != nil {
			f.reporter.CaptureError(err, map[string]string{"tool": Tool, "filename": d.Filename})
		}
		return report.Failed(artifact, err)
	}

	slog.Info("fetch_item_complete", "filename", d.Filename, "path", artifact.Path, "size_kb", size/1024)
	return report.Succeeded(artifact, size)
}

func (f *Fetcher) process(ctx context.Context, d Descriptor, dest string) (int64, error) {
	if d.URL == "" {
		return 0, fmt.Errorf("descriptor %q has no url", d.Filename)
	}
	if err := f.validator.ValidateFilename(d.Filename); err != nil {
		return 0, err
	}

	if err := os.MkdirAll(f.cfg.OutputDir, 0755); err != nil {
		return 0, errors.Wrap(err, "failed to create output directory")
	}

	slog.Info("fetch_download_start", "filename", d.Filename, "url", d.URL)

	payload, err := f.retriever.Retrieve(ctx, d.URL)
	if err != nil {
		return 0, err
	}

	size := int64(len(payload.Data))
	if err := f.validator.ValidateFileSize(size); err != nil {
		return 0, err
	}
	if err := f.validator.AddFetchedSize(size); err != nil {
		return 0, err
	}
	if _, ok := decodableTypes[payload.ContentType]; !ok {
		return 0, fmt.Errorf("unsupported content type %s", payload.ContentType)
	}

	width, height, err := imageproc.Bounds(payload.Data)
	if err != nil {
		return 0, err
	}
	if err := f.validator.ValidateDimensions(width, height); err != nil {
		return 0, err
	}

	slog.Info("fetch_optimize_start",
		"filename", d.Filename,
		"source_size", fmt.Sprintf("%dx%d", width, height),
		"target_size", fmt.Sprintf("%dx%d", f.cfg.Width, f.cfg.Height))

	img, err := imageproc.LoadBytes(payload.Data, imageproc.CoverFit{Width: f.cfg.Width, Height: f.cfg.Height})
	if err != nil {
		return 0, err
	}

	return imageproc.Save(dest, img, imageproc.JPEG, imageproc.EncodeOptions{Quality: f.cfg.Quality})
}
