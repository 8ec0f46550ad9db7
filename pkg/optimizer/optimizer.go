// Package optimizer turns a directory of site images into delivery
// variants: a WebP copy of every image and width-limited copies of every
// JPEG and PNG, followed by an in-place compression pass over the output.
//
// Unlike the fetcher, a run is fail-fast: the first error aborts it.
package optimizer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/brightpath-solar/siteimg/pkg/errors"
	"github.com/brightpath-solar/siteimg/pkg/imageproc"
	"github.com/brightpath-solar/siteimg/pkg/report"
	"golang.org/x/sync/errgroup"
)

// Tool is the report/ledger name of transform runs.
const Tool = "optimize"

// Config drives one optimizer run.
type Config struct {
	SourceDir string
	DestDir   string
	Quality   int
	Widths    []int
	Workers   int
	Compress  CompressSettings
}

// Result holds the reports of both phases. Compress is nil when the run
// failed before the compression pass.
type Result struct {
	Transform *report.Report
	Compress  *report.Report
}

// Optimizer runs the transform and compression phases.
type Optimizer struct {
	cfg Config
}

// New creates an Optimizer.
func New(cfg Config) *Optimizer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Optimizer{cfg: cfg}
}

// Discover lists the recognized image files directly under dir, in
// directory order. Subdirectories and other extensions are skipped.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read source directory")
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !imageproc.IsRecognized(e.Name()) {
			slog.Debug("optimize_skip_unsupported", "file", e.Name())
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Run creates the destination directory, transforms every discovered
// source and compresses the result. The returned Result carries whatever
// was produced before a failure.
func (o *Optimizer) Run(ctx context.Context) (*Result, error) {
	res := &Result{Transform: report.New(Tool)}

	slog.Info("optimize_run_start",
		"run_id", res.Transform.RunID,
		"source_dir", o.cfg.SourceDir,
		"dest_dir", o.cfg.DestDir,
		"widths", o.cfg.Widths,
		"quality", o.cfg.Quality)

	if err := os.MkdirAll(o.cfg.DestDir, 0755); err != nil {
		return res, errors.Wrap(err, "failed to create destination directory")
	}

	names, err := Discover(o.cfg.SourceDir)
	if err != nil {
		return res, err
	}
	slog.Info("optimize_discovered", "images", len(names))

	groups := groupByBase(names)
	perGroup := make([][]report.Outcome, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i, group := range groups {
		g.Go(func() error {
			for _, name := range group {
				if err := gctx.Err(); err != nil {
					return err
				}
				outcomes, err := o.transform(name)
				perGroup[i] = append(perGroup[i], outcomes...)
				if err != nil {
					return errors.Wrapf(err, "optimize %s", name)
				}
			}
			return nil
		})
	}
	err = g.Wait()

	for _, outcomes := range perGroup {
		res.Transform.Add(outcomes...)
	}
	if err != nil {
		return res, err
	}
	res.Transform.Log()

	res.Compress, err = CompressDir(ctx, o.cfg.DestDir, o.cfg.Compress)
	return res, err
}

// groupByBase batches sources that share a base name (hero.jpg and
// hero.png both write hero.webp). A batch runs on one worker in directory
// order, so the later file wins regardless of Workers.
func groupByBase(names []string) [][]string {
	index := make(map[string]int, len(names))
	var groups [][]string
	for _, name := range names {
		base := strings.TrimSuffix(name, filepath.Ext(name))
		i, ok := index[base]
		if !ok {
			i = len(groups)
			index[base] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], name)
	}
	return groups
}

// transform writes the WebP copy and, for responsive formats, one copy per
// configured width.
func (o *Optimizer) transform(name string) ([]report.Outcome, error) {
	src := filepath.Join(o.cfg.SourceDir, name)
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(name, filepath.Ext(name))

	format, err := imageproc.FormatFromPath(name)
	if err != nil {
		return nil, err
	}

	slog.Info("optimize_image_start", "file", name, "format", format)

	img, err := imageproc.Open(src)
	if err != nil {
		return nil, err
	}

	var outcomes []report.Outcome

	webpName := base + imageproc.WebP.Ext()
	outcome, err := o.write(img, webpName, imageproc.WebP, 0, imageproc.EncodeOptions{
		Quality:    o.cfg.Quality,
		WebPMethod: imageproc.DefaultWebPMethod,
	})
	outcomes = append(outcomes, outcome)
	if err != nil {
		return outcomes, err
	}

	if !format.Responsive() {
		return outcomes, nil
	}

	for _, w := range o.cfg.Widths {
		resized := imageproc.WidthLimit{Width: w}.Modify(img)
		variant := fmt.Sprintf("%s-%dw%s", base, w, ext)

		outcome, err := o.write(resized, variant, format, w, imageproc.EncodeOptions{Quality: o.cfg.Quality})
		outcomes = append(outcomes, outcome)
		if err != nil {
			return outcomes, err
		}
	}

	return outcomes, nil
}

func (o *Optimizer) write(img image.Image, name string, f imageproc.Format, width int, opts imageproc.EncodeOptions) (report.Outcome, error) {
	artifact := report.Artifact{
		Name:   name,
		Path:   filepath.Join(o.cfg.DestDir, name),
		Format: string(f),
		Width:  width,
	}

	size, err := imageproc.Save(artifact.Path, img, f, opts)
	if err != nil {
		slog.Error("optimize_write_failed", "file", name, "error", err)
		return report.Failed(artifact, err), err
	}

	slog.Info("optimize_write_complete", "file", name, "size_kb", size/1024)
	return report.Succeeded(artifact, size), nil
}
