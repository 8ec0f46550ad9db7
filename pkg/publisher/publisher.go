// Package publisher uploads optimized images to an S3 bucket.
package publisher

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/brightpath-solar/siteimg/pkg/errors"
	"github.com/brightpath-solar/siteimg/pkg/imageproc"
	"github.com/brightpath-solar/siteimg/pkg/report"
	"github.com/brightpath-solar/siteimg/pkg/storage"
	"github.com/gabriel-vasile/mimetype"
)

// Tool is the report/ledger name of publish runs.
const Tool = "publish"

// Uploader stores one object.
type Uploader interface {
	Upload(ctx context.Context, in storage.UploadInput) error
}

// Options selects the destination of a publish run.
type Options struct {
	Bucket       string
	Prefix       string
	CacheControl string
}

// Publish uploads every recognized image directly under dir, stopping at
// the first failure.
func Publish(ctx context.Context, up Uploader, dir string, opts Options) (*report.Report, error) {
	rep := report.New(Tool)

	if opts.Bucket == "" {
		return rep, errors.New("publish bucket is not configured")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return rep, errors.Wrap(err, "failed to read publish directory")
	}

	slog.Info("publish_start", "run_id", rep.RunID, "dir", dir, "bucket", opts.Bucket, "prefix", opts.Prefix)

	for _, e := range entries {
		if e.IsDir() || !imageproc.IsRecognized(e.Name()) {
			continue
		}

		p := filepath.Join(dir, e.Name())
		key := path.Join(opts.Prefix, e.Name())
		format, _ := imageproc.FormatFromPath(p)
		artifact := report.Artifact{Name: key, Path: p, Format: string(format)}

		size, err := uploadFile(ctx, up, p, key, format, opts)
		if err != nil {
			rep.Add(report.Failed(artifact, err))
			return rep, err
		}
		rep.Add(report.Succeeded(artifact, size))
	}

	rep.Log()
	return rep, nil
}

func uploadFile(ctx context.Context, up Uploader, p, key string, format imageproc.Format, opts Options) (int64, error) {
	contentType := contentTypeOf(p, format)

	f, err := os.Open(p)
	if err != nil {
		return 0, errors.Wrap(err, "failed to open file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "failed to stat file")
	}

	err = up.Upload(ctx, storage.UploadInput{
		Bucket:       opts.Bucket,
		Key:          key,
		ContentType:  contentType,
		CacheControl: opts.CacheControl,
		Body:         f,
	})
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// contentTypeOf sniffs the file, falling back to the type implied by its
// extension when the content is not recognized as an image.
func contentTypeOf(p string, format imageproc.Format) string {
	mtype, err := mimetype.DetectFile(p)
	if err != nil {
		slog.Warn("publish_sniff_failed", "file", p, "error", err)
		return format.ContentType()
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return format.ContentType()
	}
	return mtype.String()
}
