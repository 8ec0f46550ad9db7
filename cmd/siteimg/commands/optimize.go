package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brightpath-solar/siteimg/internal/config"
	"github.com/brightpath-solar/siteimg/internal/telemetry"
	"github.com/brightpath-solar/siteimg/pkg/errors"
	"github.com/brightpath-solar/siteimg/pkg/optimizer"
	"github.com/brightpath-solar/siteimg/pkg/report"
	"github.com/brightpath-solar/siteimg/pkg/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var optimizeWatch bool

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Build WebP and responsive variants of the site images",
	Long: `Writes a WebP copy of every JPEG, PNG and WebP image in the source
directory plus one width-limited copy per configured width for JPEG and
PNG sources, then compresses the destination directory in place.

The first error aborts the run. With --watch the run repeats whenever the
source directory changes, and failures are logged instead.`,
	Args: cobra.NoArgs,
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
	optimizeCmd.Flags().String("source-dir", "", "Directory holding the source images")
	optimizeCmd.Flags().String("dest-dir", "", "Directory the variants are written to")
	optimizeCmd.Flags().Int("quality", 0, "Encoding quality for variants (0-100)")
	optimizeCmd.Flags().IntSlice("widths", nil, "Responsive widths, e.g. 400,800,1200")
	optimizeCmd.Flags().Int("workers", 0, "Images transformed concurrently")
	optimizeCmd.Flags().BoolVar(&optimizeWatch, "watch", false, "Re-run whenever the source directory changes")

	viper.BindPFlag("optimize.source-dir", optimizeCmd.Flags().Lookup("source-dir"))
	viper.BindPFlag("optimize.dest-dir", optimizeCmd.Flags().Lookup("dest-dir"))
	viper.BindPFlag("optimize.quality", optimizeCmd.Flags().Lookup("quality"))
	viper.BindPFlag("optimize.widths", optimizeCmd.Flags().Lookup("widths"))
	viper.BindPFlag("optimize.workers", optimizeCmd.Flags().Lookup("workers"))
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reporter, err := initTelemetry(cfg)
	if err != nil {
		return err
	}
	defer reporter.Flush()

	repo, recorder, err := openHistory(cfg.HistoryDB)
	if err != nil {
		return err
	}
	if repo != nil {
		defer repo.Close()
	}

	opt := optimizer.New(optimizerConfig(cfg))
	run := func(ctx context.Context) error {
		return runOptimizeOnce(ctx, opt, recorder, reporter)
	}

	fmt.Printf("🖼️  Optimizing %s into %s\n", cfg.Optimize.SourceDir, cfg.Optimize.DestDir)

	if err := run(ctx); err != nil {
		if !optimizeWatch {
			return errors.Wrap(err, "optimize failed")
		}
		slog.Error("optimize_failed", "error", err)
	}
	if !optimizeWatch {
		return nil
	}

	w, err := watcher.New(cfg.Optimize.SourceDir, watcher.DefaultDebounce)
	if err != nil {
		return err
	}
	defer w.Close()

	fmt.Printf("👀 Watching %s (Ctrl+C to stop)\n", cfg.Optimize.SourceDir)
	return w.Run(ctx, run)
}

func runOptimizeOnce(ctx context.Context, opt *optimizer.Optimizer, recorder report.Recorder, reporter *telemetry.Reporter) error {
	res, err := opt.Run(ctx)

	res.Transform.Persist(ctx, recorder)
	if res.Compress != nil {
		res.Compress.Persist(ctx, recorder)
	}

	if err != nil {
		reporter.CaptureError(err, map[string]string{"tool": optimizer.Tool})
		return err
	}

	printReport(res.Transform)
	printReport(res.Compress)
	return nil
}

func optimizerConfig(cfg *config.Config) optimizer.Config {
	return optimizer.Config{
		SourceDir: cfg.Optimize.SourceDir,
		DestDir:   cfg.Optimize.DestDir,
		Quality:   cfg.Optimize.Quality,
		Widths:    cfg.Optimize.Widths,
		Workers:   cfg.Optimize.Workers,
		Compress: optimizer.CompressSettings{
			JPEGQuality:   cfg.Compress.JPEGQuality,
			PNGQualityMin: cfg.Compress.PNGQualityMin,
			PNGQualityMax: cfg.Compress.PNGQualityMax,
			PNGSpeed:      cfg.Compress.PNGSpeed,
			WebPQuality:   cfg.Compress.WebPQuality,
			WebPMethod:    cfg.Compress.WebPMethod,
		},
	}
}
