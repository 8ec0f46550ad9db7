package commands

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brightpath-solar/siteimg/internal/config"
	"github.com/brightpath-solar/siteimg/pkg/fetcher"
	"github.com/brightpath-solar/siteimg/pkg/security"
	"github.com/brightpath-solar/siteimg/pkg/source"
	"github.com/brightpath-solar/siteimg/pkg/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch-hero",
	Short: "Download the hero slideshow images and fit them to 1920x1080 JPEG",
	Long: `Downloads every configured hero image, cover-fits it to the canonical
resolution and writes it as JPEG into the output directory.

A failing image is logged and skipped; the command still exits 0.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().String("output-dir", "", "Directory the hero images are written to")
	fetchCmd.Flags().Int("workers", 0, "Images fetched concurrently")

	viper.BindPFlag("fetch.output-dir", fetchCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("fetch.workers", fetchCmd.Flags().Lookup("workers"))
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Past this point the fetcher always runs: optional integrations that
	// fail to start are logged and left out.
	reporter, err := initTelemetry(cfg)
	if err != nil {
		slog.Warn("telemetry_disabled", "error", err)
	}
	defer reporter.Flush()

	repo, recorder, err := openHistory(cfg.HistoryDB)
	if err != nil {
		slog.Warn("history_disabled", "history_db", cfg.HistoryDB, "error", err)
	}
	if repo != nil {
		defer repo.Close()
	}

	validator := security.NewValidator(cfg.Limits.MaxFileSize, cfg.Limits.MaxTotalSize, cfg.Limits.MaxPixels)

	var objects source.ObjectDownloader
	if usesS3(cfg.Fetch.Images) {
		s3Client, err := storage.NewClient(ctx, cfg.S3Region, false)
		if err != nil {
			slog.Warn("s3_client_unavailable", "error", err)
		} else {
			objects = s3Client
		}
	}

	retriever := source.NewRetriever(&http.Client{Timeout: cfg.Fetch.Timeout}, objects, validator.MaxFileSize())

	f := fetcher.New(fetcher.Config{
		OutputDir: cfg.Fetch.OutputDir,
		Width:     cfg.Fetch.Width,
		Height:    cfg.Fetch.Height,
		Quality:   cfg.Fetch.Quality,
		Workers:   cfg.Fetch.Workers,
	}, retriever, validator, reporter)

	fmt.Printf("📥 Fetching %d hero images into %s\n", len(cfg.Fetch.Images), cfg.Fetch.OutputDir)

	rep := f.Run(ctx, descriptors(cfg.Fetch.Images))
	rep.Persist(ctx, recorder)
	printReport(rep)

	return nil
}

func descriptors(images []config.Image) []fetcher.Descriptor {
	out := make([]fetcher.Descriptor, 0, len(images))
	for _, img := range images {
		out = append(out, fetcher.Descriptor{URL: img.URL, Filename: img.Filename})
	}
	return out
}

func usesS3(images []config.Image) bool {
	for _, img := range images {
		if strings.HasPrefix(strings.ToLower(img.URL), "s3://") {
			return true
		}
	}
	return false
}
