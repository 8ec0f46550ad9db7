package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brightpath-solar/siteimg/internal/config"
	"github.com/brightpath-solar/siteimg/pkg/db"
	"github.com/brightpath-solar/siteimg/pkg/errors"
	"github.com/brightpath-solar/siteimg/pkg/imageproc"
	"github.com/spf13/cobra"
)

var (
	cleanAll       bool
	cleanFetched   bool
	cleanOptimized bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove generated images",
	Long: `Remove artifacts produced by the image tools:
  --fetched     Remove the hero images written by fetch-hero
  --optimized   Remove the variants in the optimizer's destination directory
  --all         Both

Source images are never touched.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "Remove fetched and optimized images")
	cleanCmd.Flags().BoolVar(&cleanFetched, "fetched", false, "Remove fetched hero images")
	cleanCmd.Flags().BoolVar(&cleanOptimized, "optimized", false, "Remove optimized variants")
}

func runClean(cmd *cobra.Command, args []string) error {
	if !cleanAll && !cleanFetched && !cleanOptimized {
		return fmt.Errorf("must specify --fetched, --optimized, or --all")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	repo, _, err := openHistory(cfg.HistoryDB)
	if err != nil {
		return err
	}
	if repo != nil {
		defer repo.Close()
	}

	var targets []string
	if cleanAll || cleanFetched {
		targets = append(targets, fetchedArtifacts(cfg)...)
	}
	if cleanAll || cleanOptimized {
		optimized, err := optimizedArtifacts(cfg.Optimize.DestDir)
		if err != nil {
			return err
		}
		targets = append(targets, optimized...)
	}

	fmt.Printf("🧹 Cleaning up %d candidate files...\n", len(targets))

	removed, err := removeArtifacts(context.Background(), repo, targets)
	fmt.Printf("✅ Removed %d files\n", removed)
	return err
}

// fetchedArtifacts are the paths fetch-hero writes for the configured
// descriptors.
func fetchedArtifacts(cfg *config.Config) []string {
	paths := make([]string, 0, len(cfg.Fetch.Images))
	for _, img := range cfg.Fetch.Images {
		paths = append(paths, filepath.Join(cfg.Fetch.OutputDir, img.Filename))
	}
	return paths
}

// optimizedArtifacts lists the recognized images in dir. A missing dir has
// nothing to clean.
func optimizedArtifacts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read destination directory")
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageproc.IsRecognized(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// removeArtifacts deletes each existing path and its ledger rows. repo may
// be nil.
func removeArtifacts(ctx context.Context, repo *db.Repository, paths []string) (int, error) {
	removed := 0
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, errors.Wrapf(err, "failed to remove %s", p)
		}
		removed++
		fmt.Printf("🗑️  Removed: %s\n", p)

		if repo != nil {
			if _, err := repo.DeleteByPath(ctx, p); err != nil {
				fmt.Printf("⚠️  Ledger cleanup warning for %s: %v\n", p, err)
			}
		}
	}
	return removed, nil
}
