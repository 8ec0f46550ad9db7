package commands

import (
	"fmt"

	"github.com/brightpath-solar/siteimg/pkg/errors"
	"github.com/brightpath-solar/siteimg/pkg/publisher"
	"github.com/brightpath-solar/siteimg/pkg/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload the optimized images to S3",
	Args:  cobra.NoArgs,
	RunE:  runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().String("bucket", "", "Destination S3 bucket")
	publishCmd.Flags().String("prefix", "", "Key prefix for uploaded objects")

	viper.BindPFlag("publish.bucket", publishCmd.Flags().Lookup("bucket"))
	viper.BindPFlag("publish.prefix", publishCmd.Flags().Lookup("prefix"))
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Publish.Bucket == "" {
		return fmt.Errorf("no bucket configured: use --bucket or SITEIMG_PUBLISH_BUCKET")
	}

	repo, recorder, err := openHistory(cfg.HistoryDB)
	if err != nil {
		return err
	}
	if repo != nil {
		defer repo.Close()
	}

	s3Client, err := storage.NewClient(ctx, cfg.S3Region, false)
	if err != nil {
		return errors.Wrap(err, "S3 client failed")
	}

	fmt.Printf("🚀 Publishing %s to s3://%s/%s\n", cfg.Optimize.DestDir, cfg.Publish.Bucket, cfg.Publish.Prefix)

	rep, err := publisher.Publish(ctx, s3Client, cfg.Optimize.DestDir, publisher.Options{
		Bucket:       cfg.Publish.Bucket,
		Prefix:       cfg.Publish.Prefix,
		CacheControl: cfg.Publish.CacheControl,
	})
	rep.Persist(ctx, recorder)
	if err != nil {
		return errors.Wrap(err, "publish failed")
	}

	printReport(rep)
	return nil
}
