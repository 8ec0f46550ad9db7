package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time with -ldflags "-X ...commands.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "siteimg",
	Short: "Image tooling for the marketing site",
	Long: `Fetches the hero slideshow images and builds WebP and responsive
variants of the site's image directory.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; the process environment still applies.
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			slog.Warn("dotenv_load_failed", "error", err)
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./siteimg.yaml or $HOME/.siteimg/siteimg.yaml)")
	rootCmd.PersistentFlags().String("history-db", "", "SQLite history ledger path (disabled when empty)")
	rootCmd.PersistentFlags().String("sentry-dsn", "", "Sentry DSN for error reporting (disabled when empty)")
	rootCmd.PersistentFlags().String("s3-region", "us-east-1", "S3 region for s3:// sources and publishing")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("history-db", rootCmd.PersistentFlags().Lookup("history-db"))
	viper.BindPFlag("sentry-dsn", rootCmd.PersistentFlags().Lookup("sentry-dsn"))
	viper.BindPFlag("s3-region", rootCmd.PersistentFlags().Lookup("s3-region"))
}
