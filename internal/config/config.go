package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Image pairs a source reference with the file name it is saved under.
type Image struct {
	URL      string `mapstructure:"url" validate:"required"`
	Filename string `mapstructure:"filename" validate:"required"`
}

// FetchConfig drives the hero image fetcher.
type FetchConfig struct {
	OutputDir string        `mapstructure:"output-dir" validate:"required"`
	Width     int           `mapstructure:"width" validate:"gt=0"`
	Height    int           `mapstructure:"height" validate:"gt=0"`
	Quality   int           `mapstructure:"quality" validate:"gte=0,lte=100"`
	Workers   int           `mapstructure:"workers" validate:"gte=1"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Images    []Image       `mapstructure:"images" validate:"dive"`
}

// OptimizeConfig drives the directory optimizer.
type OptimizeConfig struct {
	SourceDir string `mapstructure:"source-dir" validate:"required"`
	DestDir   string `mapstructure:"dest-dir" validate:"required"`
	Quality   int    `mapstructure:"quality" validate:"gte=0,lte=100"`
	Widths    []int  `mapstructure:"widths" validate:"required,dive,gt=0"`
	Workers   int    `mapstructure:"workers" validate:"gte=1"`
}

// CompressConfig holds the per-format settings of the final compression
// pass.
type CompressConfig struct {
	JPEGQuality   int     `mapstructure:"jpeg-quality" validate:"gte=0,lte=100"`
	PNGQualityMin float64 `mapstructure:"png-quality-min" validate:"gte=0,lte=1"`
	PNGQualityMax float64 `mapstructure:"png-quality-max" validate:"gte=0,lte=1,gtefield=PNGQualityMin"`
	PNGSpeed      int     `mapstructure:"png-speed" validate:"gte=1,lte=11"`
	WebPQuality   int     `mapstructure:"webp-quality" validate:"gte=0,lte=100"`
	WebPMethod    int     `mapstructure:"webp-method" validate:"gte=0,lte=6"`
}

// LimitsConfig bounds what the fetcher accepts.
type LimitsConfig struct {
	MaxFileSize  int64 `mapstructure:"max-file-size" validate:"gt=0"`
	MaxTotalSize int64 `mapstructure:"max-total-size" validate:"gt=0"`
	MaxPixels    int64 `mapstructure:"max-pixels" validate:"gt=0"`
}

// PublishConfig points the publish command at a bucket.
type PublishConfig struct {
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	CacheControl string `mapstructure:"cache-control"`
}

// Config holds all application configuration
type Config struct {
	// Optional history ledger; empty disables it
	HistoryDB string `mapstructure:"history-db"`

	// Optional error reporting
	SentryDSN   string `mapstructure:"sentry-dsn"`
	Environment string `mapstructure:"environment"`

	S3Region string `mapstructure:"s3-region" validate:"required"`

	Fetch    FetchConfig    `mapstructure:"fetch"`
	Optimize OptimizeConfig `mapstructure:"optimize"`
	Compress CompressConfig `mapstructure:"compress"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Publish  PublishConfig  `mapstructure:"publish"`
}

// DefaultHeroImages are the hero slideshow sources used when the config
// file names none.
func DefaultHeroImages() []Image {
	return []Image{
		{
			URL:      "https://images.unsplash.com/photo-1509391366360-2e959784a276?ixlib=rb-4.0.3&auto=format&fit=crop&w=1772&q=80",
			Filename: "hero-1.jpg",
		},
		{
			URL:      "https://images.unsplash.com/photo-1497435334941-8c899ee9e8e9?ixlib=rb-4.0.3&auto=format&fit=crop&w=1774&q=80",
			Filename: "hero-2.jpg",
		},
		{
			URL:      "https://images.unsplash.com/photo-1486406146926-c627a92ad1ab?ixlib=rb-4.0.3&auto=format&fit=crop&w=1770&q=80",
			Filename: "hero-3.jpg",
		},
	}
}

// SetDefaults registers every default with viper.
func SetDefaults() {
	viper.SetDefault("s3-region", "us-east-1")
	viper.SetDefault("environment", "development")

	viper.SetDefault("fetch.output-dir", "public/images/hero")
	viper.SetDefault("fetch.width", 1920)
	viper.SetDefault("fetch.height", 1080)
	viper.SetDefault("fetch.quality", 80)
	viper.SetDefault("fetch.workers", 1)
	viper.SetDefault("fetch.timeout", time.Duration(0))

	viper.SetDefault("optimize.source-dir", "public/images")
	viper.SetDefault("optimize.dest-dir", "public/optimized-images")
	viper.SetDefault("optimize.quality", 80)
	viper.SetDefault("optimize.widths", []int{400, 800, 1200, 1600})
	viper.SetDefault("optimize.workers", 1)

	viper.SetDefault("compress.jpeg-quality", 80)
	viper.SetDefault("compress.png-quality-min", 0.6)
	viper.SetDefault("compress.png-quality-max", 0.8)
	viper.SetDefault("compress.png-speed", 4)
	viper.SetDefault("compress.webp-quality", 80)
	viper.SetDefault("compress.webp-method", 6)

	viper.SetDefault("limits.max-file-size", 50*1024*1024)
	viper.SetDefault("limits.max-total-size", 1024*1024*1024)
	viper.SetDefault("limits.max-pixels", 100_000_000)

	viper.SetDefault("publish.prefix", "optimized-images/")
	viper.SetDefault("publish.cache-control", "public, max-age=31536000, immutable")
}

// Load reads configuration from environment, config file, and defaults
func Load() (*Config, error) {
	SetDefaults()

	// Environment variables (SITEIMG_FETCH_OUTPUT_DIR, etc.)
	viper.SetEnvPrefix("SITEIMG")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		viper.SetConfigName("siteimg")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.siteimg")

		// Optional
		_ = viper.ReadInConfig()
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Fetch.Images) == 0 {
		cfg.Fetch.Images = DefaultHeroImages()
	}

	return &cfg, nil
}

var validate = validator.New()

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describe(err)
	}

	seen := make(map[string]bool, len(c.Fetch.Images))
	for _, img := range c.Fetch.Images {
		if seen[img.Filename] {
			return fmt.Errorf("fetch.images: duplicate filename %q", img.Filename)
		}
		seen[img.Filename] = true
	}

	return nil
}

// describe flattens validator errors into one readable message.
func describe(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.TrimPrefix(e.Namespace(), "Config.")
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "gt", "gte", "lte":
			msgs = append(msgs, fmt.Sprintf("%s out of allowed range (%s %s)", field, e.Tag(), e.Param()))
		case "gtefield":
			msgs = append(msgs, fmt.Sprintf("%s must be >= %s", field, e.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	sort.Strings(msgs)

	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
