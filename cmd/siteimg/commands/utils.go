package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/brightpath-solar/siteimg/internal/config"
	"github.com/brightpath-solar/siteimg/internal/telemetry"
	"github.com/brightpath-solar/siteimg/pkg/db"
	"github.com/brightpath-solar/siteimg/pkg/errors"
	"github.com/brightpath-solar/siteimg/pkg/report"
	"github.com/dustin/go-humanize"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadConfig resolves and validates configuration. Nothing is attempted
// when it fails.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config invalid")
	}
	return cfg, nil
}

// ensureParentDir creates the directory that will hold path.
func ensureParentDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create database directory")
	}
	return nil
}

// openHistory opens the ledger when one is configured. The returned
// Recorder is a nil interface when the ledger is disabled, so
// report.Persist skips it.
func openHistory(path string) (*db.Repository, report.Recorder, error) {
	if path == "" {
		return nil, nil, nil
	}
	if err := ensureParentDir(path); err != nil {
		return nil, nil, err
	}

	repo, err := db.NewRepository(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "db init failed")
	}
	return repo, repo, nil
}

func initTelemetry(cfg *config.Config) (*telemetry.Reporter, error) {
	reporter, err := telemetry.Init(cfg.SentryDSN, cfg.Environment, version)
	if err != nil {
		return nil, errors.Wrap(err, "telemetry init failed")
	}
	return reporter, nil
}

// printReport writes one line per artifact and the run summary.
func printReport(r *report.Report) {
	if r == nil {
		return
	}
	for _, o := range r.Outcomes {
		if o.Status == report.StatusFailed {
			fmt.Printf("❌ %s: %v\n", o.Name, o.Err)
			continue
		}
		fmt.Printf("✅ %s (%s)\n", o.Path, humanize.IBytes(uint64(o.Size)))
	}
	fmt.Printf("📊 %s: %s\n", r.Tool, r.Summary())
}
