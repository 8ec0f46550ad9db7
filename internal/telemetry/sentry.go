// Package telemetry forwards failures to Sentry when a DSN is configured.
package telemetry

import (
	"log/slog"
	"time"

	"github.com/brightpath-solar/siteimg/pkg/errors"
	"github.com/getsentry/sentry-go"
)

const flushTimeout = 2 * time.Second

// Reporter captures errors. The zero value and a nil *Reporter are
// disabled and drop everything.
type Reporter struct {
	enabled bool
}

// Init configures the Sentry client. An empty dsn returns a disabled
// Reporter.
func Init(dsn, environment, release string) (*Reporter, error) {
	if dsn == "" {
		return &Reporter{}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, errors.Wrap(err, "sentry init")
	}

	slog.Info("sentry_enabled", "environment", environment, "release", release)
	return &Reporter{enabled: true}, nil
}

// Enabled reports whether events are sent.
func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// CaptureError sends err with tags attached to its scope.
func (r *Reporter) CaptureError(err error, tags map[string]string) {
	if !r.Enabled() || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events before the process exits.
func (r *Reporter) Flush() {
	if !r.Enabled() {
		return
	}
	if !sentry.Flush(flushTimeout) {
		slog.Warn("sentry_flush_timeout", "timeout", flushTimeout)
	}
}
