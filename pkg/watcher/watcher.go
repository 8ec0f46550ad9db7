// Package watcher re-runs a job whenever images in a directory change.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/brightpath-solar/siteimg/pkg/errors"
	"github.com/brightpath-solar/siteimg/pkg/imageproc"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses editor save bursts and multi-file copies into
// one run.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors a single directory, non-recursively.
type Watcher struct {
	dir      string
	debounce time.Duration
	fs       *fsnotify.Watcher
}

// New starts watching dir.
func New(dir string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, errors.Wrapf(err, "failed to watch %s", dir)
	}

	slog.Info("watch_start", "dir", dir, "debounce", debounce)
	return &Watcher{dir: dir, debounce: debounce, fs: fsWatcher}, nil
}

// Run blocks until ctx is cancelled, calling onChange once per debounced
// burst of image changes. A failing onChange is logged and watching
// continues.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context) error) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("watch_stop", "dir", w.dir)
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			slog.Debug("watch_event", "file", event.Name, "op", event.Op.String())

			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Error("watch_error", "dir", w.dir, "error", err)

		case <-fire:
			timer, fire = nil, nil
			slog.Info("watch_change_detected", "dir", w.dir)
			if err := onChange(ctx); err != nil {
				slog.Error("watch_run_failed", "dir", w.dir, "error", err)
			}
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	// Temp files
	if strings.HasPrefix(name, ".") {
		return false
	}
	return imageproc.IsRecognized(name)
}
