package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher calls onChange once a phrase file has stopped changing for the
// debounce interval. It watches the file's directory so editors that
// replace the file by rename are still seen.
type Watcher struct {
	path      string
	debounce  time.Duration
	onChange  func(ctx context.Context)
	logger    *slog.Logger
	fsWatcher *fsnotify.Watcher
}

func NewWatcher(path string, debounce time.Duration, onChange func(ctx context.Context), logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:      abs,
		debounce:  debounce,
		onChange:  onChange,
		logger:    logger.With("component", "phrase-watcher", "path", abs),
		fsWatcher: fsWatcher,
	}, nil
}

// Run blocks until ctx is cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsWatcher.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	w.logger.Info("watching phrase file", "debounce", w.debounce)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("phrase file event", "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-timer.C:
			w.onChange(ctx)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
