package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the quiet period before a reload fires.
const DefaultDebounceInterval = 100 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk.
//
// The file's directory is watched rather than the file itself so that
// editors and config management tools that replace the file atomically
// (write to a temp file, then rename) are picked up.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	interval time.Duration

	// overrides are reapplied to every reloaded file.
	overrides []Override

	mu      sync.Mutex
	timer   *time.Timer
	running bool
}

// NewWatcher creates a Watcher for the configuration file at path.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     abs,
		watcher:  fw,
		logger:   logger.With("component", "config.watcher"),
		interval: DefaultDebounceInterval,
	}, nil
}

// SetDebounce changes the debounce interval. It must be called before Watch.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.interval = d
}

// SetOverrides registers overrides that ReloadConfig applies to each
// reloaded file before validation. It must be called before Watch.
func (w *Watcher) SetOverrides(overrides ...Override) {
	for _, o := range overrides {
		if o != nil {
			w.overrides = append(w.overrides, o)
		}
	}
}

// Watch blocks until ctx is cancelled. After each burst of changes to the
// file it calls ReloadConfig and, on success, onReload with the new
// configuration. A failed reload keeps the previous configuration.
func (w *Watcher) Watch(ctx context.Context, onReload func(*Config)) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer w.close()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info("config watcher started",
		"path", w.path,
		"debounce_ms", w.interval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("config file event", "op", event.Op.String())
			w.trigger(func() { w.reload(onReload) })

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(event.Name) == w.path
}

func (w *Watcher) reload(onReload func(*Config)) {
	if err := ReloadConfig(w.path, w.overrides...); err != nil {
		w.logger.Error("config reload failed, keeping previous configuration", "error", err)
		return
	}
	w.logger.Info("config reloaded", "path", w.path)
	if onReload != nil {
		onReload(GetConfig())
	}
}

// trigger restarts the debounce timer.
func (w *Watcher) trigger(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.interval, fn)
}

func (w *Watcher) close() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.running = false
	w.mu.Unlock()

	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("failed to close fsnotify watcher", "error", err)
	}
}
