package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hot-reloads a Config from its source file, grounded on the
// teacher's ConfigWatcher (backend/internal/config/watcher.go):
// fsnotify on the directory containing the file, debounced reload, and
// a callback list notified off the watch goroutine so a slow callback
// never blocks the next filesystem event.
type Watcher struct {
	path   string
	logger *zap.Logger

	mu        sync.RWMutex
	cfg       Config
	callbacks []func(Config)

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
}

// debounceDelay coalesces the burst of events a single save can produce
// (write, then chmod, then rename-into-place on some editors).
const debounceDelay = 200 * time.Millisecond

// NewWatcher starts watching path for changes to initial's source file.
// logger defaults to a no-op logger if nil.
func NewWatcher(path string, initial Config, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{path: path, logger: logger, cfg: initial, stopCh: make(chan struct{})}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.fsWatcher = fsWatcher

	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	go w.watchLoop()
	return w, nil
}

func (w *Watcher) watchLoop() {
	defer w.fsWatcher.Close()

	var debounce *time.Timer
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, w.reload)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", zap.Error(err))

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) reload() {
	next, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous config", zap.Error(err))
		return
	}

	w.mu.Lock()
	if next == w.cfg {
		w.mu.Unlock()
		return
	}
	w.cfg = next
	callbacks := make([]func(Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("configuration reloaded", zap.String("path", w.path))
	for _, cb := range callbacks {
		go cb(next)
	}
}

// OnChange registers a callback invoked (in its own goroutine) after
// every reload that actually changes the configuration.
func (w *Watcher) OnChange(cb func(Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Get returns the current configuration.
func (w *Watcher) Get() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Stop ends the watch loop and releases the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
}
