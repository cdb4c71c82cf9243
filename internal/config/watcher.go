package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tchow-twistedxcom/agent-pulse/internal/status"
)

// DefaultDebounce coalesces editor save bursts into one reload.
const DefaultDebounce = 100 * time.Millisecond

// ReloadFunc is told about every reload attempt. cfg is nil when err is set.
type ReloadFunc func(cfg *Config, err error)

// Watcher rebuilds the rule library when the config file changes and swaps
// it into a store. A file that fails to parse or validate leaves the current
// library in place.
type Watcher struct {
	path     string
	store    *status.Store
	watcher  *fsnotify.Watcher
	onReload ReloadFunc
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	started bool
}

// NewWatcher watches path's directory, since editors often replace the file
// rather than write it in place. onReload may be nil.
func NewWatcher(path string, store *status.Store, onReload ReloadFunc) (*Watcher, error) {
	if store == nil {
		return nil, status.ErrNilLibrary
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	path = filepath.Clean(path)
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		path:     path,
		store:    store,
		watcher:  fw,
		onReload: onReload,
		debounce: DefaultDebounce,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching in a new goroutine.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.loop()
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			configLog.Warn("config_watcher_error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if w.ctx.Err() != nil {
			return
		}
		_ = w.ReloadNow()
	})
}

// ReloadNow reads the file and replaces the store's library. It returns the
// reason the current library was kept, if any.
func (w *Watcher) ReloadNow() error {
	cfg, err := LoadFile(w.path)
	if err == nil {
		var lib *status.Library
		if lib, err = cfg.BuildLibrary(); err == nil {
			_, err = w.store.Replace(lib)
		}
	}
	if err != nil {
		configLog.Warn("config_reload_rejected",
			slog.String("path", w.path),
			slog.String("error", err.Error()))
		cfg = nil
	} else {
		ClearCache()
		configLog.Info("config_reloaded", slog.String("path", w.path))
	}
	if w.onReload != nil {
		w.onReload(cfg, err)
	}
	return err
}

// Stop shuts the watcher down and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.cancel()
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	started := w.started
	w.mu.Unlock()
	_ = w.watcher.Close()
	if started {
		<-w.done
	}
}
