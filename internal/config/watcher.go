package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// ChangeFunc is called after a changed, valid config has been loaded.
type ChangeFunc func(old, new *Config, d ConfigDiff)

// snapshot is one successfully loaded version of the file.
type snapshot struct {
	cfg   *Config
	hash  [sha256.Size]byte
	mtime time.Time
}

// Watcher polls a config file and reports hot-reloadable changes. An
// invalid file is logged and ignored; the previous config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange ChangeFunc

	// checkMu serializes Check so callbacks fire in load order.
	checkMu   sync.Mutex
	lastMtime time.Time
	current   atomic.Pointer[snapshot]
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path once and returns a Watcher ready to [Watcher.Run].
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: 5 * time.Second, onChange: onChange}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current.Store(snap)
	w.lastMtime = snap.mtime
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	return w.current.Load().cfg
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check reloads the file when its modification time moved and its content
// hash differs from the current snapshot. It returns true when a new config
// was installed and the callback ran.
func (w *Watcher) Check() bool {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()

	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return false
	}
	if info.ModTime().Equal(w.lastMtime) {
		return false
	}

	next, err := w.load()
	if err != nil {
		slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return false
	}
	w.lastMtime = next.mtime

	prev := w.current.Load()
	if next.hash == prev.hash {
		return false
	}
	w.current.Store(next)

	d := Diff(prev.cfg, next.cfg)
	if len(d.RestartRequired) > 0 {
		slog.Warn("config watcher: changes need a restart to apply", "sections", d.RestartRequired)
	}
	slog.Info("config watcher: configuration reloaded", "path", w.path)

	if w.onChange != nil {
		w.onChange(prev.cfg, next.cfg, d)
	}
	return true
}

func (w *Watcher) load() (*snapshot, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &snapshot{cfg: cfg, hash: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
