package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sha1n/xconf-mcp/internal/store"
)

// RefreshFunc re-indexes a collection.
type RefreshFunc func(ctx context.Context, collection string) error

// Watcher refreshes collections whose configuration resource changes in a
// file store. Bursts of events for one collection are coalesced.
type Watcher struct {
	store    *store.FileStore
	refresh  RefreshFunc
	debounce time.Duration
	logger   *slog.Logger

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer
	timers  sync.WaitGroup
}

// NewWatcher creates a watcher over the configuration collection of a file store.
func NewWatcher(st *store.FileStore, refresh RefreshFunc, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Watcher{
		store:    st,
		refresh:  refresh,
		debounce: debounce,
		logger:   slog.Default(),
		pending:  make(map[string]*time.Timer),
	}
}

// Start begins watching. Watches are in place when Start returns.
func (w *Watcher) Start(ctx context.Context) error {
	if w.watcher != nil {
		return fmt.Errorf("watcher already started")
	}

	root := w.store.ConfigRoot()
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("failed to create config root: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.watcher = watcher

	if err := w.addTree(ctx, root, false); err != nil {
		_ = watcher.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(runCtx)

	w.logger.Info("Watching collection configurations", "root", root)
	return nil
}

// Close stops watching and waits for in-flight refreshes.
func (w *Watcher) Close() error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	<-w.done
	w.cancel = nil
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer w.stopTimers()
	defer func() { _ = w.watcher.Close() }()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// Files may land in a new directory before it is watched
			if err := w.addTree(ctx, event.Name, true); err != nil {
				w.logger.Warn("Failed to watch directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if collection, ok := w.store.CollectionForFile(event.Name); ok {
		w.logger.Debug("Configuration changed", "collection", collection, "op", event.Op.String())
		w.schedule(ctx, collection)
	}
}

// addTree watches dir and its subdirectories. With scan set, configuration
// resources already present are scheduled for refresh.
func (w *Watcher) addTree(ctx context.Context, dir string, scan bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries that vanished during the walk
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			return nil
		}
		if scan {
			if collection, ok := w.store.CollectionForFile(path); ok {
				w.schedule(ctx, collection)
			}
		}
		return nil
	})
}

// schedule refreshes a collection once no further change arrived for the
// debounce delay.
func (w *Watcher) schedule(ctx context.Context, collection string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[collection]; ok && t.Stop() {
		t.Reset(w.debounce)
		return
	}

	var t *time.Timer
	w.timers.Add(1)
	t = time.AfterFunc(w.debounce, func() {
		defer w.timers.Done()

		w.mu.Lock()
		if w.pending[collection] == t {
			delete(w.pending, collection)
		}
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if err := w.refresh(ctx, collection); err != nil {
			w.logger.Warn("Failed to refresh collection", "collection", collection, "error", err)
		}
	})
	w.pending[collection] = t
}

// stopTimers cancels pending refreshes and waits for running ones.
func (w *Watcher) stopTimers() {
	w.mu.Lock()
	for collection, t := range w.pending {
		if t.Stop() {
			w.timers.Done()
		}
		delete(w.pending, collection)
	}
	w.mu.Unlock()
	w.timers.Wait()
}

// SetLogger replaces the watcher logger.
func (w *Watcher) SetLogger(logger *slog.Logger) {
	w.logger = logger
}
