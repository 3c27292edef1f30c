package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/webedge/internal/observability"
)

// SiteCallback is called with every successfully reloaded site.
type SiteCallback func(*Site)

// ErrorCallback is called when a reload fails.
type ErrorCallback func(error)

// Watcher reloads a site file when it changes on disk.
//
// Bursts of filesystem events are coalesced by a debounce timer, and a
// reload whose file content is byte-identical to the current site is
// skipped. A reload that fails to load or validate is reported to the
// error callback and the last good site stays current.
type Watcher struct {
	path          string
	fs            *fsnotify.Watcher
	callback      SiteCallback
	errorCallback ErrorCallback
	logger        observability.Logger
	loader        *Loader
	debounceDelay time.Duration

	mu       sync.RWMutex
	current  *Site
	digest   [sha256.Size]byte
	running  bool
	stopOnce sync.Once

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// WatcherOption is a functional option for configuring the watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the quiet period after the last file event
// before a reload is attempted.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = delay
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithLoader sets the loader used to read the site file.
func WithLoader(loader *Loader) WatcherOption {
	return func(w *Watcher) {
		w.loader = loader
	}
}

// WithErrorCallback sets the error callback for the watcher.
func WithErrorCallback(callback ErrorCallback) WatcherOption {
	return func(w *Watcher) {
		w.errorCallback = callback
	}
}

// NewWatcher creates a watcher for the site file at path.
func NewWatcher(path string, callback SiteCallback, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		path:          absPath,
		fs:            fsw,
		callback:      callback,
		debounceDelay: 100 * time.Millisecond,
		logger:        observability.NopLogger(),
		loader:        NewLoader(),
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start loads the site once and begins watching for changes. The initial
// load does not invoke the callback.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	site, digest, err := w.read()
	if err != nil {
		return err
	}

	// The directory is watched so that editors replacing the file by
	// rename are still seen.
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.current, w.digest = site, digest
	w.running = true

	w.logger.Info("started watching site configuration", observability.Path(w.path))

	go w.loop(ctx)
	return nil
}

// Stop stops watching and releases the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if !running {
		return nil
	}

	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.stoppedCh
	return w.fs.Close()
}

// LastSite returns the last successfully loaded site.
func (w *Watcher) LastSite() *Site {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// ForceReload reloads the site immediately, even when the file content
// is unchanged, and invokes the callback on success.
func (w *Watcher) ForceReload() error {
	site, digest, err := w.read()
	if err != nil {
		return err
	}
	w.publish(site, digest)
	return nil
}

// read loads and validates the site file, returning it with the digest
// of the raw bytes.
func (w *Watcher) read() (*Site, [sha256.Size]byte, error) {
	var digest [sha256.Size]byte

	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, digest, fmt.Errorf("failed to read config file %s: %w", w.path, err)
	}
	digest = sha256.Sum256(data)

	site, err := w.loader.parse(data)
	if err != nil {
		return nil, digest, err
	}
	if err := ValidateSite(site); err != nil {
		return nil, digest, err
	}
	return site, digest, nil
}

func (w *Watcher) publish(site *Site, digest [sha256.Size]byte) {
	w.mu.Lock()
	w.current, w.digest = site, digest
	w.mu.Unlock()

	w.logger.Info("site configuration reloaded", observability.Site(site.Metadata.Name))

	if w.callback != nil {
		w.callback(site)
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.stoppedCh)

	// Stopped timers never deliver a stale tick (Go 1.23 timer semantics).
	debounce := time.NewTimer(w.debounceDelay)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped due to context cancellation")
			return

		case <-w.stopCh:
			w.logger.Info("config watcher stopped")
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				debounce.Reset(w.debounceDelay)
			}

		case <-debounce.C:
			w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", observability.Error(err))
			w.fail(err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}

	w.logger.Debug("site file changed",
		observability.Path(event.Name),
		observability.String("op", event.Op.String()),
	)
	return true
}

func (w *Watcher) reload() {
	w.logger.Info("reloading site configuration", observability.Path(w.path))

	site, digest, err := w.read()
	if err != nil {
		w.logger.Error("site configuration reload failed, keeping previous",
			observability.Error(err),
		)
		w.fail(err)
		return
	}

	w.mu.RLock()
	unchanged := digest == w.digest
	w.mu.RUnlock()
	if unchanged {
		w.logger.Debug("site file content unchanged, skipping reload", observability.Path(w.path))
		return
	}

	w.publish(site, digest)
}

func (w *Watcher) fail(err error) {
	if w.errorCallback != nil {
		w.errorCallback(err)
	}
}
