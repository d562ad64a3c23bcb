package draft

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"resumeflow/internal/errors"
	"resumeflow/internal/types"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports drafts written or cleared by another process
type Watcher struct {
	mu sync.Mutex

	store *Store
	key   string
	path  string

	lastModTime time.Time
	present     bool

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}

	onChange func(*types.Resume)
	logger   *errors.Logger

	running bool
}

// NewWatcher creates a watcher for the draft under key. onChange receives
// the new draft, or nil when it was removed.
func NewWatcher(store *Store, key string, debounceDelay time.Duration, onChange func(*types.Resume), logger *errors.Logger) *Watcher {
	if debounceDelay == 0 {
		debounceDelay = 200 * time.Millisecond
	}
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &Watcher{
		store:         store,
		key:           key,
		path:          store.Path(key),
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		reloadChan:    make(chan struct{}, 1),
		onChange:      onChange,
		logger:        logger,
	}
}

// Start begins watching the draft directory
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("draft watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Atomic saves replace the file, so the directory is watched rather than the file.
	if err := watcher.Add(w.store.Dir()); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", w.store.Dir(), err)
	}
	w.fsWatcher = watcher

	if info, err := os.Stat(w.path); err == nil {
		w.lastModTime = info.ModTime()
		w.present = true
	}

	w.running = true
	go w.watchLoop()

	w.logger.Info("Draft watcher started", "file", w.path, "debounce_delay", w.debounceDelay)
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	close(w.stopChan)
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.running = false

	if err := w.fsWatcher.Close(); err != nil {
		w.logger.LogError(err, "Failed to close file system watcher")
		return err
	}
	w.logger.Info("Draft watcher stopped")
	return nil
}

// IsRunning returns whether the watcher is currently running
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == filepath.Base(w.path) &&
				event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.scheduleReload()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.LogError(err, "Draft watcher error")

		case <-w.reloadChan:
			w.reload()

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) reload() {
	info, err := os.Stat(w.path)
	switch {
	case err == nil:
		if w.present && !info.ModTime().After(w.lastModTime) {
			return
		}
		w.lastModTime = info.ModTime()
		w.present = true
		if w.store.wroteLast(w.path, info.ModTime()) {
			return
		}
		resume, err := w.store.Load(w.key)
		if err != nil {
			w.logger.LogError(err, "Failed to load changed draft")
			return
		}
		w.logger.Info("Draft changed outside this process", "key", w.key)
		w.onChange(resume)
	case os.IsNotExist(err):
		if !w.present {
			return
		}
		w.present = false
		w.logger.Info("Draft removed outside this process", "key", w.key)
		w.onChange(nil)
	default:
		w.logger.LogError(err, "Failed to stat draft")
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, func() {
		select {
		case w.reloadChan <- struct{}{}:
		default:
		}
	})
}
