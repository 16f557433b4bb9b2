package credentials

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
)

const debounceInterval = 100 * time.Millisecond

// Watcher signals when the credential file is written or recreated, for
// example after `claude /login`.
type Watcher struct {
	watcher       *fsnotify.Watcher
	debounceTimer *time.Timer
	changes       chan struct{}
	stopChan      chan struct{}
	path          string
	mu            sync.Mutex
	closeOnce     sync.Once
}

// NewWatcher watches the directory holding path. The directory must exist.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory so atomic renames are seen.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		if closeErr := fw.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to watch credentials directory: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		path:     path,
		changes:  make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
	go w.watchLoop()
	return w, nil
}

// Changes delivers one value per debounced burst of file changes.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.mu.Lock()
				if w.debounceTimer != nil {
					w.debounceTimer.Stop()
				}
				w.debounceTimer = time.AfterFunc(debounceInterval, w.notify)
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("credentials watcher error", "error", err)

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stopChan)
		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}
