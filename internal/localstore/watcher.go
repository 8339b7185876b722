package localstore

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/talekeeper/storysync/internal/model"
)

// Watcher keeps the store's caches honest when another process rewrites a
// collection file. It watches the data directory with fsnotify and drops the
// cache of any collection whose file no longer matches what was loaded.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher

	invalidated chan model.EntityType
	done        chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
}

// NewWatcher creates a watcher for the store. It must be started with Start.
func NewWatcher(store *Store) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		store:       store,
		watcher:     watcher,
		invalidated: make(chan model.EntityType, 16),
		done:        make(chan struct{}),
	}, nil
}

// Start begins watching the data directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	if err := w.watcher.Add(w.store.dir); err != nil {
		return fmt.Errorf("failed to watch data directory %s: %w", w.store.dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.wg.Wait()
	close(w.invalidated)

	return nil
}

// Invalidated emits the entity type of every collection whose cache was
// dropped. Sends never block; if nobody reads, notifications are discarded.
func (w *Watcher) Invalidated() <-chan model.EntityType {
	return w.invalidated
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Chmod-only events never change content
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			typ, dropped := w.store.refresh(filepath.Base(event.Name))
			if !dropped {
				continue
			}

			w.store.logger.Printf("Collection %s changed on disk, cache invalidated", typ)
			select {
			case w.invalidated <- typ:
			default:
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.store.logger.Printf("Watcher error: %v", err)
		}
	}
}
