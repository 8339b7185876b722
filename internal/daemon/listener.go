package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/talekeeper/storysync/internal/model"
	"github.com/talekeeper/storysync/internal/remote"
	syncer "github.com/talekeeper/storysync/internal/sync"
)

// ListenerConfig holds configuration for the change listener.
type ListenerConfig struct {
	// Debounce is how long a burst of signals must be quiet before the
	// sync runs
	Debounce time.Duration

	// MaxWait bounds how long a queued signal can be held back by a
	// stream of newer ones (default: 10x Debounce)
	MaxWait time.Duration

	// Resubscribe is how long to wait before subscribing again after the
	// signal stream drops
	Resubscribe time.Duration

	// Enabled reports whether sync is turned on (default: always)
	Enabled func() bool

	// Logger for listener activity
	Logger *log.Logger
}

// DefaultListenerConfig returns sensible defaults.
func DefaultListenerConfig() *ListenerConfig {
	return &ListenerConfig{
		Debounce:    500 * time.Millisecond,
		Resubscribe: 5 * time.Second,
		Enabled:     func() bool { return true },
		Logger:      log.New(os.Stderr, "[listener] ", log.LstdFlags),
	}
}

// Listener reacts to remote change signals.
type Listener struct {
	remote remote.RemoteStore
	syncer syncer.Syncer
	config *ListenerConfig

	changeQueue   map[string]queuedChange // record key -> latest signal
	firstQueued   time.Time               // when the queue last became non-empty
	changeQueueMu sync.Mutex
}

type queuedChange struct {
	change   remote.Change
	queuedAt time.Time
}

// NewListener creates a listener. A nil config uses DefaultListenerConfig.
func NewListener(rs remote.RemoteStore, s syncer.Syncer, config *ListenerConfig) *Listener {
	defaults := DefaultListenerConfig()
	if config == nil {
		config = defaults
	}
	if config.Debounce <= 0 {
		config.Debounce = defaults.Debounce
	}
	if config.MaxWait <= 0 {
		config.MaxWait = 10 * config.Debounce
	}
	if config.Resubscribe <= 0 {
		config.Resubscribe = defaults.Resubscribe
	}
	if config.Enabled == nil {
		config.Enabled = defaults.Enabled
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &Listener{
		remote:      rs,
		syncer:      s,
		config:      config,
		changeQueue: make(map[string]queuedChange),
	}
}

// Run consumes change signals until ctx is cancelled. It subscribes again
// whenever the stream drops.
func (l *Listener) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.processChangeQueue(ctx)
	}()
	defer wg.Wait()

	for {
		changes, err := l.remote.Changes(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.config.Logger.Printf("Failed to subscribe to changes: %v", err)
		} else {
			l.consume(ctx, changes)
			if ctx.Err() != nil {
				return
			}
			l.config.Logger.Println("Change stream closed")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.config.Resubscribe):
		}
	}
}

// consume queues signals until the stream closes or ctx is cancelled.
func (l *Listener) consume(ctx context.Context, changes <-chan remote.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			l.Notify(c)
		}
	}
}

// Notify queues a change signal. Signals for the same record collapse into
// the latest one.
func (l *Listener) Notify(c remote.Change) {
	if !l.config.Enabled() {
		return
	}

	l.changeQueueMu.Lock()
	defer l.changeQueueMu.Unlock()

	now := time.Now()
	if len(l.changeQueue) == 0 {
		l.firstQueued = now
	}
	key := c.RecordType + "/" + c.RecordID
	l.changeQueue[key] = queuedChange{change: c, queuedAt: now}
}

// Pending returns the number of queued signals.
func (l *Listener) Pending() int {
	l.changeQueueMu.Lock()
	defer l.changeQueueMu.Unlock()
	return len(l.changeQueue)
}

// processChangeQueue processes queued signals with debouncing.
func (l *Listener) processChangeQueue(ctx context.Context) {
	ticker := time.NewTicker(max(l.config.Debounce/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			l.processPendingChanges(ctx)
		}
	}
}

// processPendingChanges applies remote deletes and runs one full sync once
// the queue has been quiet for the debounce interval, or once the oldest
// signal has waited MaxWait.
func (l *Listener) processPendingChanges(ctx context.Context) {
	l.changeQueueMu.Lock()
	if len(l.changeQueue) == 0 {
		l.changeQueueMu.Unlock()
		return
	}
	now := time.Now()
	if now.Sub(l.firstQueued) < l.config.MaxWait {
		for _, q := range l.changeQueue {
			if now.Sub(q.queuedAt) < l.config.Debounce {
				l.changeQueueMu.Unlock()
				return
			}
		}
	}
	batch := make([]remote.Change, 0, len(l.changeQueue))
	for key, q := range l.changeQueue {
		batch = append(batch, q.change)
		delete(l.changeQueue, key)
	}
	l.changeQueueMu.Unlock()

	if !l.config.Enabled() {
		return
	}

	l.config.Logger.Printf("Processing %d change signal(s)", len(batch))
	for _, c := range batch {
		if c.Op != remote.OpDelete {
			continue
		}
		if err := l.applyDelete(ctx, c); err != nil {
			l.config.Logger.Printf("WARNING: %v", err)
		}
	}

	ctx = syncer.WithTrigger(ctx, syncer.TriggerNotification)
	if _, err := l.syncer.FullSync(ctx); err != nil {
		if errors.Is(err, syncer.ErrSyncInProgress) {
			l.config.Logger.Println("Sync already running, signal covered by it")
			return
		}
		l.config.Logger.Printf("Sync after change signal failed: %v", err)
	}
}

func (l *Listener) applyDelete(ctx context.Context, c remote.Change) error {
	typ, err := model.ParseEntityType(c.RecordType)
	if err != nil {
		return fmt.Errorf("delete signal for unknown record type %q", c.RecordType)
	}
	if c.RecordID == "" {
		return fmt.Errorf("delete signal for %s without record id", typ)
	}
	return l.syncer.ApplyRemoteDelete(ctx, typ, c.RecordID)
}
