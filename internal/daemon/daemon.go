package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/talekeeper/storysync/internal/dashboard"
	"github.com/talekeeper/storysync/internal/localstore"
	"github.com/talekeeper/storysync/internal/remote"
	"github.com/talekeeper/storysync/internal/status"
	syncer "github.com/talekeeper/storysync/internal/sync"
)

// Config holds configuration for the daemon.
type Config struct {
	// StatusInterval is how often to probe the remote status
	StatusInterval time.Duration

	// SyncInterval is how often the scheduler attempts a sync
	SyncInterval time.Duration

	// SyncBudget bounds each scheduled sync
	SyncBudget time.Duration

	// DebounceInterval is how long change signals must be quiet before
	// the listener syncs
	DebounceInterval time.Duration

	// WiFiOnly restricts scheduled syncs to WiFi
	WiFiOnly bool

	// Probe reports the network type for WiFiOnly
	Probe NetworkProbe

	// Enabled reports whether sync is turned on (default: always)
	Enabled func() bool

	// Dashboard, if set, is started and stopped with the daemon
	Dashboard *dashboard.Server

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		StatusInterval:   time.Minute,
		SyncInterval:     15 * time.Minute,
		SyncBudget:       30 * time.Second,
		DebounceInterval: 500 * time.Millisecond,
		Enabled:          func() bool { return true },
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon owns the background sync triggers.
type Daemon struct {
	monitor *status.Monitor
	local   *localstore.Store
	config  *Config

	listener  *Listener
	scheduler *Scheduler
	watcher   *localstore.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
}

// New creates a new Daemon instance.
//
// The monitor's sync hook should run a full sync on the same coordinator
// passed as s; New does not install it.
func New(monitor *status.Monitor, s syncer.Syncer, rs remote.RemoteStore, local *localstore.Store, config *Config) (*Daemon, error) {
	if monitor == nil {
		return nil, fmt.Errorf("monitor cannot be nil")
	}
	if s == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if rs == nil {
		return nil, fmt.Errorf("remote store cannot be nil")
	}
	if local == nil {
		return nil, fmt.Errorf("local store cannot be nil")
	}

	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.StatusInterval <= 0 {
		config.StatusInterval = defaults.StatusInterval
	}
	if config.Enabled == nil {
		config.Enabled = defaults.Enabled
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	watcher, err := localstore.NewWatcher(local)
	if err != nil {
		return nil, fmt.Errorf("failed to create local watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		monitor: monitor,
		local:   local,
		config:  config,
		listener: NewListener(rs, s, &ListenerConfig{
			Debounce: config.DebounceInterval,
			Enabled:  config.Enabled,
			Logger:   config.Logger,
		}),
		scheduler: NewScheduler(s, &SchedulerConfig{
			Interval: config.SyncInterval,
			Budget:   config.SyncBudget,
			Enabled:  config.Enabled,
			WiFiOnly: config.WiFiOnly,
			Probe:    config.Probe,
			Logger:   config.Logger,
		}),
		watcher: watcher,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Listener returns the daemon's change listener.
func (d *Daemon) Listener() *Listener {
	return d.listener
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Watch the data directory so edits by other processes reach the cache
// 2. Start the dashboard, if configured
// 3. Probe the remote status, provisioning and syncing if it is available
// 4. Listen for change signals, probe status and sync on a schedule
//
// This blocks until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if err := d.watcher.Start(); err != nil {
		return fmt.Errorf("failed to watch data directory: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.local.Dir())

	if d.config.Dashboard != nil {
		if err := d.config.Dashboard.Start(); err != nil {
			_ = d.watcher.Stop()
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
	}

	d.checkStatus()

	d.wg.Add(4)
	go func() {
		defer d.wg.Done()
		d.listener.Run(d.ctx)
	}()
	go func() {
		defer d.wg.Done()
		d.scheduler.Run(d.ctx)
	}()
	go d.probeStatus()
	go d.logInvalidations()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon. It is safe to call more than once.
func (d *Daemon) Stop() error {
	var err error
	d.stopOnce.Do(func() {
		d.config.Logger.Println("Stopping daemon")

		d.cancel()

		if werr := d.watcher.Stop(); werr != nil {
			d.config.Logger.Printf("Error closing watcher: %v", werr)
		}
		if d.config.Dashboard != nil {
			if derr := d.config.Dashboard.Stop(); derr != nil {
				err = derr
			}
		}

		d.wg.Wait()

		d.config.Logger.Println("Daemon stopped")
	})
	return err
}

// checkStatus probes the remote status once. A failed sync on the way into
// available is logged only.
func (d *Daemon) checkStatus() {
	ctx := syncer.WithTrigger(d.ctx, syncer.TriggerStatus)
	if _, err := d.monitor.Check(ctx); err != nil && !errors.Is(err, syncer.ErrSyncInProgress) {
		d.config.Logger.Printf("Sync on becoming available failed: %v", err)
	}
}

// probeStatus periodically re-evaluates the remote status.
func (d *Daemon) probeStatus() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.checkStatus()
		}
	}
}

// logInvalidations reports cache drops caused by other processes.
func (d *Daemon) logInvalidations() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case typ, ok := <-d.watcher.Invalidated():
			if !ok {
				return
			}
			d.config.Logger.Printf("Local %s file changed on disk, cache dropped", typ)
		}
	}
}
