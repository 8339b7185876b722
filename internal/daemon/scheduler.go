package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	syncer "github.com/talekeeper/storysync/internal/sync"
)

// ErrSkipped is returned by RunOnce when the attempt was not made.
var ErrSkipped = errors.New("scheduled sync skipped")

// SchedulerConfig holds configuration for periodic background sync.
type SchedulerConfig struct {
	// Interval between attempts
	Interval time.Duration

	// Budget is the most time one attempt may take
	Budget time.Duration

	// Enabled reports whether sync is turned on (default: always)
	Enabled func() bool

	// WiFiOnly skips attempts unless Probe reports WiFi
	WiFiOnly bool

	// Probe reports the network type (default: InterfaceProbe)
	Probe NetworkProbe

	// Logger for scheduler activity
	Logger *log.Logger
}

// DefaultSchedulerConfig returns sensible defaults.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Interval: 15 * time.Minute,
		Budget:   30 * time.Second,
		Enabled:  func() bool { return true },
		Probe:    InterfaceProbe{},
		Logger:   log.New(os.Stderr, "[scheduler] ", log.LstdFlags),
	}
}

// Scheduler runs a full sync periodically.
type Scheduler struct {
	syncer syncer.Syncer
	config *SchedulerConfig
}

// NewScheduler creates a scheduler. A nil config uses
// DefaultSchedulerConfig.
func NewScheduler(s syncer.Syncer, config *SchedulerConfig) *Scheduler {
	defaults := DefaultSchedulerConfig()
	if config == nil {
		config = defaults
	}
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Budget <= 0 {
		config.Budget = defaults.Budget
	}
	if config.Enabled == nil {
		config.Enabled = defaults.Enabled
	}
	if config.Probe == nil {
		config.Probe = defaults.Probe
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	return &Scheduler{syncer: s, config: config}
}

// Run attempts a sync every interval until ctx is cancelled. Failures are
// logged; the next tick is the retry.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrSkipped) {
				s.config.Logger.Printf("Scheduled sync failed: %v", err)
			}
		}
	}
}

// RunOnce makes one budgeted attempt.
//
// Returns ErrSkipped when sync is disabled or the network does not qualify.
// An attempt that runs past the budget is cancelled and returns an error
// matching context.DeadlineExceeded.
func (s *Scheduler) RunOnce(ctx context.Context) (syncer.Result, error) {
	if !s.config.Enabled() {
		return syncer.Result{}, fmt.Errorf("%w: sync disabled", ErrSkipped)
	}
	if s.config.WiFiOnly && !s.config.Probe.OnWiFi() {
		return syncer.Result{}, fmt.Errorf("%w: not on WiFi", ErrSkipped)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Budget)
	defer cancel()

	res, err := s.syncer.FullSync(syncer.WithTrigger(ctx, syncer.TriggerSchedule))
	if err != nil && ctx.Err() == context.DeadlineExceeded && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return res, fmt.Errorf("sync exceeded budget of %s: %w", s.config.Budget, err)
	}
	return res, err
}
