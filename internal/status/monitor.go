// Package status tracks whether the remote store can be used and provisions
// it on the way into the available state.
//
// State machine:
//
//	unavailable (initial)
//	     │ probe
//	     ▼
//	noAccount | restricted | unavailable | available | error(cause)
//
// Every probe moves to whatever the remote store reports. Entering
// available from any other state runs, in order:
//
//	EnsureZone → EnsureSubscription → full sync
//
// If provisioning fails the monitor moves to error(cause) instead and the
// sync is skipped. Non-available states are not retried; the next probe
// re-evaluates them.
package status

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/talekeeper/storysync/internal/remote"
)

// Observer is called with the old and new status after each change.
type Observer func(from, to remote.Status)

// Monitor owns the current remote status.
type Monitor struct {
	remote remote.RemoteStore
	onSync func(context.Context) error
	logger *log.Logger

	// checking serializes Check so provisioning runs once per transition.
	checking sync.Mutex

	mu        sync.Mutex
	current   remote.Status
	observers map[int]Observer
	nextID    int
}

// New creates a monitor in the unavailable state.
//
// onSync runs after the store has been provisioned on entering available;
// it may be nil. If logger is nil, a default logger writing to stderr is
// used.
func New(rs remote.RemoteStore, onSync func(context.Context) error, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.New(os.Stderr, "[status] ", log.LstdFlags)
	}
	return &Monitor{
		remote:    rs,
		onSync:    onSync,
		logger:    logger,
		current:   remote.Unavailable,
		observers: make(map[int]Observer),
	}
}

// SetSyncHook sets the function run after provisioning. It must be called
// before the monitor is shared between goroutines.
func (m *Monitor) SetSyncHook(fn func(context.Context) error) {
	m.onSync = fn
}

// Current returns the current status.
func (m *Monitor) Current() remote.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe registers an observer and returns a function that removes it.
// Observers run synchronously on the goroutine that caused the change, in
// no particular order.
func (m *Monitor) Subscribe(fn Observer) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.observers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.observers, id)
	}
}

// Check probes the remote store and applies the result.
//
// The returned status is the state after the check. The error is the sync
// hook's error when a sync ran and failed; probe and provisioning failures
// are reflected in the status instead.
func (m *Monitor) Check(ctx context.Context) (remote.Status, error) {
	m.checking.Lock()
	defer m.checking.Unlock()

	probed := m.remote.AccountStatus(ctx)

	prev := m.Current()
	if !probed.IsAvailable() || prev.IsAvailable() {
		m.transition(probed)
		return probed, nil
	}

	// Entering available: provision before announcing it.
	if err := m.provision(ctx); err != nil {
		st := remote.ErrorStatus(err)
		m.logger.Printf("WARNING: remote store reachable but provisioning failed: %v", err)
		m.transition(st)
		return st, nil
	}
	m.transition(probed)

	if m.onSync == nil {
		return probed, nil
	}
	if err := m.onSync(ctx); err != nil {
		m.logger.Printf("Sync after becoming available failed: %v", err)
		return probed, err
	}
	return probed, nil
}

func (m *Monitor) provision(ctx context.Context) error {
	created, err := m.remote.EnsureZone(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure zone: %w", err)
	}
	if created {
		m.logger.Printf("Provisioned remote zone")
	}
	if err := m.remote.EnsureSubscription(ctx); err != nil {
		return fmt.Errorf("failed to ensure subscription: %w", err)
	}
	return nil
}

// transition records st and notifies observers if it differs from the
// current status.
func (m *Monitor) transition(st remote.Status) {
	m.mu.Lock()
	prev := m.current
	if prev.Equal(st) {
		m.mu.Unlock()
		return
	}
	m.current = st
	observers := make([]Observer, 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.mu.Unlock()

	m.logger.Printf("Remote status: %s -> %s", prev, st)
	for _, fn := range observers {
		fn(prev, st)
	}
}
