package daemon

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/talekeeper/storysync/internal/localstore"
	"github.com/talekeeper/storysync/internal/model"
	"github.com/talekeeper/storysync/internal/remote"
	"github.com/talekeeper/storysync/internal/remote/remotetest"
	"github.com/talekeeper/storysync/internal/status"
	syncer "github.com/talekeeper/storysync/internal/sync"
)

var quietLogger = log.New(io.Discard, "", 0)

// fakeSyncer records calls instead of syncing.
type fakeSyncer struct {
	mu       sync.Mutex
	syncs    []syncer.Trigger
	deletes  []string
	block    bool // FullSync waits for ctx
	syncErr  error
	syncedCh chan struct{}
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{syncedCh: make(chan struct{}, 16)}
}

func (f *fakeSyncer) FullSync(ctx context.Context) (syncer.Result, error) {
	f.mu.Lock()
	f.syncs = append(f.syncs, syncer.TriggerFrom(ctx))
	block, err := f.block, f.syncErr
	f.mu.Unlock()

	defer func() { f.syncedCh <- struct{}{} }()
	if block {
		<-ctx.Done()
		return syncer.Result{}, ctx.Err()
	}
	return syncer.Result{}, err
}

func (f *fakeSyncer) ApplyRemoteDelete(ctx context.Context, typ model.EntityType, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, string(typ)+"/"+id)
	return nil
}

func (f *fakeSyncer) syncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.syncs)
}

func (f *fakeSyncer) triggers() []syncer.Trigger {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]syncer.Trigger(nil), f.syncs...)
}

func (f *fakeSyncer) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

func waitForSync(t *testing.T, f *fakeSyncer) {
	t.Helper()
	select {
	case <-f.syncedCh:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for sync")
	}
}

func TestListener_DebouncesBurstIntoOneSync(t *testing.T) {
	rs := remotetest.New()
	fs := newFakeSyncer()
	l := NewListener(rs, fs, &ListenerConfig{Debounce: 50 * time.Millisecond, Logger: quietLogger})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		rs.Emit(remote.Change{RecordType: "Story", RecordID: "s1", Op: remote.OpSave})
	}
	rs.Emit(remote.Change{RecordType: "ChildProfile", RecordID: "p1", Op: remote.OpSave})

	waitForSync(t, fs)
	time.Sleep(150 * time.Millisecond)

	if n := fs.syncCount(); n != 1 {
		t.Errorf("expected 1 sync for the burst, got %d", n)
	}
	if got := fs.triggers(); len(got) == 0 || got[0] != syncer.TriggerNotification {
		t.Errorf("expected notification trigger, got %v", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListener_DeleteSignalAppliedBeforeSync(t *testing.T) {
	rs := remotetest.New()
	fs := newFakeSyncer()
	l := NewListener(rs, fs, &ListenerConfig{Debounce: time.Millisecond, Logger: quietLogger})

	l.Notify(remote.Change{RecordType: "Story", RecordID: "gone", Op: remote.OpDelete})
	l.Notify(remote.Change{RecordType: "ChildProfile", RecordID: "kept", Op: remote.OpSave})
	time.Sleep(5 * time.Millisecond)

	l.processPendingChanges(context.Background())

	if got := fs.deleted(); len(got) != 1 || got[0] != "story/gone" {
		t.Errorf("expected story/gone deleted, got %v", got)
	}
	if n := fs.syncCount(); n != 1 {
		t.Errorf("expected 1 sync, got %d", n)
	}
	if n := l.Pending(); n != 0 {
		t.Errorf("expected empty queue, got %d", n)
	}
}

func TestListener_MalformedSignalStillSyncs(t *testing.T) {
	fs := newFakeSyncer()
	l := NewListener(remotetest.New(), fs, &ListenerConfig{Debounce: time.Millisecond, Logger: quietLogger})

	l.Notify(remote.Change{})
	l.Notify(remote.Change{Op: remote.OpDelete, RecordType: "Song", RecordID: "x"})
	time.Sleep(5 * time.Millisecond)
	l.processPendingChanges(context.Background())

	if n := fs.syncCount(); n != 1 {
		t.Errorf("expected 1 sync, got %d", n)
	}
	if got := fs.deleted(); len(got) != 0 {
		t.Errorf("expected no deletes, got %v", got)
	}
}

func TestListener_WaitsForQuietPeriod(t *testing.T) {
	fs := newFakeSyncer()
	l := NewListener(remotetest.New(), fs, &ListenerConfig{Debounce: time.Hour, Logger: quietLogger})

	l.Notify(remote.Change{RecordType: "Story", RecordID: "s1", Op: remote.OpSave})
	l.processPendingChanges(context.Background())

	if n := fs.syncCount(); n != 0 {
		t.Errorf("expected no sync before the quiet period, got %d", n)
	}
	if n := l.Pending(); n != 1 {
		t.Errorf("expected signal to stay queued, got %d", n)
	}
}

func TestListener_SteadyStreamFlushesAfterMaxWait(t *testing.T) {
	fs := newFakeSyncer()
	l := NewListener(remotetest.New(), fs, &ListenerConfig{
		Debounce: time.Hour,
		MaxWait:  40 * time.Millisecond,
		Logger:   quietLogger,
	})

	l.Notify(remote.Change{RecordType: "Story", RecordID: "s1", Op: remote.OpSave})
	l.processPendingChanges(context.Background())
	if n := fs.syncCount(); n != 0 {
		t.Fatalf("expected no sync before the max wait, got %d", n)
	}

	time.Sleep(50 * time.Millisecond)
	// A fresh signal keeps the queue from ever being quiet.
	l.Notify(remote.Change{RecordType: "Story", RecordID: "s2", Op: remote.OpSave})
	l.processPendingChanges(context.Background())

	if n := fs.syncCount(); n != 1 {
		t.Fatalf("expected 1 sync once the oldest signal waited past the max wait, got %d", n)
	}
	if n := l.Pending(); n != 0 {
		t.Errorf("expected the whole queue flushed, got %d", n)
	}

	// The wait starts over for the next batch.
	l.Notify(remote.Change{RecordType: "Story", RecordID: "s3", Op: remote.OpSave})
	l.processPendingChanges(context.Background())
	if n := fs.syncCount(); n != 1 {
		t.Errorf("expected the next batch to wait again, got %d syncs", n)
	}
}

func TestListener_DefaultMaxWait(t *testing.T) {
	l := NewListener(remotetest.New(), newFakeSyncer(), &ListenerConfig{Debounce: 200 * time.Millisecond, Logger: quietLogger})
	if l.config.MaxWait != 2*time.Second {
		t.Errorf("MaxWait = %s, want 10x the debounce", l.config.MaxWait)
	}
}

func TestListener_DisabledDropsSignals(t *testing.T) {
	fs := newFakeSyncer()
	l := NewListener(remotetest.New(), fs, &ListenerConfig{
		Debounce: time.Millisecond,
		Enabled:  func() bool { return false },
		Logger:   quietLogger,
	})

	l.Notify(remote.Change{RecordType: "Story", RecordID: "s1", Op: remote.OpDelete})
	time.Sleep(5 * time.Millisecond)
	l.processPendingChanges(context.Background())

	if n := fs.syncCount(); n != 0 {
		t.Errorf("expected no sync while disabled, got %d", n)
	}
	if got := fs.deleted(); len(got) != 0 {
		t.Errorf("expected no deletes while disabled, got %v", got)
	}
}

func TestScheduler_RunOnce(t *testing.T) {
	tests := []struct {
		name      string
		enabled   bool
		wifiOnly  bool
		onWiFi    bool
		wantSkip  bool
		wantSyncs int
	}{
		{"enabled", true, false, false, false, 1},
		{"disabled", false, false, true, true, 0},
		{"wifi only on wifi", true, true, true, false, 1},
		{"wifi only on cellular", true, true, false, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeSyncer()
			s := NewScheduler(fs, &SchedulerConfig{
				Interval: time.Hour,
				Budget:   time.Second,
				Enabled:  func() bool { return tt.enabled },
				WiFiOnly: tt.wifiOnly,
				Probe:    ProbeFunc(func() bool { return tt.onWiFi }),
				Logger:   quietLogger,
			})

			_, err := s.RunOnce(context.Background())
			if got := errors.Is(err, ErrSkipped); got != tt.wantSkip {
				t.Errorf("skipped = %v, want %v (err %v)", got, tt.wantSkip, err)
			}
			if n := fs.syncCount(); n != tt.wantSyncs {
				t.Errorf("expected %d syncs, got %d", tt.wantSyncs, n)
			}
			if tt.wantSyncs > 0 && fs.triggers()[0] != syncer.TriggerSchedule {
				t.Errorf("expected schedule trigger, got %v", fs.triggers())
			}
		})
	}
}

func TestScheduler_BudgetExceeded(t *testing.T) {
	fs := newFakeSyncer()
	fs.block = true
	s := NewScheduler(fs, &SchedulerConfig{
		Interval: time.Hour,
		Budget:   20 * time.Millisecond,
		Logger:   quietLogger,
	})

	start := time.Now()
	_, err := s.RunOnce(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("attempt ran for %s, budget was 20ms", elapsed)
	}
}

func TestScheduler_RunTicks(t *testing.T) {
	fs := newFakeSyncer()
	s := NewScheduler(fs, &SchedulerConfig{
		Interval: 20 * time.Millisecond,
		Budget:   time.Second,
		Logger:   quietLogger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitForSync(t, fs)
	waitForSync(t, fs)
}

func TestInterfaceProbe_SysfsWireless(t *testing.T) {
	dir := t.TempDir()
	p := InterfaceProbe{SysClassNet: dir}

	if p.isWireless("eth0") {
		t.Error("eth0 should not be wireless")
	}
	if !p.isWireless("wlan0") {
		t.Error("wlan0 should be wireless by name")
	}
}

func setupDaemon(t *testing.T, rs *remotetest.Store, fs *fakeSyncer) *Daemon {
	t.Helper()

	local, err := localstore.Open(t.TempDir(), quietLogger)
	if err != nil {
		t.Fatalf("Failed to open local store: %v", err)
	}
	monitor := status.New(rs, func(ctx context.Context) error {
		_, err := fs.FullSync(ctx)
		return err
	}, quietLogger)

	d, err := New(monitor, fs, rs, local, &Config{
		StatusInterval:   time.Hour,
		SyncInterval:     time.Hour,
		SyncBudget:       time.Second,
		DebounceInterval: 10 * time.Millisecond,
		Logger:           quietLogger,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return d
}

func TestNew_Validation(t *testing.T) {
	rs := remotetest.New()
	fs := newFakeSyncer()
	local, err := localstore.Open(t.TempDir(), quietLogger)
	if err != nil {
		t.Fatalf("Failed to open local store: %v", err)
	}
	monitor := status.New(rs, nil, quietLogger)

	tests := []struct {
		name    string
		monitor *status.Monitor
		syncer  syncer.Syncer
		remote  remote.RemoteStore
		local   *localstore.Store
	}{
		{"nil monitor", nil, fs, rs, local},
		{"nil syncer", monitor, nil, rs, local},
		{"nil remote", monitor, fs, nil, local},
		{"nil local", monitor, fs, rs, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.monitor, tt.syncer, tt.remote, tt.local, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDaemon_StartupSyncAndSignals(t *testing.T) {
	rs := remotetest.New()
	fs := newFakeSyncer()
	d := setupDaemon(t, rs, fs)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	// Trigger a: entering available on startup.
	waitForSync(t, fs)
	if !rs.HasSubscription() {
		t.Error("expected subscription provisioned on startup")
	}

	// Trigger b: a change signal.
	rs.Emit(remote.Change{RecordType: "Story", RecordID: "s1", Op: remote.OpSave})
	waitForSync(t, fs)

	got := fs.triggers()
	if len(got) != 2 || got[0] != syncer.TriggerStatus || got[1] != syncer.TriggerNotification {
		t.Errorf("unexpected triggers: %v", got)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestDaemon_OfflineStartupDoesNotSync(t *testing.T) {
	rs := remotetest.New()
	rs.SetStatus(remote.Status{State: remote.StateNoAccount})
	fs := newFakeSyncer()
	d := setupDaemon(t, rs, fs)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	if n := fs.syncCount(); n != 0 {
		t.Errorf("expected no sync while signed out, got %d", n)
	}

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
	cancel()

	// A second Stop is harmless.
	if err := d.Stop(); err != nil {
		t.Errorf("second Stop() failed: %v", err)
	}
}
