// Package daemon runs the background side of sync: everything that starts a
// full sync without the user asking for one.
//
// # Architecture
//
// The daemon consists of several components:
//
//   - Listener: turns remote change signals into full syncs, debounced
//   - Scheduler: runs a full sync every interval under a time budget
//   - Daemon: wires both to the status monitor, the local file watcher and
//     the dashboard, and owns their lifecycle
//
// # Triggers
//
//	a. startup / status probe    status.Monitor.Check → provision → FullSync
//	b. remote change signal      Listener → ApplyRemoteDelete → FullSync
//	c. periodic background sync  Scheduler → FullSync (budgeted)
//
// Every trigger funnels into the same coordinator, which runs one full sync
// at a time. A trigger that arrives during a sync is dropped with
// sync.ErrSyncInProgress; the running sync reads both replicas in full, so
// nothing is missed except what changes after it read them, and that change
// produces its own signal.
//
// # Change Signals
//
// Signals are hints. Whatever a signal says, the listener answers with a
// complete reconciliation. The one exception is a delete: a full sync
// cannot see deletes (there are no tombstones), so a delete signal removes
// the local copy first.
//
// # Error Handling
//
// Failures from background triggers are logged and journaled, never
// surfaced. The next trigger is the retry.
//
// # Usage
//
//	d, err := daemon.New(monitor, coord, remoteStore, localStore, &daemon.Config{
//	    SyncInterval: 15 * time.Minute,
//	    SyncBudget:   30 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	if err := d.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package daemon
