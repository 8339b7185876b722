// Package sync reconciles the on-device store with the remote record store.
//
// Overview
//
// A full sync is the only reconciliation mechanism. For each entity type it
// reads both replicas in full, indexes them by id and resolves every id with
// last-writer-wins on createdAt:
//
//	local only            → push to remote
//	remote only           → pull to local
//	both, local newer     → push
//	both, remote newer    → pull
//	both, same createdAt  → no-op (even if other fields differ)
//
// Stories and child profiles are reconciled concurrently and independently.
//
// Architecture
//
//	localstore.Store                     remote.RemoteStore
//	 ├── stories.json       ←─ pull ──    Story records
//	 └── child_profiles.json ── push ─→   ChildProfile records
//	                    ↖            ↗
//	                     Coordinator
//	                          ↓
//	                 Reporters (journal, dashboard)
//
// Usage
//
//	coord, err := sync.New(sync.Config{
//	    Local:   store,
//	    Remote:  rs,
//	    Status:  monitor,
//	    Enabled: func() bool { return cfg.Sync.Enabled },
//	})
//	if err != nil {
//	    return err
//	}
//
//	res, err := coord.FullSync(ctx)
//	switch {
//	case errors.Is(err, sync.ErrSyncUnavailable):
//	    // offline, signed out or restricted; nothing was touched
//	case errors.Is(err, sync.ErrPartialSync):
//	    // some records failed; the rest were reconciled
//	}
//
// Deletes
//
// There are no tombstones. A delete reaches the other replica only through
// the paired delete helpers (DeleteStory, DeleteProfile) at the moment it
// happens, or through ApplyRemoteDelete when a change signal reports one. A
// record deleted on one side while the other side could not be reached will
// come back on the next full sync.
//
// Error Handling
//
//   - Sync disabled or remote not available: fails fast, no reads or writes
//   - A fetch failure aborts that entity type's pass
//   - A push or pull failure is logged and counted; the pass continues
//   - Any counted failure turns the result into a *PartialSyncFailure
//   - When both passes fail, only the first error is returned
//
// Concurrency
//
// A Coordinator runs at most one full sync at a time. A trigger that arrives
// while a sync is running gets ErrSyncInProgress instead of queueing; the
// running sync already covers whatever prompted it.
package sync
