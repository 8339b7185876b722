package sync

import (
	"context"

	"github.com/talekeeper/storysync/internal/model"
	"github.com/talekeeper/storysync/internal/remote"
)

// Syncer is the part of the coordinator that background triggers use.
type Syncer interface {
	// FullSync reconciles every entity type between the two replicas.
	//
	// Returns ErrSyncDisabled or an error matching ErrSyncUnavailable
	// without touching either replica when sync cannot run. Returns an
	// error matching ErrPartialSync when some records failed.
	//
	// Example:
	//   res, err := syncer.FullSync(ctx)
	FullSync(ctx context.Context) (Result, error)

	// ApplyRemoteDelete removes a record locally after the remote store
	// reported it deleted. A record that is already gone is success.
	//
	// Example:
	//   err := syncer.ApplyRemoteDelete(ctx, model.TypeStory, "bd-xyz")
	ApplyRemoteDelete(ctx context.Context, typ model.EntityType, id string) error
}

// StatusSource reports the current remote availability.
type StatusSource interface {
	Current() remote.Status
}

// StatusFunc adapts a function to StatusSource.
type StatusFunc func() remote.Status

// Current implements StatusSource.
func (f StatusFunc) Current() remote.Status {
	return f()
}

// Reporter is told about every full sync that ran, successful or not.
// Syncs rejected up front (disabled, unavailable, in progress) are not
// reported.
type Reporter interface {
	SyncFinished(ctx context.Context, res Result, err error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, res Result, err error)

// SyncFinished implements Reporter.
func (f ReporterFunc) SyncFinished(ctx context.Context, res Result, err error) {
	f(ctx, res, err)
}
