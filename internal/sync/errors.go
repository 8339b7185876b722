package sync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/talekeeper/storysync/internal/model"
	"github.com/talekeeper/storysync/internal/remote"
)

// Common errors returned by the coordinator.
var (
	// ErrSyncDisabled is returned when the user has turned sync off.
	ErrSyncDisabled = errors.New("sync is disabled")

	// ErrSyncUnavailable is matched by *UnavailableError.
	ErrSyncUnavailable = errors.New("sync unavailable")

	// ErrSyncInProgress is returned when a full sync is already running.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrPartialSync is matched by *PartialSyncFailure.
	ErrPartialSync = errors.New("partial sync failure")
)

// UnavailableError reports that the remote store was not available when a
// sync was requested. No reads or writes were performed.
type UnavailableError struct {
	Status remote.Status
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("sync unavailable: remote status is %s", e.Status)
}

// Is reports whether target is ErrSyncUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrSyncUnavailable
}

// Unwrap returns the cause of an error status, if any.
func (e *UnavailableError) Unwrap() error {
	return e.Status.Cause
}

// PartialSyncFailure reports that both replicas were read but some records
// could not be pushed or pulled.
type PartialSyncFailure struct {
	Failed int
	Total  int
	Types  []model.EntityType
}

func (e *PartialSyncFailure) Error() string {
	types := make([]string, len(e.Types))
	for i, t := range e.Types {
		types[i] = t.String()
	}
	return fmt.Sprintf("partial sync failure: %d of %d records failed (%s)",
		e.Failed, e.Total, strings.Join(types, ", "))
}

// Is reports whether target is ErrPartialSync.
func (e *PartialSyncFailure) Is(target error) bool {
	return target == ErrPartialSync
}
