// Package remote provides the client side of the multi-device record store.
//
// Records live in a single named zone. Each entity type maps to one record
// type ("Story", "ChildProfile") whose fields mirror the model attributes
// one to one. A single change subscription per account lets every device
// learn about mutations made by the others.
package remote

import (
	"context"
	"time"

	"github.com/talekeeper/storysync/internal/model"
)

// RemoteStore is the remote replica as seen by the sync engine.
//
// Implementations must be safe for concurrent use: the story and profile
// passes of a full sync call into the store at the same time.
type RemoteStore interface {
	// EnsureZone provisions the record zone.
	//
	// It is idempotent: a zone that already exists is success. The
	// returned bool is true only if this call created the zone.
	EnsureZone(ctx context.Context) (bool, error)

	// EnsureSubscription provisions the change subscription for the zone.
	//
	// Probing for the subscription and finding nothing is the expected
	// path to creating it, not an error.
	EnsureSubscription(ctx context.Context) error

	// FetchStories returns every Story record in the zone, newest first.
	// Records that cannot be decoded are skipped.
	FetchStories(ctx context.Context) ([]model.Story, error)

	// FetchProfiles returns every ChildProfile record in the zone, newest
	// first. Records that cannot be decoded are skipped.
	FetchProfiles(ctx context.Context) ([]model.ChildProfile, error)

	// SaveStory upserts a Story record.
	SaveStory(ctx context.Context, s model.Story) (model.Story, error)

	// SaveProfile upserts a ChildProfile record.
	SaveProfile(ctx context.Context, p model.ChildProfile) (model.ChildProfile, error)

	// DeleteStory removes a Story record.
	//
	// A record that does not exist is success: the desired end state
	// already holds.
	DeleteStory(ctx context.Context, id string) error

	// DeleteProfile removes a ChildProfile record. Idempotent like
	// DeleteStory.
	DeleteProfile(ctx context.Context, id string) error

	// AccountStatus probes whether the remote store is usable.
	AccountStatus(ctx context.Context) Status

	// Changes streams change signals delivered through the subscription.
	// Signals published by this store's own writes are not delivered.
	// The channel is closed when ctx is cancelled or the connection drops.
	Changes(ctx context.Context) (<-chan Change, error)
}

// Op is the kind of mutation a change signal reports.
type Op string

const (
	// OpSave reports a created or updated record.
	OpSave Op = "save"

	// OpDelete reports a deleted record.
	OpDelete Op = "delete"
)

// Change is a signal that some record in the zone changed.
//
// Signals are hints. Receivers are expected to run a full sync rather than
// trust the fields; a malformed payload still arrives as a zero Change.
type Change struct {
	RecordType string    `json:"recordType,omitempty"`
	RecordID   string    `json:"recordId,omitempty"`
	Op         Op        `json:"op,omitempty"`
	Origin     string    `json:"origin,omitempty"` // publishing store instance
	At         time.Time `json:"at"`
}
