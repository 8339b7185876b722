package sync

import (
	"context"
	"time"

	"github.com/talekeeper/storysync/internal/model"
)

// Trigger names what started a sync.
type Trigger string

const (
	TriggerManual       Trigger = "manual"
	TriggerStatus       Trigger = "status"
	TriggerNotification Trigger = "notification"
	TriggerSchedule     Trigger = "schedule"
)

type triggerKey struct{}

// WithTrigger tags ctx so the resulting Result records what started the sync.
func WithTrigger(ctx context.Context, t Trigger) context.Context {
	return context.WithValue(ctx, triggerKey{}, t)
}

// TriggerFrom returns the trigger tagged on ctx, or TriggerManual.
func TriggerFrom(ctx context.Context) Trigger {
	if t, ok := ctx.Value(triggerKey{}).(Trigger); ok {
		return t
	}
	return TriggerManual
}

// TypeResult counts what one entity type's pass did.
type TypeResult struct {
	Type      model.EntityType
	Pushed    int
	Pulled    int
	Unchanged int
	Failed    int
	Duration  time.Duration
}

// Total is the number of distinct ids seen across both replicas.
func (r TypeResult) Total() int {
	return r.Pushed + r.Pulled + r.Unchanged + r.Failed
}

// Result describes one full sync.
type Result struct {
	RunID     string
	Trigger   Trigger
	StartedAt time.Time
	Duration  time.Duration

	Stories  TypeResult
	Profiles TypeResult
}

// Pushed is the number of records written to the remote store.
func (r Result) Pushed() int { return r.Stories.Pushed + r.Profiles.Pushed }

// Pulled is the number of records written to the local store.
func (r Result) Pulled() int { return r.Stories.Pulled + r.Profiles.Pulled }

// Unchanged is the number of records already in agreement.
func (r Result) Unchanged() int { return r.Stories.Unchanged + r.Profiles.Unchanged }

// Failed is the number of records that could not be pushed or pulled.
func (r Result) Failed() int { return r.Stories.Failed + r.Profiles.Failed }

// Total is the number of distinct records seen.
func (r Result) Total() int { return r.Stories.Total() + r.Profiles.Total() }
