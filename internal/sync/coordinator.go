package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/talekeeper/storysync/internal/localstore"
	"github.com/talekeeper/storysync/internal/model"
	"github.com/talekeeper/storysync/internal/remote"
)

// Config wires a Coordinator to its collaborators.
type Config struct {
	// Local is the on-device replica (required)
	Local *localstore.Store

	// Remote is the remote replica (required)
	Remote remote.RemoteStore

	// Status reports remote availability (required)
	Status StatusSource

	// Enabled reports whether the user has sync turned on (default: always)
	Enabled func() bool

	// Logger for sync activity (default: stderr logger)
	Logger *log.Logger

	// Reporters are told about every full sync that ran
	Reporters []Reporter
}

// Coordinator runs full syncs and paired deletes. It is constructed once
// and shared by every trigger.
type Coordinator struct {
	local     *localstore.Store
	remote    remote.RemoteStore
	status    StatusSource
	enabled   func() bool
	logger    *log.Logger
	reporters []Reporter

	running gosync.Mutex

	mu   gosync.Mutex
	last *Result
}

var _ Syncer = (*Coordinator)(nil)

// New creates a Coordinator.
//
// If cfg.Logger is nil, a default logger writing to stderr is used.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Local == nil {
		return nil, fmt.Errorf("local store is required")
	}
	if cfg.Remote == nil {
		return nil, fmt.Errorf("remote store is required")
	}
	if cfg.Status == nil {
		return nil, fmt.Errorf("status source is required")
	}
	if cfg.Enabled == nil {
		cfg.Enabled = func() bool { return true }
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	return &Coordinator{
		local:     cfg.Local,
		remote:    cfg.Remote,
		status:    cfg.Status,
		enabled:   cfg.Enabled,
		logger:    cfg.Logger,
		reporters: cfg.Reporters,
	}, nil
}

// AddReporter registers another reporter. It must be called before the
// coordinator is shared between goroutines.
func (c *Coordinator) AddReporter(r Reporter) {
	c.reporters = append(c.reporters, r)
}

// LastResult returns the result of the most recent full sync that ran.
func (c *Coordinator) LastResult() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Result{}, false
	}
	return *c.last, true
}

// ready checks the preconditions shared by full syncs and remote deletes.
func (c *Coordinator) ready() error {
	if !c.enabled() {
		return ErrSyncDisabled
	}
	if st := c.status.Current(); !st.IsAvailable() {
		return &UnavailableError{Status: st}
	}
	return nil
}

// FullSync implements Syncer.FullSync.
func (c *Coordinator) FullSync(ctx context.Context) (Result, error) {
	if err := c.ready(); err != nil {
		return Result{}, err
	}
	if !c.running.TryLock() {
		return Result{}, ErrSyncInProgress
	}
	defer c.running.Unlock()

	res := Result{
		RunID:     uuid.NewString(),
		Trigger:   TriggerFrom(ctx),
		StartedAt: time.Now(),
	}
	c.logger.Printf("Starting full sync %s (trigger=%s)", res.RunID, res.Trigger)

	// Both passes always run to completion; Wait keeps the first error.
	var g errgroup.Group
	g.Go(func() error {
		r, err := syncType(ctx, c.logger, replica[model.Story]{
			typ:    model.TypeStory,
			local:  c.local.Stories,
			fetch:  c.remote.FetchStories,
			upload: c.remote.SaveStory,
		})
		res.Stories = r
		if err != nil {
			return fmt.Errorf("failed to sync stories: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		r, err := syncType(ctx, c.logger, replica[model.ChildProfile]{
			typ:    model.TypeChildProfile,
			local:  c.local.Profiles,
			fetch:  c.remote.FetchProfiles,
			upload: c.remote.SaveProfile,
		})
		res.Profiles = r
		if err != nil {
			return fmt.Errorf("failed to sync child profiles: %w", err)
		}
		return nil
	})
	err := g.Wait()
	res.Duration = time.Since(res.StartedAt)

	if err == nil && res.Failed() > 0 {
		partial := &PartialSyncFailure{Failed: res.Failed(), Total: res.Total()}
		for _, tr := range []TypeResult{res.Stories, res.Profiles} {
			if tr.Failed > 0 {
				partial.Types = append(partial.Types, tr.Type)
			}
		}
		err = partial
	}

	if err != nil {
		c.logger.Printf("Full sync %s failed: %v", res.RunID, err)
	} else {
		c.logger.Printf("Full sync %s complete: pushed=%d, pulled=%d, unchanged=%d (%s)",
			res.RunID, res.Pushed(), res.Pulled(), res.Unchanged(), res.Duration.Round(time.Millisecond))
	}

	c.mu.Lock()
	c.last = &res
	c.mu.Unlock()

	for _, r := range c.reporters {
		r.SyncFinished(ctx, res, err)
	}
	return res, err
}

// replica binds one entity type's two sides together.
type replica[T model.Record] struct {
	typ    model.EntityType
	local  *localstore.Collection[T]
	fetch  func(context.Context) ([]T, error)
	upload func(context.Context, T) (T, error)
}

// syncType reconciles one entity type. Fetch failures abort the pass;
// push and pull failures are logged and counted.
func syncType[T model.Record](ctx context.Context, logger *log.Logger, r replica[T]) (TypeResult, error) {
	start := time.Now()
	res := TypeResult{Type: r.typ}

	var (
		localItems  []T
		remoteItems []T
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := r.local.All(gctx)
		if err != nil {
			return fmt.Errorf("failed to read local %s records: %w", r.typ, err)
		}
		localItems = items
		return nil
	})
	g.Go(func() error {
		items, err := r.fetch(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch remote %s records: %w", r.typ, err)
		}
		remoteItems = items
		return nil
	})
	if err := g.Wait(); err != nil {
		res.Duration = time.Since(start)
		return res, err
	}

	remoteByID := make(map[string]T, len(remoteItems))
	for _, item := range remoteItems {
		remoteByID[item.RecordID()] = item
	}
	localByID := make(map[string]T, len(localItems))
	for _, item := range localItems {
		localByID[item.RecordID()] = item
	}

	push := func(item T) {
		if _, err := r.upload(ctx, item); err != nil {
			logger.Printf("WARNING: failed to push %s %s: %v", r.typ, item.RecordID(), err)
			res.Failed++
			return
		}
		res.Pushed++
	}
	pull := func(item T) {
		if _, err := r.local.Save(ctx, item); err != nil {
			logger.Printf("WARNING: failed to pull %s %s: %v", r.typ, item.RecordID(), err)
			res.Failed++
			return
		}
		res.Pulled++
	}

	for _, l := range localItems {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		rem, ok := remoteByID[l.RecordID()]
		switch {
		case !ok:
			push(l)
		case l.Timestamp().After(rem.Timestamp()):
			push(l)
		case rem.Timestamp().After(l.Timestamp()):
			pull(rem)
		default:
			// Same createdAt: left alone even if other fields differ.
			res.Unchanged++
		}
	}
	for _, rem := range remoteItems {
		if _, ok := localByID[rem.RecordID()]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		pull(rem)
	}

	res.Duration = time.Since(start)
	return res, nil
}

// SaveStory saves a story locally, then pushes it when sync can run.
// A failed push is logged; the next full sync retries it.
func (c *Coordinator) SaveStory(ctx context.Context, s model.Story) (model.Story, error) {
	return saveThrough(ctx, c, c.local.Stories, c.remote.SaveStory, s)
}

// SaveProfile saves a child profile locally, then pushes it when sync can run.
func (c *Coordinator) SaveProfile(ctx context.Context, p model.ChildProfile) (model.ChildProfile, error) {
	return saveThrough(ctx, c, c.local.Profiles, c.remote.SaveProfile, p)
}

func saveThrough[T model.Record](ctx context.Context, c *Coordinator, local *localstore.Collection[T], upload func(context.Context, T) (T, error), v T) (T, error) {
	saved, err := local.Save(ctx, v)
	if err != nil {
		return saved, err
	}
	if err := c.ready(); err != nil {
		return saved, nil
	}
	if _, err := upload(ctx, saved); err != nil {
		c.logger.Printf("WARNING: saved %s %s locally but push failed: %v", saved.Kind(), saved.RecordID(), err)
	}
	return saved, nil
}

// DeleteStory deletes a story locally and then from the remote store.
//
// Returns localstore.ErrNotFound if the story does not exist locally. When
// the remote delete cannot be made the local delete stands and the error
// reports why the remote copy was left behind; with sync disabled the
// remote copy is left alone and nil is returned.
func (c *Coordinator) DeleteStory(ctx context.Context, id string) error {
	return c.deletePaired(ctx, model.TypeStory, id, c.local.Stories.Delete, c.remote.DeleteStory)
}

// DeleteProfile deletes a child profile locally and then from the remote
// store. It behaves like DeleteStory.
func (c *Coordinator) DeleteProfile(ctx context.Context, id string) error {
	return c.deletePaired(ctx, model.TypeChildProfile, id, c.local.Profiles.Delete, c.remote.DeleteProfile)
}

func (c *Coordinator) deletePaired(ctx context.Context, typ model.EntityType, id string,
	deleteLocal, deleteRemote func(context.Context, string) error) error {
	if err := deleteLocal(ctx, id); err != nil {
		return err
	}
	c.logger.Printf("Deleted %s %s locally", typ, id)

	if err := c.ready(); err != nil {
		if errors.Is(err, ErrSyncDisabled) {
			return nil
		}
		c.logger.Printf("WARNING: %s %s not deleted remotely: %v", typ, id, err)
		return err
	}
	if err := deleteRemote(ctx, id); err != nil {
		c.logger.Printf("WARNING: %s %s not deleted remotely: %v", typ, id, err)
		return fmt.Errorf("failed to delete remote %s %s: %w", typ, id, err)
	}
	c.logger.Printf("Deleted %s %s remotely", typ, id)
	return nil
}

// ApplyRemoteDelete implements Syncer.ApplyRemoteDelete.
func (c *Coordinator) ApplyRemoteDelete(ctx context.Context, typ model.EntityType, id string) error {
	var err error
	switch typ {
	case model.TypeStory:
		err = c.local.Stories.Delete(ctx, id)
	case model.TypeChildProfile:
		err = c.local.Profiles.Delete(ctx, id)
	default:
		return fmt.Errorf("unknown entity type %q", typ)
	}
	if errors.Is(err, localstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply remote delete of %s %s: %w", typ, id, err)
	}
	c.logger.Printf("Applied remote delete of %s %s", typ, id)
	return nil
}
