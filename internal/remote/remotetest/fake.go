// Package remotetest provides an in-memory remote.RemoteStore for tests.
package remotetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/talekeeper/storysync/internal/model"
	"github.com/talekeeper/storysync/internal/remote"
)

// Store is an in-memory RemoteStore with call counters and injectable
// failures. The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex

	stories  map[string]model.Story
	profiles map[string]model.ChildProfile

	status       remote.Status
	zoneExists   bool
	subscription bool

	// Injected failures, keyed by operation name ("FetchStories",
	// "SaveStory", "EnsureZone", ...).
	errs map[string]error
	// Per-record save failures, keyed by record id.
	saveErrs map[string]error

	calls map[string]int

	changes chan remote.Change
}

// New returns an available store with a provisioned zone.
func New() *Store {
	return &Store{
		stories:    make(map[string]model.Story),
		profiles:   make(map[string]model.ChildProfile),
		status:     remote.Available,
		zoneExists: true,
		errs:       make(map[string]error),
		saveErrs:   make(map[string]error),
		calls:      make(map[string]int),
		changes:    make(chan remote.Change, 16),
	}
}

// SetStatus sets the status returned by AccountStatus.
func (s *Store) SetStatus(st remote.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

// SetZoneExists controls whether the zone is already provisioned.
func (s *Store) SetZoneExists(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoneExists = v
}

// FailOn makes the named operation return err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, op)
		return
	}
	s.errs[op] = err
}

// FailSave makes saves of the record with the given id return err.
func (s *Store) FailSave(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErrs[id] = err
}

// PutStory seeds a story without counting a call.
func (s *Store) PutStory(v model.Story) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories[v.ID] = v
}

// PutProfile seeds a profile without counting a call.
func (s *Store) PutProfile(v model.ChildProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[v.ID] = v
}

// Story returns the stored story with the given id.
func (s *Store) Story(id string) (model.Story, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.stories[id]
	return v, ok
}

// Profile returns the stored profile with the given id.
func (s *Store) Profile(id string) (model.ChildProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.profiles[id]
	return v, ok
}

// HasSubscription reports whether EnsureSubscription provisioned one.
func (s *Store) HasSubscription() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscription
}

// Calls returns how many times the named operation was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls returns the number of record and provisioning calls made.
// AccountStatus probes are not counted.
func (s *Store) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for op, c := range s.calls {
		if op != "AccountStatus" {
			n += c
		}
	}
	return n
}

// Emit delivers a change signal to the Changes channel.
func (s *Store) Emit(c remote.Change) {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	s.changes <- c
}

// begin records a call and returns the injected error for op, if any.
func (s *Store) begin(ctx context.Context, op string) error {
	s.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.errs[op]
}

func (s *Store) EnsureZone(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "EnsureZone"); err != nil {
		return false, err
	}
	if s.zoneExists {
		return false, nil
	}
	s.zoneExists = true
	return true, nil
}

func (s *Store) EnsureSubscription(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "EnsureSubscription"); err != nil {
		return err
	}
	s.subscription = true
	return nil
}

func (s *Store) FetchStories(ctx context.Context) ([]model.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "FetchStories"); err != nil {
		return nil, err
	}
	if !s.zoneExists {
		return nil, remote.ErrZoneNotFound
	}
	out := make([]model.Story, 0, len(s.stories))
	for _, v := range s.stories {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) FetchProfiles(ctx context.Context) ([]model.ChildProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "FetchProfiles"); err != nil {
		return nil, err
	}
	if !s.zoneExists {
		return nil, remote.ErrZoneNotFound
	}
	out := make([]model.ChildProfile, 0, len(s.profiles))
	for _, v := range s.profiles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SaveStory(ctx context.Context, v model.Story) (model.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "SaveStory"); err != nil {
		return model.Story{}, err
	}
	if err := s.saveErrs[v.ID]; err != nil {
		return model.Story{}, err
	}
	s.stories[v.ID] = v
	return v, nil
}

func (s *Store) SaveProfile(ctx context.Context, v model.ChildProfile) (model.ChildProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "SaveProfile"); err != nil {
		return model.ChildProfile{}, err
	}
	if err := s.saveErrs[v.ID]; err != nil {
		return model.ChildProfile{}, err
	}
	s.profiles[v.ID] = v
	return v, nil
}

func (s *Store) DeleteStory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "DeleteStory"); err != nil {
		return err
	}
	delete(s.stories, id)
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "DeleteProfile"); err != nil {
		return err
	}
	delete(s.profiles, id)
	return nil
}

func (s *Store) AccountStatus(ctx context.Context) remote.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["AccountStatus"]++
	return s.status
}

// Changes returns the shared signal channel fed by Emit. It is never
// closed, so callers must stop on ctx.
func (s *Store) Changes(ctx context.Context) (<-chan remote.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "Changes"); err != nil {
		return nil, err
	}
	return s.changes, nil
}

var _ remote.RemoteStore = (*Store)(nil)
