package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/talekeeper/storysync/internal/model"
)

// DefaultZone is the zone used when none is configured.
const DefaultZone = "StoryZone"

var zonePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// RedisStore implements RemoteStore on top of Redis.
//
// Key layout, with ns = "storysync:<zone>:":
//
//	<ns>zone                   zone marker (creation time)
//	<ns>sub                    change subscription (hash: id, createdAt)
//	<ns>rec:<type>:<id>        one hash per record, one field per attribute
//	<ns>idx:<type>             sorted set of ids scored by createdAt
//	<ns>changes                pub/sub channel carrying Change payloads
type RedisStore struct {
	client *redis.Client
	zone   string
	ns     string
	logger *log.Logger

	// origin tags the change signals this store publishes so Changes can
	// leave them out.
	origin string

	zoneReady  atomic.Bool
	subscribed atomic.Bool
}

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection URL
	URL string

	// Zone is the record zone name (default: DefaultZone)
	Zone string

	// DialTimeout bounds connection attempts (default: 5s)
	DialTimeout time.Duration

	// Logger for store activity (default: stderr logger)
	Logger *log.Logger
}

// NewRedisStore creates a store for the zone described by cfg.
//
// The zone name is validated here so a misconfiguration fails at startup.
// No connection is made: an unreachable server is reported later by
// AccountStatus, which lets the app start offline.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	} else {
		opts.DialTimeout = 5 * time.Second
	}
	// The sync engine never retries internally; neither should the client.
	opts.MaxRetries = -1

	return NewRedisStoreWithClient(redis.NewClient(opts), cfg.Zone, cfg.Logger)
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, zone string, logger *log.Logger) (*RedisStore, error) {
	if zone == "" {
		zone = DefaultZone
	}
	if !zonePattern.MatchString(zone) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidZone, zone)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}

	return &RedisStore{
		client: client,
		zone:   zone,
		ns:     "storysync:" + zone + ":",
		logger: logger,
		origin: uuid.NewString(),
	}, nil
}

// Zone returns the zone name.
func (s *RedisStore) Zone() string {
	return s.zone
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) zoneKey() string { return s.ns + "zone" }
func (s *RedisStore) subKey() string { return s.ns + "sub" }
func (s *RedisStore) channel() string { return s.ns + "changes" }
func (s *RedisStore) indexKey(recordType string) string { return s.ns + "idx:" + recordType }
func (s *RedisStore) recordKey(recordType, id string) string {
	return s.ns + "rec:" + recordType + ":" + id
}

// EnsureZone implements RemoteStore.EnsureZone.
func (s *RedisStore) EnsureZone(ctx context.Context) (bool, error) {
	created, err := s.client.SetNX(ctx, s.zoneKey(), formatTime(time.Now()), 0).Result()
	if err != nil {
		return false, wrapErr("ensure zone", err)
	}

	s.zoneReady.Store(true)
	if created {
		s.logger.Printf("Created zone %s", s.zone)
	}
	return created, nil
}

// EnsureSubscription implements RemoteStore.EnsureSubscription.
func (s *RedisStore) EnsureSubscription(ctx context.Context) error {
	existing, err := s.client.HGetAll(ctx, s.subKey()).Result()
	if err != nil {
		return wrapErr("probe subscription", err)
	}
	if len(existing) > 0 {
		s.subscribed.Store(true)
		return nil
	}

	// Not found: provision it. HSETNX on the id keeps two devices racing
	// here from ending up with different ids.
	id := uuid.NewString()
	if _, err := s.client.HSetNX(ctx, s.subKey(), "id", id).Result(); err != nil {
		return wrapErr("create subscription", err)
	}
	if err := s.client.HSetNX(ctx, s.subKey(), "createdAt", formatTime(time.Now())).Err(); err != nil {
		return wrapErr("create subscription", err)
	}

	s.subscribed.Store(true)
	s.logger.Printf("Created change subscription for zone %s", s.zone)
	return nil
}

// FetchStories implements RemoteStore.FetchStories.
func (s *RedisStore) FetchStories(ctx context.Context) ([]model.Story, error) {
	records, err := s.fetch(ctx, model.TypeStory.RecordType())
	if err != nil {
		return nil, err
	}

	stories := make([]model.Story, 0, len(records))
	for _, r := range records {
		story, err := storyFromFields(r.fields)
		if err != nil {
			s.logger.Printf("WARNING: skipping malformed Story record %s: %v", r.id, err)
			continue
		}
		stories = append(stories, story)
	}
	return stories, nil
}

// FetchProfiles implements RemoteStore.FetchProfiles.
func (s *RedisStore) FetchProfiles(ctx context.Context) ([]model.ChildProfile, error) {
	records, err := s.fetch(ctx, model.TypeChildProfile.RecordType())
	if err != nil {
		return nil, err
	}

	profiles := make([]model.ChildProfile, 0, len(records))
	for _, r := range records {
		profile, err := profileFromFields(r.fields)
		if err != nil {
			s.logger.Printf("WARNING: skipping malformed ChildProfile record %s: %v", r.id, err)
			continue
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// rawRecord is one record hash as read from Redis, in index order.
type rawRecord struct {
	id     string
	fields map[string]string
}

// fetch reads every record of a type, newest first.
func (s *RedisStore) fetch(ctx context.Context, recordType string) ([]rawRecord, error) {
	if err := s.requireZone(ctx); err != nil {
		return nil, err
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(recordType), 0, -1).Result()
	if err != nil {
		return nil, wrapErr("fetch "+recordType, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.recordKey(recordType, id))
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("fetch "+recordType, err)
	}

	records := make([]rawRecord, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Index entry without a record; a concurrent delete is in flight.
			continue
		}
		records = append(records, rawRecord{id: ids[i], fields: fields})
	}
	return records, nil
}

// SaveStory implements RemoteStore.SaveStory.
func (s *RedisStore) SaveStory(ctx context.Context, story model.Story) (model.Story, error) {
	if err := story.Validate(); err != nil {
		return model.Story{}, fmt.Errorf("invalid story: %w", err)
	}
	if err := s.save(ctx, model.TypeStory.RecordType(), story.ID, story.CreatedAt, storyFields(story)); err != nil {
		return model.Story{}, err
	}
	return story, nil
}

// SaveProfile implements RemoteStore.SaveProfile.
func (s *RedisStore) SaveProfile(ctx context.Context, p model.ChildProfile) (model.ChildProfile, error) {
	if err := p.Validate(); err != nil {
		return model.ChildProfile{}, fmt.Errorf("invalid child profile: %w", err)
	}
	fields, err := profileFields(p)
	if err != nil {
		return model.ChildProfile{}, err
	}
	if err := s.save(ctx, model.TypeChildProfile.RecordType(), p.ID, p.CreatedAt, fields); err != nil {
		return model.ChildProfile{}, err
	}
	return p, nil
}

// save replaces a record hash and its index entry in one transaction.
func (s *RedisStore) save(ctx context.Context, recordType, id string, createdAt time.Time, fields map[string]interface{}) error {
	if err := s.requireZone(ctx); err != nil {
		return err
	}

	key := s.recordKey(recordType, id)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		// Drop the old hash first so optional fields cleared locally do
		// not survive the upsert.
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.ZAdd(ctx, s.indexKey(recordType), redis.Z{Score: score(createdAt), Member: id})
		return nil
	})
	if err != nil {
		return wrapErr("save "+recordType+" "+id, err)
	}

	s.notify(ctx, Change{RecordType: recordType, RecordID: id, Op: OpSave})
	return nil
}

// DeleteStory implements RemoteStore.DeleteStory.
func (s *RedisStore) DeleteStory(ctx context.Context, id string) error {
	return s.delete(ctx, model.TypeStory.RecordType(), id)
}

// DeleteProfile implements RemoteStore.DeleteProfile.
func (s *RedisStore) DeleteProfile(ctx context.Context, id string) error {
	return s.delete(ctx, model.TypeChildProfile.RecordType(), id)
}

func (s *RedisStore) delete(ctx context.Context, recordType, id string) error {
	if err := s.requireZone(ctx); err != nil {
		return err
	}

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.recordKey(recordType, id))
		pipe.ZRem(ctx, s.indexKey(recordType), id)
		return nil
	})
	if err != nil {
		return wrapErr("delete "+recordType+" "+id, err)
	}

	if del.Val() == 0 {
		// Already gone: the end state the caller wants holds.
		s.logger.Printf("%s %s already absent, delete is a no-op", recordType, id)
		return nil
	}

	s.notify(ctx, Change{RecordType: recordType, RecordID: id, Op: OpDelete})
	return nil
}

// AccountStatus implements RemoteStore.AccountStatus.
func (s *RedisStore) AccountStatus(ctx context.Context) Status {
	err := s.client.Ping(ctx).Err()
	return classifyStatus(err)
}

// classifyStatus maps a probe error to an account status.
func classifyStatus(err error) Status {
	if err == nil {
		return Available
	}

	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "NOAUTH"), strings.HasPrefix(msg, "WRONGPASS"):
		return Status{State: StateNoAccount}
	case strings.HasPrefix(msg, "NOPERM"):
		return Status{State: StateRestricted}
	case IsNetworkError(err), errors.Is(err, redis.ErrClosed):
		return Unavailable
	default:
		return ErrorStatus(err)
	}
}

// Changes implements RemoteStore.Changes.
func (s *RedisStore) Changes(ctx context.Context) (<-chan Change, error) {
	pubsub := s.client.Subscribe(ctx, s.channel())

	// Wait for the subscription confirmation so callers know it is live.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, wrapErr("subscribe", err)
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					s.logger.Printf("WARNING: malformed change payload: %v", err)
					change = Change{}
				}
				if change.Origin == s.origin {
					continue
				}
				if change.At.IsZero() {
					change.At = time.Now()
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// notify publishes a change signal when a subscription exists. Failures are
// logged; the mutation itself already succeeded.
func (s *RedisStore) notify(ctx context.Context, change Change) {
	if !s.hasSubscription(ctx) {
		return
	}

	change.At = time.Now().UTC()
	change.Origin = s.origin
	payload, err := json.Marshal(change)
	if err != nil {
		s.logger.Printf("WARNING: failed to marshal change: %v", err)
		return
	}
	if err := s.client.Publish(ctx, s.channel(), payload).Err(); err != nil {
		s.logger.Printf("WARNING: failed to publish change for %s %s: %v", change.RecordType, change.RecordID, err)
	}
}

func (s *RedisStore) hasSubscription(ctx context.Context) bool {
	if s.subscribed.Load() {
		return true
	}
	n, err := s.client.Exists(ctx, s.subKey()).Result()
	if err != nil || n == 0 {
		return false
	}
	s.subscribed.Store(true)
	return true
}

// requireZone fails with ErrZoneNotFound until the zone is provisioned.
func (s *RedisStore) requireZone(ctx context.Context) error {
	if s.zoneReady.Load() {
		return nil
	}
	n, err := s.client.Exists(ctx, s.zoneKey()).Result()
	if err != nil {
		return wrapErr("check zone", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, s.zone)
	}
	s.zoneReady.Store(true)
	return nil
}
