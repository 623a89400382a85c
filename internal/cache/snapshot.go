package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
	"github.com/mohamedkhairy/squeeze-scanner/internal/storage"
	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

const snapshotKey = "ranked"

// SnapshotStore persists the ranked snapshot. Load returns
// storage.ErrNotFound when nothing was persisted.
type SnapshotStore interface {
	Load(ctx context.Context) (*models.RankedSnapshot, error)
	Save(ctx context.Context, snapshot *models.RankedSnapshot) error
}

// SnapshotOptions configures a SnapshotCache.
type SnapshotOptions struct {
	// TTL is both the fresh TTL of a written snapshot and the maximum
	// generatedAt age trusted on reload.
	TTL          time.Duration
	StaleDefault time.Duration
	Now          func() time.Time
}

// SnapshotCache is the durable cache holding the current ranked snapshot.
// Every Set is persisted; Load restores a persisted snapshot whose
// generatedAt is within TTL.
type SnapshotCache struct {
	cache *Cache[models.RankedSnapshot]
	store SnapshotStore
	ttl   time.Duration
	now   func() time.Time

	// serializes writers so the persisted copy matches memory
	writeMu sync.Mutex
}

// NewSnapshotCache creates a durable snapshot cache over store.
func NewSnapshotCache(store SnapshotStore, opts SnapshotOptions) *SnapshotCache {
	if opts.TTL <= 0 {
		opts.TTL = 4 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SnapshotCache{
		cache: New[models.RankedSnapshot](Options{
			Name:         "snapshot",
			Capacity:     1,
			StaleDefault: opts.StaleDefault,
			Now:          opts.Now,
		}),
		store: store,
		ttl:   opts.TTL,
		now:   opts.Now,
	}
}

// Load restores the persisted snapshot. A missing, unreadable or expired
// document leaves the cache cold; only the expired case is reported, as
// models.ErrSnapshotExpired, and read failures are returned wrapped.
func (s *SnapshotCache) Load(ctx context.Context) error {
	snap, err := s.store.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snap == nil || snap.Validate() != nil {
		return fmt.Errorf("failed to load snapshot: %w", models.ErrNoData)
	}

	age := s.now().Sub(snap.GeneratedAt)
	if age > s.ttl {
		return fmt.Errorf("snapshot generated %s ago: %w", age.Round(time.Second), models.ErrSnapshotExpired)
	}

	entry := s.entryFor(*snap)
	s.cache.SetEntry(snapshotKey, entry)

	logger.Info("Restored ranked snapshot",
		logger.Time("generated_at", snap.GeneratedAt),
		logger.Int("items", len(snap.List)),
	)
	return nil
}

// Set replaces the current snapshot and persists it. The in-memory copy is
// updated even when persistence fails.
func (s *SnapshotCache) Set(ctx context.Context, snap models.RankedSnapshot) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.cache.SetEntry(snapshotKey, s.entryFor(snap))
	if err := s.store.Save(ctx, &snap); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	return nil
}

// Current returns the current snapshot.
func (s *SnapshotCache) Current(allowStale bool) (models.RankedSnapshot, bool) {
	return s.cache.Get(snapshotKey, allowStale)
}

// CurrentWithStaleInfo returns the current snapshot and whether it is stale.
func (s *SnapshotCache) CurrentWithStaleInfo() (models.RankedSnapshot, bool, bool) {
	return s.cache.GetWithStaleInfo(snapshotKey)
}

// Clear drops the in-memory snapshot; the persisted copy is kept.
func (s *SnapshotCache) Clear() {
	s.cache.Clear()
}

// freshness is measured from generatedAt rather than from write time.
func (s *SnapshotCache) entryFor(snap models.RankedSnapshot) Entry[models.RankedSnapshot] {
	stale := s.cache.stale
	if 3*s.ttl > stale {
		stale = 3 * s.ttl
	}
	return Entry[models.RankedSnapshot]{
		Data:       snap,
		FreshUntil: snap.GeneratedAt.Add(s.ttl),
		StaleUntil: snap.GeneratedAt.Add(stale),
	}
}

// FileSnapshotStore keeps the snapshot in a JSON file.
type FileSnapshotStore struct {
	Path string
}

// Load reads the snapshot file.
func (f *FileSnapshotStore) Load(ctx context.Context) (*models.RankedSnapshot, error) {
	var snap models.RankedSnapshot
	if err := storage.ReadJSONFile(f.Path, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save atomically rewrites the snapshot file.
func (f *FileSnapshotStore) Save(ctx context.Context, snapshot *models.RankedSnapshot) error {
	return storage.WriteJSONFile(f.Path, snapshot)
}

// RedisSnapshotStore keeps the snapshot under a Redis key so several
// instances share it.
type RedisSnapshotStore struct {
	client storage.RedisClient
	key    string
	ttl    time.Duration
}

// NewRedisSnapshotStore creates a Redis-backed store. A zero ttl keeps the
// key forever.
func NewRedisSnapshotStore(client storage.RedisClient, key string, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client, key: key, ttl: ttl}
}

// Load reads the snapshot key.
func (r *RedisSnapshotStore) Load(ctx context.Context) (*models.RankedSnapshot, error) {
	exists, err := r.client.Exists(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("failed to check snapshot key: %w", err)
	}
	if !exists {
		return nil, storage.ErrNotFound
	}
	var snap models.RankedSnapshot
	if err := r.client.GetJSON(ctx, r.key, &snap); err != nil {
		return nil, fmt.Errorf("failed to read snapshot key: %w", err)
	}
	return &snap, nil
}

// Save writes the snapshot key.
func (r *RedisSnapshotStore) Save(ctx context.Context, snapshot *models.RankedSnapshot) error {
	return r.client.Set(ctx, r.key, snapshot, r.ttl)
}
