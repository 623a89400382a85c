package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
	"github.com/mohamedkhairy/squeeze-scanner/internal/storage"
)

// StateStore persists the notification state. Load returns
// storage.ErrNotFound when nothing was persisted.
type StateStore interface {
	Load(ctx context.Context) (*models.NotificationState, error)
	Save(ctx context.Context, state *models.NotificationState) error
}

// FileStateStore keeps the state in a JSON file.
type FileStateStore struct {
	Path string
}

// Load reads the state file.
func (f *FileStateStore) Load(ctx context.Context) (*models.NotificationState, error) {
	state := models.NewNotificationState()
	if err := storage.ReadJSONFile(f.Path, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Save atomically rewrites the state file.
func (f *FileStateStore) Save(ctx context.Context, state *models.NotificationState) error {
	return storage.WriteJSONFile(f.Path, state)
}

// RedisStateStore keeps the state under one Redis key.
type RedisStateStore struct {
	client storage.RedisClient
	key    string
	ttl    time.Duration
}

// NewRedisStateStore creates a Redis-backed state store
func NewRedisStateStore(client storage.RedisClient, key string, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{client: client, key: key, ttl: ttl}
}

// Load reads the state key.
func (r *RedisStateStore) Load(ctx context.Context) (*models.NotificationState, error) {
	exists, err := r.client.Exists(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("failed to check state key: %w", err)
	}
	if !exists {
		return nil, storage.ErrNotFound
	}
	state := models.NewNotificationState()
	if err := r.client.GetJSON(ctx, r.key, state); err != nil {
		return nil, fmt.Errorf("failed to read state key: %w", err)
	}
	return state, nil
}

// Save writes the state key.
func (r *RedisStateStore) Save(ctx context.Context, state *models.NotificationState) error {
	return r.client.Set(ctx, r.key, state, r.ttl)
}
