package storage

import (
	"context"
	"time"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
)

// PushLogStorage defines the interface for push log operations
type PushLogStorage interface {
	// WritePush records one delivery attempt
	WritePush(ctx context.Context, record *models.PushRecord) error

	// GetPushes retrieves delivery attempts with filtering options
	GetPushes(ctx context.Context, filter PushFilter) ([]*models.PushRecord, error)

	// Close closes the storage connection
	Close() error
}

// PushFilter defines filtering options for push log queries
type PushFilter struct {
	UserID    string
	Ticker    string
	Status    models.PushStatus
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// RedisClient defines the interface for Redis operations
type RedisClient interface {
	// Key-value operations
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Set operations
	SetAdd(ctx context.Context, key string, members ...string) error
	SetMembers(ctx context.Context, key string) ([]string, error)
	SetRemove(ctx context.Context, key string, members ...string) error

	// Pub/Sub operations
	Publish(ctx context.Context, channel string, message interface{}) error

	// Close closes the Redis connection
	Close() error
}
