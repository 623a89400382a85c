package subscription

import (
	"context"
	"fmt"

	"github.com/mohamedkhairy/squeeze-scanner/internal/storage"
)

// RedisStore keeps subscriptions in two Redis set families:
// {prefix}sub:channel:{id} holds user ids and {prefix}sub:user:{id} holds
// channel ids.
type RedisStore struct {
	redis  storage.RedisClient
	prefix string
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(redis storage.RedisClient, prefix string) *RedisStore {
	return &RedisStore{redis: redis, prefix: prefix}
}

func (s *RedisStore) channelKey(id string) string { return s.prefix + "sub:channel:" + id }
func (s *RedisStore) userKey(id string) string    { return s.prefix + "sub:user:" + id }

func (s *RedisStore) GetSubscribers(ctx context.Context, channelIDs []string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, id := range channelIDs {
		members, err := s.redis.SetMembers(ctx, s.channelKey(id))
		if err != nil {
			return nil, fmt.Errorf("failed to get subscribers of %s: %w", id, err)
		}
		for _, m := range members {
			seen[m] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

func (s *RedisStore) GetUserSubscriptions(ctx context.Context, userID string) ([]string, error) {
	members, err := s.redis.SetMembers(ctx, s.userKey(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriptions of %s: %w", userID, err)
	}
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	return sortedKeys(set), nil
}

func (s *RedisStore) Subscribe(ctx context.Context, userID, channelID string) error {
	if err := validate(userID, channelID); err != nil {
		return err
	}
	if err := s.redis.SetAdd(ctx, s.channelKey(channelID), userID); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if err := s.redis.SetAdd(ctx, s.userKey(userID), channelID); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

func (s *RedisStore) Unsubscribe(ctx context.Context, userID, channelID string) error {
	if err := validate(userID, channelID); err != nil {
		return err
	}
	if err := s.redis.SetRemove(ctx, s.channelKey(channelID), userID); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	if err := s.redis.SetRemove(ctx, s.userKey(userID), channelID); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}
