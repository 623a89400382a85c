package subscription

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
)

// Store is the subscription collaborator.
type Store interface {
	// GetSubscribers returns the users subscribed to any of channelIDs,
	// deduplicated and sorted.
	GetSubscribers(ctx context.Context, channelIDs []string) ([]string, error)
	// GetUserSubscriptions returns the channels userID subscribes to, sorted.
	GetUserSubscriptions(ctx context.Context, userID string) ([]string, error)
	Subscribe(ctx context.Context, userID, channelID string) error
	Unsubscribe(ctx context.Context, userID, channelID string) error
}

func validate(userID, channelID string) error {
	if strings.TrimSpace(userID) == "" {
		return models.ErrInvalidUserID
	}
	if strings.TrimSpace(channelID) == "" {
		return models.ErrInvalidChannelID
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	channels map[string]map[string]struct{}
	users    map[string]map[string]struct{}
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		channels: make(map[string]map[string]struct{}),
		users:    make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) GetSubscribers(ctx context.Context, channelIDs []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, id := range channelIDs {
		for user := range s.channels[id] {
			seen[user] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

func (s *MemoryStore) GetUserSubscriptions(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.users[userID]), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, userID, channelID string) error {
	if err := validate(userID, channelID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	add(s.channels, channelID, userID)
	add(s.users, userID, channelID)
	return nil
}

func (s *MemoryStore) Unsubscribe(ctx context.Context, userID, channelID string) error {
	if err := validate(userID, channelID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	remove(s.channels, channelID, userID)
	remove(s.users, userID, channelID)
	return nil
}

func add(m map[string]map[string]struct{}, key, member string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[member] = struct{}{}
}

func remove(m map[string]map[string]struct{}, key, member string) {
	delete(m[key], member)
	if len(m[key]) == 0 {
		delete(m, key)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
