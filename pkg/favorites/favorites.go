// Package favorites persists the set of accounts a user pinned to the top of the staking tables.
package favorites

import (
	"context"
	"fmt"
	"slices"

	"github.com/puzpuzpuz/xsync/v4"
)

// Key is the store key holding the favorites set.
const Key = "staking:favorites"

// Store lists and toggles favorite account ids.
type Store interface {
	// List returns the favorites sorted by account id.
	List(ctx context.Context) ([]string, error)
	// Toggle adds or removes accountID and reports whether it is now a favorite.
	Toggle(ctx context.Context, accountID string) (bool, error)
}

// SetClient is the subset of the Redis client used by RedisStore.
type SetClient interface {
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
}

// RedisStore keeps favorites in a Redis set.
type RedisStore struct {
	client SetClient
	key    string
}

// NewRedisStore returns a store on the default key.
func NewRedisStore(client SetClient) *RedisStore {
	return &RedisStore{client: client, key: Key}
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	slices.Sort(members)
	return members, nil
}

// Toggle is check-then-set; two concurrent toggles of the same id may both add or both remove.
func (s *RedisStore) Toggle(ctx context.Context, accountID string) (bool, error) {
	isMember, err := s.client.SIsMember(ctx, s.key, accountID)
	if err != nil {
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	if isMember {
		if err := s.client.SRem(ctx, s.key, accountID); err != nil {
			return false, fmt.Errorf("remove favorite: %w", err)
		}
		return false, nil
	}
	if err := s.client.SAdd(ctx, s.key, accountID); err != nil {
		return false, fmt.Errorf("add favorite: %w", err)
	}
	return true, nil
}

// MemoryStore keeps favorites for the lifetime of the process.
type MemoryStore struct {
	set *xsync.Map[string, struct{}]
}

// NewMemoryStore returns a store seeded with ids.
func NewMemoryStore(ids ...string) *MemoryStore {
	s := &MemoryStore{set: xsync.NewMap[string, struct{}]()}
	for _, id := range ids {
		s.set.Store(id, struct{}{})
	}
	return s
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	out := make([]string, 0, s.set.Size())
	s.set.Range(func(id string, _ struct{}) bool {
		out = append(out, id)
		return true
	})
	slices.Sort(out)
	return out, nil
}

func (s *MemoryStore) Toggle(_ context.Context, accountID string) (bool, error) {
	var added bool
	s.set.Compute(accountID, func(_ struct{}, loaded bool) (struct{}, xsync.ComputeOp) {
		if loaded {
			added = false
			return struct{}{}, xsync.DeleteOp
		}
		added = true
		return struct{}{}, xsync.UpdateOp
	})
	return added, nil
}
