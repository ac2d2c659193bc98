// Package presence tracks which portal users are currently active, backed
// by Redis so the flag survives portal worker restarts and is shared with
// the rest of the deployment.
package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a user counts as active after their last ping.
const DefaultTTL = 5 * time.Minute

// RedisStore marks and lists active users through TTL'd Redis keys plus a
// membership set.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a presence store with the given options and TTL.
func NewRedisStore(opts *redis.Options, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: redis.NewClient(opts), ttl: ttl}
}

// MarkActive refreshes the user's presence window. Called by the web layer
// on every authenticated request.
func (s *RedisStore) MarkActive(ctx context.Context, userID int64) error {
	pipe := s.client.Pipeline()
	pipe.Set(ctx, presenceKey(userID), time.Now().UTC().Format(time.RFC3339), s.ttl)
	pipe.SAdd(ctx, "presence:users", userID)
	_, err := pipe.Exec(ctx)
	return err
}

// ActiveUserIDs returns the ids of users whose presence key has not expired.
// Expired members are pruned from the set as they are discovered.
func (s *RedisStore) ActiveUserIDs(ctx context.Context) ([]int64, error) {
	members, err := s.client.SMembers(ctx, "presence:users").Result()
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}

		exists, err := s.client.Exists(ctx, presenceKey(id)).Result()
		if err != nil {
			continue
		}
		if exists == 0 {
			s.client.SRem(ctx, "presence:users", member)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func presenceKey(userID int64) string {
	return fmt.Sprintf("presence:user:%d", userID)
}
