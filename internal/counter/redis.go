package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps the tally in a hash and increments with HINCRBY, so concurrent
// clicks from the same profile never lose updates. A positive ttl is
// refreshed on every increment, matching the rest of the profile scope.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis creates a tally under prefix (see kvstore.ProfilePrefix).
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, key: prefix + Key, ttl: ttl}
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, linkID string) (int, error) {
	n, err := r.client.HGet(ctx, r.key, linkID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("hget %s: %w", r.key, err)
	}
	return n, nil
}

// Increment implements Store.
func (r *Redis) Increment(ctx context.Context, linkID string) (int, error) {
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, r.key, linkID, 1)
		if r.ttl > 0 {
			pipe.Expire(ctx, r.key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("hincrby %s: %w", r.key, err)
	}
	return int(incr.Val()), nil
}

// All implements Store.
func (r *Redis) All(ctx context.Context) (map[string]int, error) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", r.key, err)
	}

	tally := make(map[string]int, len(raw))
	for id, v := range raw {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			continue
		}
		tally[id] = n
	}
	return tally, nil
}

// Reset implements Store.
func (r *Redis) Reset(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", r.key, err)
	}
	return nil
}
