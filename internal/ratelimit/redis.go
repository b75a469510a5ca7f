package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "portfolio:ratebudget:"

// dayRetention keeps a day's counter around long enough to outlive any clock skew
const dayRetention = 48 * time.Hour

// acquireScript increments the day counter only while it is below the limit.
// KEYS[1] counter, ARGV[1] allowed, ARGV[2] expiry in ms. Returns {used, granted}.
var acquireScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
if used >= tonumber(ARGV[1]) then
	return {used, 0}
end
used = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return {used, 1}
`)

// exhaustScript raises the day counter to the limit
var exhaustScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
if used < tonumber(ARGV[1]) then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
end
return 0
`)

// RedisStore keeps the daily call count in redis, shared by every process
// that points at the same server
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a store on top of an existing redis client
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Load returns the persisted count for day, zero when nothing was stored
func (s *RedisStore) Load(ctx context.Context, day string) (int, error) {
	n, err := s.client.Get(ctx, keyPrefix+day).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load rate budget: %w", err)
	}
	return n, nil
}

// Acquire runs the check-and-increment as one redis script
func (s *RedisStore) Acquire(ctx context.Context, day string, allowed int) (int, bool, error) {
	res, err := acquireScript.Run(ctx, s.client, []string{keyPrefix + day}, allowed, dayRetention.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("failed to acquire rate budget: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("failed to acquire rate budget: unexpected reply %v", res)
	}
	return int(res[0]), res[1] == 1, nil
}

// Exhaust sets the count for day to allowed unless it is already higher
func (s *RedisStore) Exhaust(ctx context.Context, day string, allowed int) error {
	if err := exhaustScript.Run(ctx, s.client, []string{keyPrefix + day}, allowed, dayRetention.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("failed to exhaust rate budget: %w", err)
	}
	return nil
}
