package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rescue/internal/ratelimit/models"
)

// slidingWindowScript trims the sorted set to the window, then records cost
// members when they fit. Scores are unix milliseconds.
//
// Returns {allowed, count, oldest}.
var slidingWindowScript = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])
local cost   = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count + cost <= limit then
  for i = 1, cost do
    redis.call('ZADD', key, now, member .. ':' .. i)
  end
  count = count + cost
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = now
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
  oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// RedisBucketStore shares sliding windows between replicas through Redis
// sorted sets.
type RedisBucketStore struct {
	client redis.Scripter
	prefix string
	now    func() time.Time
}

func NewRedisBucketStore(client redis.Scripter, prefix string) *RedisBucketStore {
	return &RedisBucketStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	return s.AllowN(ctx, key, 1, limit, window)
}

func (s *RedisBucketStore) AllowN(ctx context.Context, key string, cost int, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := s.now()
	res, err := slidingWindowScript.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, cost, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("rate limit %s: unexpected script reply %v", key, res)
	}

	resetAt := time.UnixMilli(res[2]).Add(window)
	result := &models.RateLimitResult{
		Allowed:   res[0] == 1,
		Limit:     limit,
		Remaining: max(limit-int(res[1]), 0),
		ResetAt:   resetAt,
	}
	if !result.Allowed {
		result.Remaining = 0
		result.RetryAfter = models.RetryAfterSeconds(now, resetAt)
	}
	return result, nil
}
