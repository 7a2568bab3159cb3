package bucket

import (
	"context"
	"sync"
	"time"

	"rescue/internal/ratelimit/models"
)

// InMemoryBucketStore keeps a sliding window of request timestamps per key.
// Counts are per process; use RedisBucketStore when several replicas share
// a limit.
type InMemoryBucketStore struct {
	mu      sync.Mutex
	buckets map[string]*slidingWindow
	now     func() time.Time
}

type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

func NewInMemoryBucketStore() *InMemoryBucketStore {
	return &InMemoryBucketStore{
		buckets: make(map[string]*slidingWindow),
		now:     time.Now,
	}
}

// Allow checks if a request is allowed and records it when it is.
func (s *InMemoryBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	return s.AllowN(ctx, key, 1, limit, window)
}

// AllowN is Allow for a request that consumes cost slots.
func (s *InMemoryBucketStore) AllowN(_ context.Context, key string, cost int, limit int, window time.Duration) (*models.RateLimitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sw := s.getOrCreateBucket(key, window)
	sw.cleanup(now)

	if len(sw.timestamps)+cost > limit {
		resetAt := now.Add(window)
		if len(sw.timestamps) > 0 {
			resetAt = sw.timestamps[0].Add(window)
		}
		return &models.RateLimitResult{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: models.RetryAfterSeconds(now, resetAt),
		}, nil
	}

	for range cost {
		sw.timestamps = append(sw.timestamps, now)
	}
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(window),
	}, nil
}

// Reset clears the counter for a key.
func (s *InMemoryBucketStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// GetCurrentCount returns the number of requests inside the window.
func (s *InMemoryBucketStore) GetCurrentCount(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw := s.buckets[key]
	if sw == nil {
		return 0, nil
	}
	sw.cleanup(s.now())
	return len(sw.timestamps), nil
}

func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// Must be called while holding s.mu.
func (s *InMemoryBucketStore) getOrCreateBucket(key string, window time.Duration) *slidingWindow {
	if sw := s.buckets[key]; sw != nil {
		return sw
	}
	sw := &slidingWindow{timestamps: []time.Time{}, window: window}
	s.buckets[key] = sw
	return sw
}
