package flux

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store caches the last live reading for a bounded time.
type Store interface {
	// Get returns the cached reading, or ok=false when absent or expired.
	Get(ctx context.Context) (r Reading, ok bool, err error)
	Set(ctx context.Context, r Reading, ttl time.Duration) error
}

// MemoryStore keeps the reading in process.
type MemoryStore struct {
	mu        sync.RWMutex
	reading   Reading
	expiresAt time.Time
	now       func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Get implements Store.
func (s *MemoryStore) Get(context.Context) (Reading, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.expiresAt.IsZero() || !s.now().Before(s.expiresAt) {
		return Reading{}, false, nil
	}
	return s.reading, true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, r Reading, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reading = r
	s.expiresAt = s.now().Add(ttl)
	return nil
}

// RedisKey is where RedisStore keeps the reading.
const RedisKey = "radiation:flux:latest"

// RedisStore shares the cached reading between service instances.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, key: RedisKey}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context) (Reading, bool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Reading{}, false, nil
	}
	if err != nil {
		return Reading{}, false, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	var r Reading
	if err := json.Unmarshal(data, &r); err != nil {
		return Reading{}, false, fmt.Errorf("decode cached reading: %w", err)
	}
	return r, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, r Reading, ttl time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// NewRedisClient connects to url and verifies the connection. It returns
// nil, nil when url is empty so callers can fall back to MemoryStore.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
