package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key this service writes
const KeyPrefix = "cricstats"

// RedisCache holds the shared Redis connection
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{
		client: client,
	}, nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// HealthCheck pings Redis to verify connection
func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// SeenSet returns the dedup set for one named run. Keys expire ttl after the
// last write; ttl <= 0 keeps them until Reset.
func (rc *RedisCache) SeenSet(run string, ttl time.Duration) *SeenSet {
	return &SeenSet{
		client: rc.client,
		key:    KeyPrefix + ":seen:" + run,
		ttl:    ttl,
	}
}

// SeenSet remembers processed item keys in a Redis set, so a run that was
// interrupted can resume without repeating finished items.
type SeenSet struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// Key returns the Redis key backing the set
func (s *SeenSet) Key() string {
	return s.key
}

// Seen reports whether key was marked
func (s *SeenSet) Seen(ctx context.Context, key string) (bool, error) {
	return s.client.SIsMember(ctx, s.key, key).Result()
}

// Mark records key and refreshes the set's expiry
func (s *SeenSet) Mark(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.key, key)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Len returns the number of marked keys
func (s *SeenSet) Len(ctx context.Context) (int64, error) {
	return s.client.SCard(ctx, s.key).Result()
}

// Reset forgets every key, so the next run starts over
func (s *SeenSet) Reset(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// MatchIDs returns the match numbering for one named run
func (rc *RedisCache) MatchIDs(run string, ttl time.Duration) *MatchIDs {
	key := KeyPrefix + ":ids:" + run
	return &MatchIDs{
		client:  rc.client,
		key:     key,
		counter: key + ":next",
		ttl:     ttl,
	}
}

// MatchIDs maps match URLs to ids in a Redis hash. Ids come from a counter
// next to it, so numbering continues where an interrupted run stopped.
type MatchIDs struct {
	client  *redis.Client
	key     string
	counter string
	ttl     time.Duration
}

// Assign returns the stored id for url, allocating the next one on first sight
func (m *MatchIDs) Assign(ctx context.Context, url string) (string, error) {
	id, err := m.client.HGet(ctx, m.key, url).Result()
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", err
	}

	n, err := m.client.Incr(ctx, m.counter).Result()
	if err != nil {
		return "", err
	}
	id = strconv.FormatInt(n, 10)

	set, err := m.client.HSetNX(ctx, m.key, url, id).Result()
	if err != nil {
		return "", err
	}
	if !set {
		// another writer numbered url first
		return m.client.HGet(ctx, m.key, url).Result()
	}

	if m.ttl > 0 {
		pipe := m.client.TxPipeline()
		pipe.Expire(ctx, m.key, m.ttl)
		pipe.Expire(ctx, m.counter, m.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return "", err
		}
	}
	return id, nil
}

// Reset drops the numbering, so the next run starts again at 1
func (m *MatchIDs) Reset(ctx context.Context) error {
	return m.client.Del(ctx, m.key, m.counter).Err()
}
