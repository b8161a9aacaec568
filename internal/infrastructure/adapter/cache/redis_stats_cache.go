package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	cacheport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/cache"
)

const defaultKeyPrefix = "credit-ledger:stats:"

// setIfVersionScript writes KEYS[2] only while KEYS[1] still holds ARGV[1].
// ARGV[3] is the TTL in milliseconds; zero keeps the entry until invalidated.
var setIfVersionScript = redis.NewScript(`
local current = redis.call('get', KEYS[1]) or '0'
if current ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('set', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
  redis.call('set', KEYS[2], ARGV[2])
end
return 1
`)

// Config holds Redis connection settings for the stats cache
type Config struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// RedisStatsCache stores CreditStats as JSON under one key per user, next to
// the user's generation counter. Both keys share a hash tag so the fill script
// runs against a single cluster slot.
type RedisStatsCache struct {
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
}

var _ cacheport.StatsCache = (*RedisStatsCache)(nil)

// NewRedisClient opens a client for cfg
func NewRedisClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisStatsCache wraps client; a zero TTL keeps entries until invalidated
func NewRedisStatsCache(client redis.UniversalClient, ttl time.Duration, keyPrefix string) *RedisStatsCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStatsCache{
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
	}
}

func (c *RedisStatsCache) key(userID string) string {
	return c.keyPrefix + "{" + userID + "}"
}

func (c *RedisStatsCache) versionKey(userID string) string {
	return c.key(userID) + ":version"
}

// GetStats returns the cached stats; a missing key is a miss, not an error
func (c *RedisStatsCache) GetStats(ctx context.Context, userID string) (*entity.CreditStats, bool, error) {
	raw, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get stats: %w", err)
	}

	var stats entity.CreditStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false, fmt.Errorf("decode cached stats: %w", err)
	}
	return &stats, true, nil
}

// Version returns the user's generation counter
func (c *RedisStatsCache) Version(ctx context.Context, userID string) (int64, error) {
	version, err := c.client.Get(ctx, c.versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get stats version: %w", err)
	}
	return version, nil
}

// SetStats stores stats for the configured TTL unless the generation moved past version
func (c *RedisStatsCache) SetStats(ctx context.Context, userID string, version int64, stats *entity.CreditStats) (bool, error) {
	raw, err := json.Marshal(stats)
	if err != nil {
		return false, fmt.Errorf("encode stats: %w", err)
	}
	stored, err := setIfVersionScript.Run(ctx, c.client,
		[]string{c.versionKey(userID), c.key(userID)},
		strconv.FormatInt(version, 10), raw, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis set stats: %w", err)
	}
	return stored == 1, nil
}

// Invalidate drops the user's cached stats and bumps the generation
func (c *RedisStatsCache) Invalidate(ctx context.Context, userID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.versionKey(userID))
		pipe.Del(ctx, c.key(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate stats: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (c *RedisStatsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client
func (c *RedisStatsCache) Close() error {
	return c.client.Close()
}
