package limiter

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCmdable is the subset of *redis.Client the limiter uses.
type redisCmdable interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// Redis keeps fail counters and blocks as expiring keys.
type Redis struct {
	rdb    redisCmdable
	set    Settings
	prefix string
}

// NewRedis constructs a Redis-backed limiter. Keys are namespaced under "ik:limiter:".
func NewRedis(rdb redisCmdable, set Settings) *Redis {
	return &Redis{rdb: rdb, set: set.withDefaults(), prefix: "ik:limiter:"}
}

// NewRedisClient parses url, connects and pings.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (l *Redis) keys(subject string, peerHash []byte) (fails, block string) {
	base := l.prefix + subject + ":" + hex.EncodeToString(peerHash)
	return base + ":fails", base + ":block"
}

// Allow reports whether the pair is blocked and for how long.
func (l *Redis) Allow(ctx context.Context, subject string, peerHash []byte) (bool, time.Duration, error) {
	_, block := l.keys(subject, peerHash)
	ttl, err := l.rdb.TTL(ctx, block).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, err
	}
	// -2 (missing) and -1 (no expiry) come back as raw negative durations
	if ttl > 0 {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Success forgets both counters and blocks.
func (l *Redis) Success(ctx context.Context, subject string, peerHash []byte) error {
	fails, block := l.keys(subject, peerHash)
	return l.rdb.Del(ctx, fails, block).Err()
}

// Failure increments the windowed counter and blocks once MaxFails is reached.
func (l *Redis) Failure(ctx context.Context, subject string, peerHash []byte) (bool, time.Duration, error) {
	fails, block := l.keys(subject, peerHash)
	n, err := l.rdb.Incr(ctx, fails).Result()
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, fails, l.set.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	if n < int64(l.set.MaxFails) {
		return false, 0, nil
	}
	if err := l.rdb.Set(ctx, block, 1, l.set.BlockFor).Err(); err != nil {
		return false, 0, err
	}
	if err := l.rdb.Del(ctx, fails).Err(); err != nil {
		return false, 0, err
	}
	return true, l.set.BlockFor, nil
}
