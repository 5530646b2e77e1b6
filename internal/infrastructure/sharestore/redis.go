package sharestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

const (
	redisKeyPrefix = "prashnly:"
	// redisIndexKey is the set of keys written through the store.
	redisIndexKey = redisKeyPrefix + "share_access_keys"
)

// redisCommands is the part of redis.Cmdable the store uses.
type redisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// Redis shares access tokens between processes, e.g. the CLI and the MCP
// server, and lets redis expire them.
type Redis struct {
	client redisCommands
	ttl    time.Duration
}

var (
	_ ports.KeyValueStore = (*Redis)(nil)
	_ ports.Clearer       = (*Redis)(nil)
)

func NewRedis(client redisCommands, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// DialRedis connects and pings.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis failed: %w", err)
	}
	return client, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, redisKeyPrefix+key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	if err := r.client.SAdd(ctx, redisIndexKey, key).Err(); err != nil {
		return fmt.Errorf("redis index %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	if err := r.client.SRem(ctx, redisIndexKey, key).Err(); err != nil {
		return fmt.Errorf("redis unindex %s: %w", key, err)
	}
	return nil
}

// Clear drops every key written through the store, then the index.
func (r *Redis) Clear(ctx context.Context) error {
	keys, err := r.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return fmt.Errorf("redis list share keys: %w", err)
	}
	full := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		full = append(full, redisKeyPrefix+key)
	}
	full = append(full, redisIndexKey)
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis clear share keys: %w", err)
	}
	return nil
}
