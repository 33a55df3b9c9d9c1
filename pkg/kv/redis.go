package kv

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisStore maps the Store interface onto a Redis server.
//
// The command surface is already Redis-shaped, so this is a thin adapter:
// the only translation is redis.Nil -> (not found, no error) and float
// bounds -> Redis range syntax.
type RedisStore struct {
	client *redis.Client
	mu     sync.RWMutex
	closed bool
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// Addr is the host:port of the Redis server (default "localhost:6379").
	Addr string
	// Password, if the server requires AUTH.
	Password string
	// DB selects the logical Redis database number.
	DB int
}

// NewRedisStore connects to a Redis server and verifies the connection
// with a PING.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kv: redis ping %s: %w", opts.Addr, err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Get returns the value at key.
func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrInvalidKey
	}
	if r.isClosed() {
		return "", false, ErrClosed
	}

	value, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value at key with no expiry.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if r.isClosed() {
		return ErrClosed
	}

	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("kv: set %q: %w", key, err)
	}
	return nil
}

// Del removes keys and returns how many existed.
func (r *RedisStore) Del(ctx context.Context, keys ...string) (int, error) {
	if r.isClosed() {
		return 0, ErrClosed
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("kv: del: %w", err)
	}
	return int(n), nil
}

// Exists reports whether key holds a value of any kind.
func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}
	if r.isClosed() {
		return false, ErrClosed
	}

	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("kv: exists %q: %w", key, err)
	}
	return n > 0, nil
}

// SAdd adds members to the set at key.
func (r *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if r.isClosed() {
		return ErrClosed
	}
	if len(members) == 0 {
		return nil
	}

	if err := r.client.SAdd(ctx, key, toAnySlice(members)...).Err(); err != nil {
		return fmt.Errorf("kv: sadd %q: %w", key, err)
	}
	return nil
}

// SRem removes members from the set at key.
func (r *RedisStore) SRem(ctx context.Context, key string, members ...string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if r.isClosed() {
		return ErrClosed
	}
	if len(members) == 0 {
		return nil
	}

	if err := r.client.SRem(ctx, key, toAnySlice(members)...).Err(); err != nil {
		return fmt.Errorf("kv: srem %q: %w", key, err)
	}
	return nil
}

// SMembers returns all members of the set at key.
func (r *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if r.isClosed() {
		return nil, ErrClosed
	}

	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("kv: smembers %q: %w", key, err)
	}
	return members, nil
}

// ZAdd adds member with score to the sorted set at key.
func (r *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if r.isClosed() {
		return ErrClosed
	}

	if err := r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("kv: zadd %q: %w", key, err)
	}
	return nil
}

// ZRem removes members from the sorted set at key.
func (r *RedisStore) ZRem(ctx context.Context, key string, members ...string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if r.isClosed() {
		return ErrClosed
	}
	if len(members) == 0 {
		return nil
	}

	if err := r.client.ZRem(ctx, key, toAnySlice(members)...).Err(); err != nil {
		return fmt.Errorf("kv: zrem %q: %w", key, err)
	}
	return nil
}

// ZRangeByScore returns members with score in [min, max], ascending.
func (r *RedisStore) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if r.isClosed() {
		return nil, ErrClosed
	}

	members, err := r.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: rangeBound(min, "-inf"),
		Max: rangeBound(max, "+inf"),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("kv: zrangebyscore %q: %w", key, err)
	}
	return members, nil
}

// Close closes the client connection.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	return r.client.Close()
}

func rangeBound(v float64, inf string) string {
	if math.IsInf(v, -1) || math.IsInf(v, 1) {
		return inf
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func toAnySlice(members []string) []interface{} {
	out := make([]interface{}, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}

// Verify RedisStore implements Store interface
var _ Store = (*RedisStore)(nil)
