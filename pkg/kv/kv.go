// Package kv defines the key-value command surface the symbol store is
// written against, plus the backends that implement it.
//
// The surface is deliberately Redis-shaped: string values, unordered sets,
// and score-ordered sets. Everything the symbol core persists — domain
// records, registry sets, time buckets — maps onto these ten commands, so
// any backend that can answer them can host a store.
//
// Backends:
//   - MemoryStore: mutex-protected maps, used by tests and ephemeral runs
//   - BadgerStore: persistent, backed by BadgerDB
//   - RedisStore: a thin mapping onto a Redis server
package kv

import (
	"context"
	"errors"
)

// Store is the minimal key-value command interface.
//
// All operations take a context and may be called concurrently. Keys and
// members are opaque strings; ordering guarantees exist only for the
// sorted-set commands.
type Store interface {
	// Get returns the string value at key. The second return is false when
	// the key does not exist (not an error).
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value at key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Del removes the given keys (plain values, sets and sorted sets alike)
	// and returns how many existed.
	Del(ctx context.Context, keys ...string) (int, error)

	// Exists reports whether key holds a value of any kind.
	Exists(ctx context.Context, key string) (bool, error)

	// SAdd adds members to the set at key, creating it if needed.
	SAdd(ctx context.Context, key string, members ...string) error

	// SRem removes members from the set at key. Missing members are ignored.
	SRem(ctx context.Context, key string, members ...string) error

	// SMembers returns all members of the set at key. A missing key yields
	// an empty slice.
	SMembers(ctx context.Context, key string) ([]string, error)

	// ZAdd adds member to the sorted set at key with the given score,
	// replacing the member's score if it is already present.
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZRem removes members from the sorted set at key.
	ZRem(ctx context.Context, key string, members ...string) error

	// ZRangeByScore returns members whose score lies in [min, max],
	// ordered by ascending score. Use math.Inf bounds for open ranges.
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)

	// Close releases backend resources. Operations after Close fail with
	// ErrClosed.
	Close() error
}

// Store errors.
var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("kv: store is closed")

	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.New("kv: invalid key")
)
