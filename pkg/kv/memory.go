package kv

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of Store.
// It's useful for:
// - Unit testing (no disk I/O, no server)
// - Ephemeral single-process deployments
//
// Thread-safe: all operations are protected by a RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	values  map[string]string
	sets    map[string]map[string]struct{}
	zsets   map[string]map[string]float64
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
		sets:   make(map[string]map[string]struct{}),
		zsets:  make(map[string]map[string]float64),
	}
}

// Get returns the value at key.
func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrInvalidKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, ErrClosed
	}

	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value at key.
func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.values[key] = value
	return nil
}

// Del removes keys of any kind and returns how many existed.
func (m *MemoryStore) Del(ctx context.Context, keys ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	count := 0
	for _, key := range keys {
		if _, ok := m.values[key]; ok {
			delete(m.values, key)
			count++
			continue
		}
		if _, ok := m.sets[key]; ok {
			delete(m.sets, key)
			count++
			continue
		}
		if _, ok := m.zsets[key]; ok {
			delete(m.zsets, key)
			count++
		}
	}
	return count, nil
}

// Exists reports whether key holds a value of any kind.
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, ErrClosed
	}

	if _, ok := m.values[key]; ok {
		return true, nil
	}
	if _, ok := m.sets[key]; ok {
		return true, nil
	}
	_, ok := m.zsets[key]
	return ok, nil
}

// SAdd adds members to the set at key.
func (m *MemoryStore) SAdd(ctx context.Context, key string, members ...string) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	set := m.sets[key]
	if set == nil {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	for _, member := range members {
		set[member] = struct{}{}
	}
	return nil
}

// SRem removes members from the set at key.
func (m *MemoryStore) SRem(ctx context.Context, key string, members ...string) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	set := m.sets[key]
	if set == nil {
		return nil
	}
	for _, member := range members {
		delete(set, member)
	}
	if len(set) == 0 {
		delete(m.sets, key)
	}
	return nil
}

// SMembers returns all members of the set at key, sorted for determinism.
func (m *MemoryStore) SMembers(ctx context.Context, key string) ([]string, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	set := m.sets[key]
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}
	sort.Strings(members)
	return members, nil
}

// ZAdd adds member with score to the sorted set at key.
func (m *MemoryStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	zset := m.zsets[key]
	if zset == nil {
		zset = make(map[string]float64)
		m.zsets[key] = zset
	}
	zset[member] = score
	return nil
}

// ZRem removes members from the sorted set at key.
func (m *MemoryStore) ZRem(ctx context.Context, key string, members ...string) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	zset := m.zsets[key]
	if zset == nil {
		return nil
	}
	for _, member := range members {
		delete(zset, member)
	}
	if len(zset) == 0 {
		delete(m.zsets, key)
	}
	return nil
}

// ZRangeByScore returns members with score in [min, max], ascending by score.
// Members with equal scores are ordered lexicographically.
func (m *MemoryStore) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	type entry struct {
		member string
		score  float64
	}

	zset := m.zsets[key]
	entries := make([]entry, 0, len(zset))
	for member, score := range zset {
		if score >= min && score <= max {
			entries = append(entries, entry{member, score})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score < entries[j].score
		}
		return entries[i].member < entries[j].member
	})

	members := make([]string, len(entries))
	for i, e := range entries {
		members[i] = e.member
	}
	return members, nil
}

// Close marks the store closed and drops all data.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.values = nil
	m.sets = nil
	m.zsets = nil
	return nil
}

// Verify MemoryStore implements Store interface
var _ Store = (*MemoryStore)(nil)
