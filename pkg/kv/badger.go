// BadgerStore provides persistent key-value storage using BadgerDB.
// It implements the Store interface with transactional writes.

package kv

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for BadgerDB storage organization.
// Using single-byte prefixes for efficiency.
const (
	prefixValue = byte(0x01) // value:key -> string
	prefixSet   = byte(0x02) // set:key + 0x00 + member -> []byte{}
	prefixZSet  = byte(0x03) // zset:key + 0x00 + member -> float64 bits
)

// keySeparator terminates the logical key inside composite Badger keys.
// Logical keys never contain a NUL byte.
const keySeparator = byte(0x00)

// BadgerStore is a persistent implementation of Store backed by BadgerDB.
//
// Key Structure:
//   - Values:  0x01 + key -> raw value bytes
//   - Sets:    0x02 + key + 0x00 + member -> empty
//   - ZSets:   0x03 + key + 0x00 + member -> big-endian float64 score
//
// Thread Safety:
//
//	Safe for concurrent use from multiple goroutines; Badger transactions
//	provide the isolation.
type BadgerStore struct {
	db     *badger.DB
	mu     sync.RWMutex // protects closed
	closed bool
}

// BadgerOptions configures a BadgerStore.
type BadgerOptions struct {
	// DataDir is the on-disk location. Ignored when InMemory is set.
	DataDir string

	// InMemory runs Badger without disk persistence (testing).
	InMemory bool

	// SyncWrites forces fsync on every write. Slower, maximum safety.
	SyncWrites bool
}

// NewBadgerStore opens a BadgerStore at dataDir with default options.
func NewBadgerStore(dataDir string) (*BadgerStore, error) {
	return NewBadgerStoreWithOptions(BadgerOptions{DataDir: dataDir})
}

// NewBadgerStoreWithOptions opens a BadgerStore with explicit options.
func NewBadgerStoreWithOptions(opts BadgerOptions) (*BadgerStore, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	// Quiet by default; Badger's own logger is noisy at INFO.
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("kv: failed to open BadgerDB: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

func valueKey(key string) []byte {
	k := make([]byte, 0, len(key)+1)
	k = append(k, prefixValue)
	return append(k, key...)
}

func memberKey(prefix byte, key, member string) []byte {
	k := make([]byte, 0, len(key)+len(member)+2)
	k = append(k, prefix)
	k = append(k, key...)
	k = append(k, keySeparator)
	return append(k, member...)
}

func memberScanPrefix(prefix byte, key string) []byte {
	k := make([]byte, 0, len(key)+2)
	k = append(k, prefix)
	k = append(k, key...)
	return append(k, keySeparator)
}

func (b *BadgerStore) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Get returns the value at key.
func (b *BadgerStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrInvalidKey
	}
	if b.isClosed() {
		return "", false, ErrClosed
	}

	var value string
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(valueKey(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		value = string(raw)
		found = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("kv: get %q: %w", key, err)
	}
	return value, found, nil
}

// Set stores value at key.
func (b *BadgerStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if b.isClosed() {
		return ErrClosed
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(valueKey(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("kv: set %q: %w", key, err)
	}
	return nil
}

// Del removes keys of any kind and returns how many existed.
func (b *BadgerStore) Del(ctx context.Context, keys ...string) (int, error) {
	if b.isClosed() {
		return 0, ErrClosed
	}

	count := 0
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			existed := false

			if _, err := txn.Get(valueKey(key)); err == nil {
				if err := txn.Delete(valueKey(key)); err != nil {
					return err
				}
				existed = true
			} else if err != badger.ErrKeyNotFound {
				return err
			}

			for _, prefix := range []byte{prefixSet, prefixZSet} {
				deleted, err := deleteWithPrefix(txn, memberScanPrefix(prefix, key))
				if err != nil {
					return err
				}
				if deleted > 0 {
					existed = true
				}
			}

			if existed {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("kv: del: %w", err)
	}
	return count, nil
}

// deleteWithPrefix removes every key matching prefix within txn.
func deleteWithPrefix(txn *badger.Txn, prefix []byte) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)

	var doomed [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		doomed = append(doomed, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range doomed {
		if err := txn.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(doomed), nil
}

// Exists reports whether key holds a value of any kind.
func (b *BadgerStore) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}
	if b.isClosed() {
		return false, ErrClosed
	}

	exists := false
	err := b.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(valueKey(key)); err == nil {
			exists = true
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		for _, prefix := range []byte{prefixSet, prefixZSet} {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			scan := memberScanPrefix(prefix, key)
			it.Seek(scan)
			if it.ValidForPrefix(scan) {
				exists = true
			}
			it.Close()
			if exists {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("kv: exists %q: %w", key, err)
	}
	return exists, nil
}

// SAdd adds members to the set at key.
func (b *BadgerStore) SAdd(ctx context.Context, key string, members ...string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if b.isClosed() {
		return ErrClosed
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for _, member := range members {
			if err := txn.Set(memberKey(prefixSet, key, member), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("kv: sadd %q: %w", key, err)
	}
	return nil
}

// SRem removes members from the set at key.
func (b *BadgerStore) SRem(ctx context.Context, key string, members ...string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if b.isClosed() {
		return ErrClosed
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for _, member := range members {
			if err := txn.Delete(memberKey(prefixSet, key, member)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("kv: srem %q: %w", key, err)
	}
	return nil
}

// SMembers returns all members of the set at key, sorted.
func (b *BadgerStore) SMembers(ctx context.Context, key string) ([]string, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if b.isClosed() {
		return nil, ErrClosed
	}

	members := []string{}
	scan := memberScanPrefix(prefixSet, key)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(scan); it.ValidForPrefix(scan); it.Next() {
			members = append(members, string(it.Item().Key()[len(scan):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("kv: smembers %q: %w", key, err)
	}
	// Badger iterates in byte order, which is already lexicographic.
	return members, nil
}

// ZAdd adds member with score to the sorted set at key.
func (b *BadgerStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if b.isClosed() {
		return ErrClosed
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(score))

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(memberKey(prefixZSet, key, member), buf[:])
	})
	if err != nil {
		return fmt.Errorf("kv: zadd %q: %w", key, err)
	}
	return nil
}

// ZRem removes members from the sorted set at key.
func (b *BadgerStore) ZRem(ctx context.Context, key string, members ...string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if b.isClosed() {
		return ErrClosed
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for _, member := range members {
			if err := txn.Delete(memberKey(prefixZSet, key, member)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("kv: zrem %q: %w", key, err)
	}
	return nil
}

// ZRangeByScore returns members with score in [min, max], ascending by score.
func (b *BadgerStore) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if b.isClosed() {
		return nil, ErrClosed
	}

	type entry struct {
		member string
		score  float64
	}

	var entries []entry
	scan := memberScanPrefix(prefixZSet, key)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(scan); it.ValidForPrefix(scan); it.Next() {
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if len(raw) != 8 {
				continue
			}
			score := math.Float64frombits(binary.BigEndian.Uint64(raw))
			if score < min || score > max {
				continue
			}
			entries = append(entries, entry{
				member: string(item.Key()[len(scan):]),
				score:  score,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("kv: zrangebyscore %q: %w", key, err)
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

// Close closes the underlying BadgerDB.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	return b.db.Close()
}

// Verify BadgerStore implements Store interface
var _ Store = (*BadgerStore)(nil)
