package symbol

import (
	"context"
	"math"
	"time"

	"github.com/orneryd/runic/pkg/kv"
)

// BucketCategory is the category under which symbol creation times are
// bucketed.
const BucketCategory = "symbols"

const bucketDayFormat = "2006-01-02"

// BucketIndex is a coarse secondary index from creation time to symbol id:
// one sorted set per (category, UTC calendar day), scored by the creation
// epoch-ms so range listings come back time-ordered. Purely derived state,
// rebuildable from the symbol set.
type BucketIndex struct {
	store kv.Store
}

// NewBucketIndex builds a BucketIndex over store.
func NewBucketIndex(store kv.Store) *BucketIndex {
	return &BucketIndex{store: store}
}

// KeyFor returns the bucket key for the UTC day containing epochMs.
func (b *BucketIndex) KeyFor(category string, epochMs int64) string {
	day := time.UnixMilli(epochMs).UTC().Format(bucketDayFormat)
	return keyPrefix + "bucket:" + category + ":" + day
}

// IndexCreation adds sym to its creation-day bucket. A missing or
// undecodable creation token makes this a no-op.
func (b *BucketIndex) IndexCreation(ctx context.Context, sym *Symbol) error {
	created, ok := decodeTimeToken(sym.CreatedAt)
	if !ok {
		return nil
	}
	epochMs := created.UnixMilli()
	return b.store.ZAdd(ctx, b.KeyFor(BucketCategory, epochMs), float64(epochMs), sym.ID)
}

// RemoveCreation removes sym from its creation-day bucket.
func (b *BucketIndex) RemoveCreation(ctx context.Context, sym *Symbol) error {
	created, ok := decodeTimeToken(sym.CreatedAt)
	if !ok {
		return nil
	}
	return b.store.ZRem(ctx, b.KeyFor(BucketCategory, created.UnixMilli()), sym.ID)
}

// KeysForRange expands a time constraint into the day-bucket keys it spans.
// since is an inclusive lower bound running to today; between is an
// inclusive pair. applied is false when neither bound is supplied.
func (b *BucketIndex) KeysForRange(category string, since *time.Time, between *[2]time.Time) (keys []string, applied bool) {
	var from, to time.Time
	switch {
	case between != nil:
		from, to = between[0].UTC(), between[1].UTC()
	case since != nil:
		from, to = since.UTC(), time.Now().UTC()
	default:
		return nil, false
	}
	if to.Before(from) {
		return nil, true
	}

	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	for !day.After(last) {
		keys = append(keys, b.KeyFor(category, day.UnixMilli()))
		day = day.AddDate(0, 0, 1)
	}
	return keys, true
}

// Members lists the symbol ids in one bucket, oldest first.
func (b *BucketIndex) Members(ctx context.Context, key string) ([]string, error) {
	return b.store.ZRangeByScore(ctx, key, math.Inf(-1), math.Inf(1))
}
