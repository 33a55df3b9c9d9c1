package symbol

import (
	"context"
	"sort"
	"time"

	"github.com/orneryd/runic/pkg/vector"
)

// SearchOptions constrains a hybrid search. At least one of Query,
// Metadata, or a time bound must be set; an unconstrained search is
// rejected.
type SearchOptions struct {
	// Query is the semantic search text. Empty skips the vector index
	// entirely and searches structured fields only.
	Query string

	// Limit caps the result count. Zero means DefaultSearchLimit.
	Limit int

	// Domains restricts the search to these domain ids. Empty means every
	// enabled domain the caller can access.
	Domains []string

	// Metadata filters by field equality. A slice value means "any of";
	// array-valued symbol fields match by containment.
	Metadata map[string]any

	// Since is an inclusive creation-time lower bound.
	Since *time.Time

	// Between is an inclusive creation-time window. Takes precedence over
	// Since.
	Between *[2]time.Time

	Caller string
}

// Result is one search hit: the symbol, its similarity score (zero on the
// structured paths), and the time buckets that matched it.
type Result struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Symbol   *Symbol        `json:"symbol"`
	Buckets  []string       `json:"buckets,omitempty"`
}

// DefaultSearchLimit applies when SearchOptions.Limit is zero.
const DefaultSearchLimit = 10

// Search merges structured filtering with vector similarity.
//
// With a query, the vector index is searched under the combined
// domain+metadata filter and each hit is hydrated from the structured
// store, re-checked against the metadata filter (index metadata is a
// simplified view), and filtered by time-bucket membership when a time
// bound was given. Without a query the candidates come straight from the
// structured store, sorted most-recent-activity first. When a query plus a
// time bound yields no hydrated hits but the buckets are non-empty, the
// structured bucket-filtered list is returned instead, guarding against
// the vector index filtering more strictly than the bucket index.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]Result, error) {
	hasTime := opts.Since != nil || opts.Between != nil
	if opts.Query == "" && len(opts.Metadata) == 0 && !hasTime {
		return nil, &ValidationError{Reason: "unconstrained search: supply a query, a metadata filter, or a time filter"}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	// Step 1: expand the time bound into day buckets and union their
	// members. An empty union means no time constraint applies.
	bucketKeys, _ := s.buckets.KeysForRange(BucketCategory, opts.Since, opts.Between)
	bucketsByID := make(map[string][]string)
	for _, bkey := range bucketKeys {
		members, err := s.buckets.Members(ctx, bkey)
		if err != nil {
			return nil, err
		}
		for _, id := range members {
			bucketsByID[id] = append(bucketsByID[id], bkey)
		}
	}
	timeConstrained := len(bucketsByID) > 0

	// Step 2-3: resolve target domains and load their symbols once.
	candidates, domainIDs, err := s.searchCandidates(ctx, opts)
	if err != nil {
		return nil, err
	}

	// Step 6: no query means structured-only.
	if opts.Query == "" {
		return structuredResults(candidates, opts.Metadata, bucketsByID, timeConstrained, limit), nil
	}

	// Step 4: semantic search under the combined filter.
	filter := make(map[string]any, len(opts.Metadata)+1)
	for k, v := range opts.Metadata {
		filter[k] = v
	}
	filter["symbol_domain"] = domainIDs
	hits, err := s.index.Search(ctx, opts.Query, limit, filter)
	if err != nil {
		return nil, err
	}

	// Step 5: hydrate, re-check, attach matched buckets.
	byID := make(map[string]candidate, len(candidates))
	for _, c := range candidates {
		if _, ok := byID[c.symbol.ID]; !ok {
			byID[c.symbol.ID] = c
		}
	}
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		c, ok := byID[hit.ID]
		if !ok {
			continue
		}
		meta := symbolMetadata(c.domainID, c.symbol)
		if !vector.MatchesFilter(meta, opts.Metadata) {
			continue
		}
		if timeConstrained {
			if _, inRange := bucketsByID[hit.ID]; !inRange {
				continue
			}
		}
		results = append(results, Result{
			ID:       hit.ID,
			Score:    hit.Score,
			Metadata: meta,
			Symbol:   c.symbol,
			Buckets:  bucketsByID[hit.ID],
		})
	}

	// Step 7: structured fallback when the vector index filtered away
	// everything a non-empty time bucket set still allows.
	if len(results) == 0 && hasTime && timeConstrained {
		return structuredResults(candidates, opts.Metadata, bucketsByID, true, limit), nil
	}

	// Step 8.
	return results, nil
}

type candidate struct {
	domainID string
	symbol   *Symbol
}

// searchCandidates loads every target domain's symbols once. The target
// set is the caller-supplied domain list filtered to enabled, accessible
// domains, or all of them when none were supplied.
func (s *Store) searchCandidates(ctx context.Context, opts SearchOptions) ([]candidate, []string, error) {
	ids := opts.Domains
	if len(ids) == 0 {
		all, err := s.accessibleDomainIDs(ctx, opts.Caller)
		if err != nil {
			return nil, nil, err
		}
		ids = all
	}

	var candidates []candidate
	var loaded []string
	for _, domainID := range ids {
		d, err := s.GetDomain(ctx, domainID, ReadOptions{Caller: opts.Caller})
		if err != nil {
			// Skip domains the caller cannot see rather than failing the
			// whole search.
			if _, denied := err.(*AccessDeniedError); denied {
				continue
			}
			return nil, nil, err
		}
		if d == nil || !d.Enabled {
			continue
		}
		loaded = append(loaded, domainID)
		for i := range d.Symbols {
			candidates = append(candidates, candidate{domainID: domainID, symbol: &d.Symbols[i]})
		}
	}
	return candidates, loaded, nil
}

// structuredResults filters the candidate set by metadata and bucket
// membership, sorts by most-recent-activity first, and truncates.
func structuredResults(candidates []candidate, metadata map[string]any, bucketsByID map[string][]string, timeConstrained bool, limit int) []Result {
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if timeConstrained {
			if _, ok := bucketsByID[c.symbol.ID]; !ok {
				continue
			}
		}
		meta := symbolMetadata(c.domainID, c.symbol)
		if !vector.MatchesFilter(meta, metadata) {
			continue
		}
		results = append(results, Result{
			ID:       c.symbol.ID,
			Metadata: meta,
			Symbol:   c.symbol,
			Buckets:  bucketsByID[c.symbol.ID],
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return activityTime(results[i].Symbol).After(activityTime(results[j].Symbol))
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// activityTime is the recency sort key: last access, else last update,
// else creation. Undecodable tokens sort oldest.
func activityTime(sym *Symbol) time.Time {
	for _, token := range []string{sym.LastAccessedAt, sym.UpdatedAt, sym.CreatedAt} {
		if t, ok := decodeTimeToken(token); ok {
			return t
		}
	}
	return time.Time{}
}
