package symbol

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orneryd/runic/pkg/kv"
	"github.com/orneryd/runic/pkg/vector"
)

// Store is the symbol graph engine. Every mutation follows the same shape:
// load the owning domain, authorize, validate, mutate in memory, persist
// the blob, reindex the affected symbols, then propagate consequences
// (back-links, cascades) to other domains.
//
// Domain records are read-modify-written as whole JSON blobs; Store guards
// each storage key with an in-process mutex so concurrent writers to the
// same domain serialize instead of clobbering each other. Cross-domain
// work (propagation, cascade) locks one domain at a time, never nested, so
// multi-domain operations are sequential and non-transactional: a failure
// partway leaves earlier sub-writes applied.
type Store struct {
	kv       kv.Store
	index    vector.Index
	resolver KeyResolver
	guard    *Guard
	buckets  *BucketIndex

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// background tracks detached best-effort writes (the access-time bump)
	// so Flush can wait for them.
	background sync.WaitGroup
}

// New builds a Store over the given key-value store and vector index.
func New(store kv.Store, index vector.Index) *Store {
	s := &Store{
		kv:    store,
		index: index,
		locks: make(map[string]*sync.Mutex),
	}
	s.guard = NewGuard(&s.resolver)
	s.buckets = NewBucketIndex(store)
	return s
}

// Buckets exposes the time-bucket index.
func (s *Store) Buckets() *BucketIndex { return s.buckets }

// Flush blocks until all detached background writes have finished.
func (s *Store) Flush() { s.background.Wait() }

// ReadOptions carries caller identity for read operations.
type ReadOptions struct {
	Caller string
}

// WriteOptions carries caller identity and privilege for mutations.
type WriteOptions struct {
	Caller string
	Admin  bool
}

// AddOptions configures AddSymbol.
type AddOptions struct {
	Caller string
	Admin  bool

	// SkipValidation bypasses link-target existence validation.
	SkipValidation bool
}

// UpdateFields is the partial update applied by UpdateSymbol. Nil fields
// are left unchanged.
type UpdateFields struct {
	Name    *string
	Kind    *Kind
	Tag     *string
	Links   []Link
	Lattice *LatticeSpec
	Persona *PersonaSpec
}

// lockKey acquires the per-storage-key mutex and returns its release func.
func (s *Store) lockKey(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// getDomain loads, normalizes, and lazily migrates the domain at key.
// Returns nil when the key is absent or the stored record is malformed
// (malformed records are logged and treated as absent so the rest of the
// system degrades instead of crashing). When migration changed the record
// it is re-persisted and the affected symbols reindexed.
//
// Caller must hold the key lock.
func (s *Store) getDomain(ctx context.Context, key, domainID string) (*Domain, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var d Domain
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		log.Printf("⚠️ treating domain as absent: %v", &MalformedRecordError{Key: key, Err: err})
		return nil, nil
	}
	normalizeDomain(&d, domainID)

	changed, reindex := migrateSymbols(&d)
	if changed {
		d.LastUpdated = time.Now().UnixMilli()
		if err := s.putDomain(ctx, key, &d); err != nil {
			return nil, err
		}
		// Post-migration reindex is best-effort: the structured record is
		// already correct, and a full sweep can repair the mirror later.
		for _, id := range reindex {
			if sym := d.findSymbol(id); sym != nil {
				if ierr := s.index.IndexSymbol(ctx, symbolDocument(d.ID, sym)); ierr != nil {
					log.Printf("⚠️ reindex after migration failed for %s: %v", id, ierr)
				}
			}
		}
	}
	return &d, nil
}

// peekDomain is getDomain without the persist step or the lock
// requirement: it normalizes and migrates in memory only. Used for
// lookups made while another key's lock is held, so locks never nest.
func (s *Store) peekDomain(ctx context.Context, key, domainID string) (*Domain, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var d Domain
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, nil
	}
	normalizeDomain(&d, domainID)
	migrateSymbols(&d)
	return &d, nil
}

func (s *Store) putDomain(ctx context.Context, key string, d *Domain) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, string(data))
}

// registerDomain records domainID in the appropriate registry set.
func (s *Store) registerDomain(ctx context.Context, domainID, caller string) error {
	if s.resolver.IsCallerScoped(domainID) {
		return s.kv.SAdd(ctx, s.resolver.CallerRegistryKey(caller), domainID)
	}
	return s.kv.SAdd(ctx, s.resolver.GlobalRegistryKey(), domainID)
}

// CreateDomain persists a new domain record. Creating an existing domain
// is a no-op returning the stored record unchanged, so init is idempotent.
// Global domains require admin privilege; caller-scoped domains are owned
// by the (possibly sentinel) caller.
func (s *Store) CreateDomain(ctx context.Context, d Domain, opts WriteOptions) (*Domain, error) {
	if d.ID == "" {
		return nil, &ValidationError{Reason: "domain id is required"}
	}

	key := s.resolver.Key(d.ID, opts.Caller)
	unlock := s.lockKey(key)
	defer unlock()

	existing, err := s.getDomain(ctx, key, d.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !s.guard.CanAccess(d.ID, opts.Caller, existing.OwnerID) {
			return nil, &AccessDeniedError{Domain: d.ID, Caller: s.resolver.Caller(opts.Caller)}
		}
		return existing, nil
	}

	normalizeDomain(&d, d.ID)
	d.Enabled = true
	if s.resolver.IsCallerScoped(d.ID) {
		d.OwnerID = s.resolver.Caller(opts.Caller)
	} else if !opts.Admin {
		return nil, &AdminRequiredError{Domain: d.ID}
	}
	d.LastUpdated = time.Now().UnixMilli()

	if err := s.putDomain(ctx, key, &d); err != nil {
		return nil, err
	}
	if err := s.registerDomain(ctx, d.ID, opts.Caller); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDomain returns the domain, migrated to the current schema, or nil
// when it does not exist. Fails with AccessDeniedError for a caller-scoped
// domain owned by someone else.
func (s *Store) GetDomain(ctx context.Context, domainID string, opts ReadOptions) (*Domain, error) {
	key := s.resolver.Key(domainID, opts.Caller)
	unlock := s.lockKey(key)
	defer unlock()

	d, err := s.getDomain(ctx, key, domainID)
	if err != nil || d == nil {
		return nil, err
	}
	if !s.guard.CanAccess(domainID, opts.Caller, d.OwnerID) {
		return nil, &AccessDeniedError{Domain: domainID, Caller: s.resolver.Caller(opts.Caller)}
	}
	return d, nil
}

// ListDomains returns every domain the caller can see: all registered
// global domains plus the caller's own scoped domains. Records that fail
// to load are skipped.
func (s *Store) ListDomains(ctx context.Context, opts ReadOptions) ([]*Domain, error) {
	ids, err := s.accessibleDomainIDs(ctx, opts.Caller)
	if err != nil {
		return nil, err
	}

	out := make([]*Domain, 0, len(ids))
	for _, id := range ids {
		d, err := s.GetDomain(ctx, id, opts)
		if err != nil || d == nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// accessibleDomainIDs enumerates the caller's visible domain ids in a
// stable order: global ids sorted, then the caller's scoped ids sorted.
func (s *Store) accessibleDomainIDs(ctx context.Context, caller string) ([]string, error) {
	global, err := s.kv.SMembers(ctx, s.resolver.GlobalRegistryKey())
	if err != nil {
		return nil, err
	}
	scoped, err := s.kv.SMembers(ctx, s.resolver.CallerRegistryKey(caller))
	if err != nil {
		return nil, err
	}
	sort.Strings(global)
	sort.Strings(scoped)

	seen := make(map[string]bool, len(global)+len(scoped))
	ids := make([]string, 0, len(global)+len(scoped))
	for _, id := range append(global, scoped...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// DeleteDomain removes the domain record, purges its symbols from the
// vector index and their time buckets, and drops it from the registry.
// Returns false when the domain does not exist.
func (s *Store) DeleteDomain(ctx context.Context, domainID string, opts WriteOptions) (bool, error) {
	key := s.resolver.Key(domainID, opts.Caller)
	unlock := s.lockKey(key)
	defer unlock()

	d, err := s.getDomain(ctx, key, domainID)
	if err != nil {
		return false, err
	}
	if d == nil {
		return false, nil
	}
	if !s.guard.CanAccess(domainID, opts.Caller, d.OwnerID) {
		return false, &AccessDeniedError{Domain: domainID, Caller: s.resolver.Caller(opts.Caller)}
	}
	if err := s.guard.EnsureWritable(d, opts.Admin); err != nil {
		return false, err
	}

	for i := range d.Symbols {
		sym := &d.Symbols[i]
		if ierr := s.index.DeleteSymbol(ctx, sym.ID); ierr != nil {
			log.Printf("⚠️ vector delete failed for %s: %v", sym.ID, ierr)
		}
		if berr := s.buckets.RemoveCreation(ctx, sym); berr != nil {
			log.Printf("⚠️ bucket delete failed for %s: %v", sym.ID, berr)
		}
	}

	if _, err := s.kv.Del(ctx, key); err != nil {
		return false, err
	}
	registry := s.resolver.GlobalRegistryKey()
	if s.resolver.IsCallerScoped(domainID) {
		registry = s.resolver.CallerRegistryKey(opts.Caller)
	}
	if err := s.kv.SRem(ctx, registry, domainID); err != nil {
		return false, err
	}
	return true, nil
}

// AddSymbol inserts or replaces sym in the given domain.
//
// Global domains must already exist (NotFoundError otherwise);
// caller-scoped domains are bootstrap-initialized on first write. An
// existing id is overwritten in place, preserving created_at and skipping
// link validation (replace semantics). A new symbol gets a created_at if
// absent, is validated against the accessible symbol space (self-links
// exempt, all missing targets listed in the ValidationError), and is added
// to its creation-day bucket. Either way updated_at advances, the domain
// persists, and the symbol is reindexed.
//
// Every outgoing bidirectional link then gets a reciprocal back-link
// synthesized on its target, via a recursive add with propagation
// suppressed so the process converges.
func (s *Store) AddSymbol(ctx context.Context, domainID string, sym Symbol, opts AddOptions) (*Symbol, error) {
	return s.addSymbol(ctx, domainID, sym, opts, true)
}

func (s *Store) addSymbol(ctx context.Context, domainID string, sym Symbol, opts AddOptions, propagate bool) (*Symbol, error) {
	key := s.resolver.Key(domainID, opts.Caller)
	unlock := s.lockKey(key)

	d, err := s.getDomain(ctx, key, domainID)
	if err != nil {
		unlock()
		return nil, err
	}
	bootstrapped := false
	if d == nil {
		if !s.resolver.IsCallerScoped(domainID) {
			unlock()
			return nil, &NotFoundError{Domain: domainID}
		}
		d = &Domain{
			ID:      domainID,
			Enabled: true,
			OwnerID: s.resolver.Caller(opts.Caller),
		}
		normalizeDomain(d, domainID)
		bootstrapped = true
	}

	if !s.guard.CanAccess(domainID, opts.Caller, d.OwnerID) {
		unlock()
		return nil, &AccessDeniedError{Domain: domainID, Caller: s.resolver.Caller(opts.Caller)}
	}
	if err := s.guard.EnsureWritable(d, opts.Admin); err != nil {
		unlock()
		return nil, err
	}

	if sym.ID == "" {
		sym.ID = uuid.NewString()
	}
	sym.Kind = KindFromString(string(sym.Kind))
	sym.Domain = domainID
	if sym.Links == nil {
		sym.Links = []Link{}
	}

	existing := d.findSymbol(sym.ID)
	isNew := existing == nil

	if isNew && !opts.SkipValidation {
		missing, verr := s.missingLinkTargets(ctx, d, &sym, opts.Caller)
		if verr != nil {
			unlock()
			return nil, verr
		}
		if len(missing) > 0 {
			unlock()
			return nil, &ValidationError{Missing: missing}
		}
	}

	now := time.Now().UTC()
	if existing != nil {
		sym.CreatedAt = existing.CreatedAt
	} else if sym.CreatedAt == "" {
		sym.CreatedAt = timeToken(now)
	}
	sym.UpdatedAt = timeToken(now)

	d.upsertSymbol(sym)
	d.LastUpdated = now.UnixMilli()

	if err := s.putDomain(ctx, key, d); err != nil {
		unlock()
		return nil, err
	}
	unlock()

	if bootstrapped {
		if err := s.registerDomain(ctx, domainID, opts.Caller); err != nil {
			return nil, err
		}
	}
	if isNew {
		if err := s.buckets.IndexCreation(ctx, &sym); err != nil {
			log.Printf("⚠️ bucket index failed for %s: %v", sym.ID, err)
		}
	}
	if err := s.index.IndexSymbol(ctx, symbolDocument(domainID, &sym)); err != nil {
		return nil, err
	}

	if propagate {
		s.propagateBackLinks(ctx, &sym, opts)
	}
	return sym.Clone(), nil
}

// missingLinkTargets resolves every outgoing link against the current
// domain's in-memory symbol set and then the rest of the caller's
// accessible domains. Self-references are exempt.
func (s *Store) missingLinkTargets(ctx context.Context, d *Domain, sym *Symbol, caller string) ([]string, error) {
	var missing []string
	seen := make(map[string]bool)
	for _, link := range sym.Links {
		if link.ID == "" || link.ID == sym.ID || seen[link.ID] {
			continue
		}
		seen[link.ID] = true
		if d.findSymbol(link.ID) != nil {
			continue
		}
		found, err := s.symbolExists(ctx, link.ID, caller, d.ID)
		if err != nil {
			return nil, err
		}
		if !found {
			missing = append(missing, link.ID)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

// symbolExists scans the caller's accessible domains (skipping skipDomain,
// already checked in memory) for a symbol id. Lock-free reads so it can
// run while a domain lock is held.
func (s *Store) symbolExists(ctx context.Context, id, caller, skipDomain string) (bool, error) {
	ids, err := s.accessibleDomainIDs(ctx, caller)
	if err != nil {
		return false, err
	}
	for _, domainID := range ids {
		if domainID == skipDomain {
			continue
		}
		d, err := s.peekDomain(ctx, s.resolver.Key(domainID, caller), domainID)
		if err != nil {
			return false, err
		}
		if d == nil || !d.Enabled || !s.guard.CanAccess(domainID, caller, d.OwnerID) {
			continue
		}
		if d.findSymbol(id) != nil {
			return true, nil
		}
	}
	return false, nil
}

// propagateBackLinks synthesizes reciprocal links on the targets of sym's
// bidirectional links. Failures are logged; back-link propagation is
// convergent but not transactional.
func (s *Store) propagateBackLinks(ctx context.Context, sym *Symbol, opts AddOptions) {
	for _, link := range sym.Links {
		if !link.Bidirectional || link.ID == "" || link.ID == sym.ID {
			continue
		}
		target, targetDomain, err := s.locateSymbol(ctx, link.ID, opts.Caller)
		if err != nil {
			log.Printf("⚠️ back-link lookup failed for %s: %v", link.ID, err)
			continue
		}
		if target == nil {
			continue
		}
		if target.HasLinkTo(sym.ID, link.LinkType, true) {
			continue
		}

		updated := target.Clone()
		updated.Links = append(updated.Links, Link{
			ID:            sym.ID,
			LinkType:      link.LinkType,
			Bidirectional: true,
		})
		_, err = s.addSymbol(ctx, targetDomain, *updated, AddOptions{
			Caller:         opts.Caller,
			Admin:          opts.Admin,
			SkipValidation: true,
		}, false)
		if err != nil {
			log.Printf("⚠️ back-link propagation to %s failed: %v", link.ID, err)
		}
	}
}

// locateSymbol finds a symbol by id across the caller's accessible,
// enabled domains in stable order. Lock-free reads.
func (s *Store) locateSymbol(ctx context.Context, id, caller string) (*Symbol, string, error) {
	ids, err := s.accessibleDomainIDs(ctx, caller)
	if err != nil {
		return nil, "", err
	}
	for _, domainID := range ids {
		d, err := s.peekDomain(ctx, s.resolver.Key(domainID, caller), domainID)
		if err != nil {
			return nil, "", err
		}
		if d == nil || !d.Enabled || !s.guard.CanAccess(domainID, caller, d.OwnerID) {
			continue
		}
		if sym := d.findSymbol(id); sym != nil {
			return sym.Clone(), domainID, nil
		}
	}
	return nil, "", nil
}

// UpdateSymbol shallow-merges fields into an existing symbol, bumps
// updated_at, persists, and reindexes. Returns nil (not an error) when the
// domain or symbol does not exist.
func (s *Store) UpdateSymbol(ctx context.Context, domainID, symbolID string, fields UpdateFields, opts WriteOptions) (*Symbol, error) {
	key := s.resolver.Key(domainID, opts.Caller)
	unlock := s.lockKey(key)

	d, err := s.getDomain(ctx, key, domainID)
	if err != nil {
		unlock()
		return nil, err
	}
	if d == nil {
		unlock()
		return nil, nil
	}
	if !s.guard.CanAccess(domainID, opts.Caller, d.OwnerID) {
		unlock()
		return nil, &AccessDeniedError{Domain: domainID, Caller: s.resolver.Caller(opts.Caller)}
	}
	if err := s.guard.EnsureWritable(d, opts.Admin); err != nil {
		unlock()
		return nil, err
	}

	sym := d.findSymbol(symbolID)
	if sym == nil {
		unlock()
		return nil, nil
	}

	if fields.Name != nil {
		sym.Name = *fields.Name
	}
	if fields.Kind != nil {
		sym.Kind = KindFromString(string(*fields.Kind))
	}
	if fields.Tag != nil {
		sym.Tag = *fields.Tag
	}
	if fields.Links != nil {
		sym.Links = fields.Links
	}
	if fields.Lattice != nil {
		sym.Lattice = fields.Lattice
	}
	if fields.Persona != nil {
		sym.Persona = fields.Persona
	}
	now := time.Now().UTC()
	sym.UpdatedAt = timeToken(now)
	d.LastUpdated = now.UnixMilli()

	if err := s.putDomain(ctx, key, d); err != nil {
		unlock()
		return nil, err
	}
	result := sym.Clone()
	unlock()

	if err := s.index.IndexSymbol(ctx, symbolDocument(domainID, result)); err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveSymbol deletes a symbol from its domain, its vector-index entry,
// and its time-bucket entry, then cascades through every domain accessible
// to the caller, stripping links (and persona references) to the deleted
// id and reindexing each modified symbol. Returns false when the domain or
// symbol does not exist.
func (s *Store) RemoveSymbol(ctx context.Context, domainID, symbolID string, opts WriteOptions) (bool, error) {
	key := s.resolver.Key(domainID, opts.Caller)
	unlock := s.lockKey(key)

	d, err := s.getDomain(ctx, key, domainID)
	if err != nil {
		unlock()
		return false, err
	}
	if d == nil {
		unlock()
		return false, nil
	}
	if !s.guard.CanAccess(domainID, opts.Caller, d.OwnerID) {
		unlock()
		return false, &AccessDeniedError{Domain: domainID, Caller: s.resolver.Caller(opts.Caller)}
	}
	if err := s.guard.EnsureWritable(d, opts.Admin); err != nil {
		unlock()
		return false, err
	}

	sym := d.findSymbol(symbolID)
	if sym == nil {
		unlock()
		return false, nil
	}
	removed := sym.Clone()
	d.removeSymbol(symbolID)
	d.LastUpdated = time.Now().UnixMilli()

	if err := s.putDomain(ctx, key, d); err != nil {
		unlock()
		return false, err
	}
	unlock()

	if ierr := s.index.DeleteSymbol(ctx, symbolID); ierr != nil {
		log.Printf("⚠️ vector delete failed for %s: %v", symbolID, ierr)
	}
	if berr := s.buckets.RemoveCreation(ctx, removed); berr != nil {
		log.Printf("⚠️ bucket delete failed for %s: %v", symbolID, berr)
	}

	s.cascadeRemove(ctx, symbolID, opts)
	return true, nil
}

// cascadeRemove strips references to a deleted id from every symbol in
// every domain the caller can access. Cascade scope is deliberately the
// caller-accessible set, not all stored domains, to preserve tenant
// isolation. Sub-write failures are logged and do not roll back earlier
// ones.
func (s *Store) cascadeRemove(ctx context.Context, deletedID string, opts WriteOptions) {
	ids, err := s.accessibleDomainIDs(ctx, opts.Caller)
	if err != nil {
		log.Printf("⚠️ cascade enumeration failed: %v", err)
		return
	}

	for _, domainID := range ids {
		key := s.resolver.Key(domainID, opts.Caller)
		unlock := s.lockKey(key)

		d, err := s.getDomain(ctx, key, domainID)
		if err != nil || d == nil {
			unlock()
			continue
		}
		if !s.guard.CanAccess(domainID, opts.Caller, d.OwnerID) || d.ReadOnly {
			unlock()
			continue
		}

		var modified []string
		for i := range d.Symbols {
			sym := &d.Symbols[i]
			if stripReferences(sym, deletedID) {
				sym.UpdatedAt = timeToken(time.Now().UTC())
				modified = append(modified, sym.ID)
			}
		}
		if len(modified) == 0 {
			unlock()
			continue
		}
		d.LastUpdated = time.Now().UnixMilli()
		if err := s.putDomain(ctx, key, d); err != nil {
			unlock()
			log.Printf("⚠️ cascade persist failed for domain %s: %v", domainID, err)
			continue
		}

		docs := make([]vector.Document, 0, len(modified))
		for _, id := range modified {
			if sym := d.findSymbol(id); sym != nil {
				docs = append(docs, symbolDocument(domainID, sym))
			}
		}
		unlock()
		if _, err := s.index.IndexBatch(ctx, docs); err != nil {
			log.Printf("⚠️ cascade reindex failed for domain %s: %v", domainID, err)
		}
	}
}

// stripReferences removes links and persona references to id, reporting
// whether anything changed.
func stripReferences(sym *Symbol, id string) bool {
	changed := false

	kept := sym.Links[:0]
	for _, l := range sym.Links {
		if l.ID == id {
			changed = true
			continue
		}
		kept = append(kept, l)
	}
	sym.Links = kept

	if sym.Persona != nil {
		personas := sym.Persona.LinkedPersonas[:0]
		for _, p := range sym.Persona.LinkedPersonas {
			if p == id {
				changed = true
				continue
			}
			personas = append(personas, p)
		}
		sym.Persona.LinkedPersonas = personas
	}
	return changed
}

// PropagateRename rewrites every link to oldID within the domain to newID,
// and renames the symbol itself in place when present, fixing its
// vector-index entry and time-bucket entry. Cross-domain rename cascade is
// the caller's responsibility, mirroring RemoveSymbol's cascade policy.
func (s *Store) PropagateRename(ctx context.Context, domainID, oldID, newID string, opts WriteOptions) error {
	if oldID == "" || newID == "" || oldID == newID {
		return &ValidationError{Reason: "rename requires distinct non-empty ids"}
	}

	key := s.resolver.Key(domainID, opts.Caller)
	unlock := s.lockKey(key)

	d, err := s.getDomain(ctx, key, domainID)
	if err != nil {
		unlock()
		return err
	}
	if d == nil {
		unlock()
		return &NotFoundError{Domain: domainID}
	}
	if !s.guard.CanAccess(domainID, opts.Caller, d.OwnerID) {
		unlock()
		return &AccessDeniedError{Domain: domainID, Caller: s.resolver.Caller(opts.Caller)}
	}
	if err := s.guard.EnsureWritable(d, opts.Admin); err != nil {
		unlock()
		return err
	}

	now := time.Now().UTC()
	var modified []string
	var renamed *Symbol
	for i := range d.Symbols {
		sym := &d.Symbols[i]
		changed := false
		for j := range sym.Links {
			if sym.Links[j].ID == oldID {
				sym.Links[j].ID = newID
				changed = true
			}
		}
		if sym.Persona != nil {
			for j, p := range sym.Persona.LinkedPersonas {
				if p == oldID {
					sym.Persona.LinkedPersonas[j] = newID
					changed = true
				}
			}
		}
		if sym.ID == oldID {
			sym.ID = newID
			changed = true
			renamed = sym
		}
		if changed {
			sym.UpdatedAt = timeToken(now)
			modified = append(modified, sym.ID)
		}
	}
	if len(modified) == 0 {
		unlock()
		return nil
	}
	d.LastUpdated = now.UnixMilli()
	if err := s.putDomain(ctx, key, d); err != nil {
		unlock()
		return err
	}

	var renamedCopy *Symbol
	if renamed != nil {
		renamedCopy = renamed.Clone()
	}
	docs := make([]vector.Document, 0, len(modified))
	for _, id := range modified {
		if sym := d.findSymbol(id); sym != nil {
			docs = append(docs, symbolDocument(domainID, sym))
		}
	}
	unlock()

	if renamedCopy != nil {
		if err := s.index.DeleteSymbol(ctx, oldID); err != nil {
			log.Printf("⚠️ vector delete failed for %s: %v", oldID, err)
		}
		old := renamedCopy.Clone()
		old.ID = oldID
		if err := s.buckets.RemoveCreation(ctx, old); err != nil {
			log.Printf("⚠️ bucket delete failed for %s: %v", oldID, err)
		}
		if err := s.buckets.IndexCreation(ctx, renamedCopy); err != nil {
			log.Printf("⚠️ bucket index failed for %s: %v", newID, err)
		}
	}
	if _, err := s.index.IndexBatch(ctx, docs); err != nil {
		log.Printf("⚠️ rename reindex failed for domain %s: %v", domainID, err)
	}
	return nil
}

// FindByID scans the caller's accessible domains in stable order and
// returns the first match in an enabled domain, or nil. As an observable
// side effect it bumps the symbol's last_accessed_at and activation_count
// and persists the touched domain from a detached goroutine; that write is
// best-effort and its failure is only logged.
func (s *Store) FindByID(ctx context.Context, id string, opts ReadOptions) (*Symbol, error) {
	ids, err := s.accessibleDomainIDs(ctx, opts.Caller)
	if err != nil {
		return nil, err
	}

	for _, domainID := range ids {
		key := s.resolver.Key(domainID, opts.Caller)
		unlock := s.lockKey(key)
		d, err := s.getDomain(ctx, key, domainID)
		unlock()
		if err != nil {
			return nil, err
		}
		if d == nil || !d.Enabled || !s.guard.CanAccess(domainID, opts.Caller, d.OwnerID) {
			continue
		}
		sym := d.findSymbol(id)
		if sym == nil {
			continue
		}

		result := sym.Clone()
		result.LastAccessedAt = timeToken(time.Now().UTC())
		result.ActivationCount++
		s.bumpAccess(key, domainID, id)
		return result, nil
	}
	return nil, nil
}

// bumpAccess persists the access-time bump in the background.
func (s *Store) bumpAccess(key, domainID, symbolID string) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		unlock := s.lockKey(key)
		defer unlock()

		d, err := s.getDomain(ctx, key, domainID)
		if err != nil || d == nil {
			if err != nil {
				log.Printf("⚠️ access bump load failed for %s: %v", symbolID, err)
			}
			return
		}
		sym := d.findSymbol(symbolID)
		if sym == nil {
			return
		}
		sym.LastAccessedAt = timeToken(time.Now().UTC())
		sym.ActivationCount++
		if err := s.putDomain(ctx, key, d); err != nil {
			log.Printf("⚠️ access bump persist failed for %s: %v", symbolID, err)
		}
	}()
}

// Reindex destroys and rebuilds the vector index from the structured
// store: every symbol in every domain the caller can see is re-embedded,
// and its time-bucket entry re-added. Returns how many symbols were
// indexed. This is the self-healing sweep for crash-induced drift between
// the key-value store and the semantic mirror.
func (s *Store) Reindex(ctx context.Context, opts ReadOptions) (int, error) {
	if err := s.index.Reset(ctx); err != nil {
		return 0, err
	}

	ids, err := s.accessibleDomainIDs(ctx, opts.Caller)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, domainID := range ids {
		d, err := s.GetDomain(ctx, domainID, opts)
		if err != nil || d == nil {
			continue
		}
		docs := make([]vector.Document, 0, len(d.Symbols))
		for i := range d.Symbols {
			sym := &d.Symbols[i]
			docs = append(docs, symbolDocument(domainID, sym))
			if berr := s.buckets.IndexCreation(ctx, sym); berr != nil {
				log.Printf("⚠️ bucket index failed for %s: %v", sym.ID, berr)
			}
		}
		indexed, err := s.index.IndexBatch(ctx, docs)
		if err != nil {
			return total, err
		}
		total += indexed
	}
	return total, nil
}

// symbolDocument renders a symbol as the vector-index document: the text
// is what gets embedded, the metadata is the filterable view.
func symbolDocument(domainID string, sym *Symbol) vector.Document {
	parts := []string{sym.Name, string(sym.Kind), sym.Tag}
	if sym.Lattice != nil {
		parts = append(parts, sym.Lattice.Topology, sym.Lattice.Closure)
	}
	if sym.Persona != nil {
		parts = append(parts, sym.Persona.LinkedPersonas...)
	}
	for _, l := range sym.Links {
		parts = append(parts, l.ID)
	}

	text := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			text = append(text, p)
		}
	}

	return vector.Document{
		ID:   sym.ID,
		Text: strings.Join(text, " "),
		Metadata: map[string]any{
			"symbol_domain": domainID,
			"kind":          string(sym.Kind),
			"symbol_tag":    sym.Tag,
		},
	}
}

// symbolMetadata is the full filterable view of a hydrated symbol record,
// richer than the simplified view stored in the vector index.
func symbolMetadata(domainID string, sym *Symbol) map[string]any {
	linked := make([]string, 0, len(sym.Links))
	for _, l := range sym.Links {
		linked = append(linked, l.ID)
	}
	meta := map[string]any{
		"id":              sym.ID,
		"name":            sym.Name,
		"kind":            string(sym.Kind),
		"symbol_domain":   domainID,
		"symbol_tag":      sym.Tag,
		"linked_patterns": linked,
	}
	if sym.Persona != nil {
		meta["linked_personas"] = sym.Persona.LinkedPersonas
	}
	return meta
}
