package symbol

// normalizeDomain fills structural defaults on a freshly-decoded domain so
// downstream code never sees nil collections.
func normalizeDomain(d *Domain, id string) {
	if d.ID == "" {
		d.ID = id
	}
	if d.Symbols == nil {
		d.Symbols = []Symbol{}
	}
	if d.Invariants == nil {
		d.Invariants = []string{}
	}
}

// migrateSymbols rewrites legacy-shaped symbols into the current schema:
// invalid or missing kinds default to pattern, bare-string links become
// typed Link records, and lattice legacy member lists merge into the link
// list (skipping ids already linked) with the legacy field dropped.
//
// Returns whether anything changed, plus the ids whose vector-index
// document representation changed and must be reindexed. Idempotent: a
// second pass over migrated symbols reports no change.
func migrateSymbols(d *Domain) (changed bool, reindex []string) {
	for i := range d.Symbols {
		s := &d.Symbols[i]

		if !s.Kind.Valid() {
			s.Kind = KindPattern
			changed = true
		}

		for j := range s.Links {
			l := &s.Links[j]
			if l.legacy {
				l.legacy = false
				changed = true
			}
			if l.LinkType == "" {
				l.LinkType = LinkRelatesTo
				changed = true
			}
		}

		if s.Kind == KindLattice && len(s.Members) > 0 {
			for _, member := range s.Members {
				if hasLink(s.Links, member) {
					continue
				}
				s.Links = append(s.Links, Link{
					ID:       member,
					LinkType: LinkRelatesTo,
				})
			}
			s.Members = nil
			changed = true
			// The document text includes link ids, so the merge changes
			// what the vector index should hold.
			reindex = append(reindex, s.ID)
		}
	}
	return changed, reindex
}

func hasLink(links []Link, id string) bool {
	for _, l := range links {
		if l.ID == id {
			return true
		}
	}
	return false
}
