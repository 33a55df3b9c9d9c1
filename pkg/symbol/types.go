// Package symbol implements the multi-tenant symbol graph: named knowledge
// units grouped into domains, persisted as JSON blobs in a key-value store
// and mirrored into an external vector index for semantic retrieval.
//
// Domains are either global (shared, admin-writable) or caller-scoped
// (private per owner). Symbols carry typed cross-references that the engine
// keeps consistent under insert, delete, and rename: bidirectional links
// get reciprocal back-links, deletes cascade through referencing symbols,
// and renames rewrite inbound references.
package symbol

import (
	"encoding/json"
	"time"
)

// Kind classifies a symbol. Unknown kinds normalize to KindPattern.
type Kind string

const (
	KindPattern Kind = "pattern"
	KindPersona Kind = "persona"
	KindLattice Kind = "lattice"
	KindData    Kind = "data"
)

// Valid reports whether k names a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPattern, KindPersona, KindLattice, KindData:
		return true
	}
	return false
}

// KindFromString parses s, defaulting to KindPattern when s is empty or
// unknown.
func KindFromString(s string) Kind {
	k := Kind(s)
	if !k.Valid() {
		return KindPattern
	}
	return k
}

// LinkRelatesTo is the link type assigned to legacy bare-string links.
const LinkRelatesTo = "relates_to"

// Link is a typed, optionally-symmetric reference to another symbol.
type Link struct {
	ID            string `json:"id"`
	LinkType      string `json:"link_type"`
	Bidirectional bool   `json:"bidirectional"`

	// legacy marks a link decoded from the old bare-string-id shape; the
	// migrator uses it to know the record needs rewriting.
	legacy bool
}

// UnmarshalJSON accepts both the current object shape and the legacy bare
// string-id shape.
func (l *Link) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*l = Link{ID: id, LinkType: LinkRelatesTo, legacy: true}
		return nil
	}
	type plain Link
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = Link(p)
	return nil
}

// LatticeSpec is the payload carried only by lattice symbols.
type LatticeSpec struct {
	Topology string `json:"topology,omitempty"`
	Closure  string `json:"closure,omitempty"`
}

// PersonaSpec is the payload carried only by persona symbols.
type PersonaSpec struct {
	LinkedPersonas []string `json:"linked_personas"`
}

// Symbol is one knowledge unit. IDs are unique across the whole accessible
// symbol space, not just the owning domain.
//
// Timestamp fields hold opaque tokens produced by timeToken; consumers that
// need ordering decode them with decodeTimeToken and treat undecodable
// tokens as absent.
type Symbol struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	Kind            Kind   `json:"kind,omitempty"`
	Domain          string `json:"symbol_domain,omitempty"`
	Tag             string `json:"symbol_tag,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
	LastAccessedAt  string `json:"last_accessed_at,omitempty"`
	ActivationCount int    `json:"activation_count,omitempty"`
	Links           []Link `json:"linked_patterns"`

	// Kind-specific payloads. Lattice is set only on lattice symbols,
	// Persona only on persona symbols.
	Lattice *LatticeSpec `json:"lattice,omitempty"`
	Persona *PersonaSpec `json:"persona,omitempty"`

	// Members is the legacy lattice member-id list; the migrator merges it
	// into Links and clears it.
	Members []string `json:"members,omitempty"`
}

// HasLinkTo reports whether the symbol carries a link of the given type to
// targetID with the given symmetry.
func (s *Symbol) HasLinkTo(targetID, linkType string, bidirectional bool) bool {
	for _, l := range s.Links {
		if l.ID == targetID && l.LinkType == linkType && l.Bidirectional == bidirectional {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (s *Symbol) Clone() *Symbol {
	out := *s
	out.Links = append([]Link(nil), s.Links...)
	out.Members = append([]string(nil), s.Members...)
	if s.Lattice != nil {
		lat := *s.Lattice
		out.Lattice = &lat
	}
	if s.Persona != nil {
		per := PersonaSpec{LinkedPersonas: append([]string(nil), s.Persona.LinkedPersonas...)}
		out.Persona = &per
	}
	return &out
}

// Domain is a named, access-controlled collection of symbols. Two domains
// with the same ID but different owners are distinct records under distinct
// storage keys.
type Domain struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Enabled     bool     `json:"enabled"`
	ReadOnly    bool     `json:"read_only,omitempty"`
	OwnerID     string   `json:"owner_id,omitempty"`
	Description string   `json:"description"`
	Invariants  []string `json:"invariants"`
	Symbols     []Symbol `json:"symbols"`
	LastUpdated int64    `json:"last_updated,omitempty"` // epoch ms
}

// UnmarshalJSON defaults Enabled to true when the stored record omits it.
func (d *Domain) UnmarshalJSON(data []byte) error {
	type plain Domain
	aux := struct {
		Enabled *bool `json:"enabled"`
		*plain
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Enabled = aux.Enabled == nil || *aux.Enabled
	return nil
}

// findSymbol returns a pointer into d.Symbols, or nil.
func (d *Domain) findSymbol(id string) *Symbol {
	for i := range d.Symbols {
		if d.Symbols[i].ID == id {
			return &d.Symbols[i]
		}
	}
	return nil
}

// upsertSymbol replaces the symbol with sym.ID, or appends when absent.
func (d *Domain) upsertSymbol(sym Symbol) {
	for i := range d.Symbols {
		if d.Symbols[i].ID == sym.ID {
			d.Symbols[i] = sym
			return
		}
	}
	d.Symbols = append(d.Symbols, sym)
}

// removeSymbol deletes the symbol with id, reporting whether it was present.
func (d *Domain) removeSymbol(id string) bool {
	for i := range d.Symbols {
		if d.Symbols[i].ID == id {
			d.Symbols = append(d.Symbols[:i], d.Symbols[i+1:]...)
			return true
		}
	}
	return false
}

// timeToken encodes t as the opaque timestamp token stored on symbols.
func timeToken(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// decodeTimeToken parses a timestamp token, reporting failure instead of
// erroring so callers can treat bad tokens as absent.
func decodeTimeToken(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, token)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
