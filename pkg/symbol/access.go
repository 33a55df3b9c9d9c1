package symbol

// Guard makes the authorization decisions for domain reads and writes.
// Pure checks; callers run them before every read and every mutation.
type Guard struct {
	resolver *KeyResolver
}

// NewGuard builds a Guard over resolver's scoping rules.
func NewGuard(resolver *KeyResolver) *Guard {
	return &Guard{resolver: resolver}
}

// CanAccess reports whether callerID may read domainID. Global domains are
// always accessible. Caller-scoped domains are accessible only when no
// owner is recorded yet (bootstrap) or the caller is the owner.
func (g *Guard) CanAccess(domainID, callerID, ownerID string) bool {
	if !g.resolver.IsCallerScoped(domainID) {
		return true
	}
	return ownerID == "" || g.resolver.Caller(callerID) == ownerID
}

// EnsureWritable authorizes a mutation of d. A read-only domain rejects
// every writer. Global domains additionally require admin privilege;
// caller-scoped domains never do, since ownership is already enforced by
// CanAccess.
func (g *Guard) EnsureWritable(d *Domain, admin bool) error {
	if d.ReadOnly {
		return &ReadOnlyError{Domain: d.ID}
	}
	if !g.resolver.IsCallerScoped(d.ID) && !admin {
		return &AdminRequiredError{Domain: d.ID}
	}
	return nil
}
