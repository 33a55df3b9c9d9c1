package symbol

// KeyResolver maps logical domain identifiers to physical storage keys and
// classifies domains as global or caller-scoped. Pure, no I/O.
//
// Caller-scoped identifiers are a fixed, closed set: the personal profile
// and session-state domains always resolve under a per-caller namespace.
// Every other identifier resolves under the shared global namespace.
type KeyResolver struct{}

// DefaultCaller is the sentinel identity used when a caller-scoped domain
// is accessed without a caller id. It yields a distinct, consistent
// shared-default record for unauthenticated or internal access.
const DefaultCaller = "default"

const (
	keyPrefix         = "runic:"
	globalRegistryKey = keyPrefix + "domains"
)

// Caller-scoped domain identifiers.
const (
	DomainProfile = "profile"
	DomainSession = "session"
)

var callerScoped = map[string]bool{
	DomainProfile: true,
	DomainSession: true,
}

// IsCallerScoped reports whether domainID resolves per-caller.
func (r *KeyResolver) IsCallerScoped(domainID string) bool {
	return callerScoped[domainID]
}

// Caller normalizes a caller id, substituting the sentinel for empty.
func (r *KeyResolver) Caller(callerID string) string {
	if callerID == "" {
		return DefaultCaller
	}
	return callerID
}

// Key derives the storage key for (domainID, callerID). Global domains
// ignore the caller; caller-scoped domains namespace by it.
func (r *KeyResolver) Key(domainID, callerID string) string {
	if r.IsCallerScoped(domainID) {
		return keyPrefix + "user:" + r.Caller(callerID) + ":domain:" + domainID
	}
	return keyPrefix + "domain:" + domainID
}

// GlobalRegistryKey is the set enumerating all known global domain ids.
func (r *KeyResolver) GlobalRegistryKey() string {
	return globalRegistryKey
}

// CallerRegistryKey is the set enumerating callerID's scoped domain ids.
func (r *KeyResolver) CallerRegistryKey(callerID string) string {
	return keyPrefix + "user:" + r.Caller(callerID) + ":domains"
}
