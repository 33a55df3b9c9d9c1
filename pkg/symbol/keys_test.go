package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyResolver(t *testing.T) {
	r := &KeyResolver{}

	assert.True(t, r.IsCallerScoped(DomainProfile))
	assert.True(t, r.IsCallerScoped(DomainSession))
	assert.False(t, r.IsCallerScoped("root"))
	assert.False(t, r.IsCallerScoped("anything-else"))

	assert.Equal(t, "runic:domain:root", r.Key("root", "alice"))
	assert.Equal(t, "runic:domain:root", r.Key("root", ""))
	assert.Equal(t, "runic:user:alice:domain:profile", r.Key(DomainProfile, "alice"))
	assert.Equal(t, "runic:user:default:domain:profile", r.Key(DomainProfile, ""))

	assert.Equal(t, "runic:domains", r.GlobalRegistryKey())
	assert.Equal(t, "runic:user:alice:domains", r.CallerRegistryKey("alice"))
	assert.Equal(t, "runic:user:default:domains", r.CallerRegistryKey(""))
}

func TestGuardCanAccess(t *testing.T) {
	g := NewGuard(&KeyResolver{})

	tests := []struct {
		name     string
		domainID string
		caller   string
		owner    string
		want     bool
	}{
		{"global always accessible", "root", "anyone", "", true},
		{"global accessible anonymously", "root", "", "", true},
		{"scoped unowned bootstrap", DomainProfile, "alice", "", true},
		{"scoped owner matches", DomainProfile, "alice", "alice", true},
		{"scoped owner mismatch", DomainProfile, "bob", "alice", false},
		{"scoped sentinel owner", DomainSession, "", DefaultCaller, true},
		{"scoped sentinel vs named owner", DomainSession, "", "alice", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.CanAccess(tt.domainID, tt.caller, tt.owner))
		})
	}
}

func TestGuardEnsureWritable(t *testing.T) {
	g := NewGuard(&KeyResolver{})

	// Read-only rejects everyone, admin included.
	err := g.EnsureWritable(&Domain{ID: "root", ReadOnly: true}, true)
	var roErr *ReadOnlyError
	assert.ErrorAs(t, err, &roErr)

	// Global domains need admin.
	err = g.EnsureWritable(&Domain{ID: "root"}, false)
	var adminErr *AdminRequiredError
	assert.ErrorAs(t, err, &adminErr)
	assert.NoError(t, g.EnsureWritable(&Domain{ID: "root"}, true))

	// Caller-scoped domains never need admin.
	assert.NoError(t, g.EnsureWritable(&Domain{ID: DomainProfile, OwnerID: "alice"}, false))
}
