package testutil

import (
	"context"

	"github.com/lanoire/lanoire-web/internal/adapters/memory"
	domainauth "github.com/lanoire/lanoire-web/internal/domain/auth"
)

// IdentityBuilder provides a fluent interface for building identity snapshots.
type IdentityBuilder struct {
	id domainauth.Identity
	// nextRoleID numbers roles added with WithRoles.
	nextRoleID int64
}

// NewIdentity creates an IdentityBuilder for an active user with no roles.
func NewIdentity() *IdentityBuilder {
	return &IdentityBuilder{
		id: domainauth.Identity{
			ID:        1,
			Username:  "cole.phelps",
			Email:     "cole.phelps@lapd.example",
			FirstName: "Cole",
			LastName:  "Phelps",
			IsActive:  true,
			Roles:     []domainauth.Role{},
		},
		nextRoleID: 1,
	}
}

// WithID sets the identity ID.
func (b *IdentityBuilder) WithID(id int64) *IdentityBuilder {
	b.id.ID = id
	return b
}

// WithUsername sets the username.
func (b *IdentityBuilder) WithUsername(username string) *IdentityBuilder {
	b.id.Username = username
	return b
}

// WithRoles appends roles by name.
func (b *IdentityBuilder) WithRoles(names ...string) *IdentityBuilder {
	for _, name := range names {
		b.id.Roles = append(b.id.Roles, domainauth.Role{ID: b.nextRoleID, Name: name})
		b.nextRoleID++
	}
	return b
}

// Superuser sets the superuser flag.
func (b *IdentityBuilder) Superuser() *IdentityBuilder {
	b.id.IsSuperuser = true
	return b
}

// Build returns the identity.
func (b *IdentityBuilder) Build() domainauth.Identity {
	out := b.id
	out.Roles = append([]domainauth.Role(nil), b.id.Roles...)
	return out
}

// JSON returns the identity as it is persisted in a session store.
func (b *IdentityBuilder) JSON() string {
	raw, err := domainauth.EncodeIdentity(b.Build())
	if err != nil {
		panic(err)
	}
	return raw
}

// SeedSession writes a full session into store.
func SeedSession(t TestingTB, store interface {
	Set(ctx context.Context, key domainauth.StorageKey, value string) error
}, access string, identity *IdentityBuilder,
) {
	t.Helper()
	ctx := context.Background()
	entries := map[domainauth.StorageKey]string{domainauth.KeyAccessToken: access}
	if identity != nil {
		entries[domainauth.KeyUser] = identity.JSON()
		entries[domainauth.KeyRefreshToken] = "refresh-" + access
	}
	for key, value := range entries {
		if err := store.Set(ctx, key, value); err != nil {
			t.Fatalf("seed session %s: %v", key, err)
		}
	}
}

// NewSignedInBackend returns a memory backend holding one full session under sessionID.
func NewSignedInBackend(t TestingTB, sessionID string, identity *IdentityBuilder) *memory.SessionBackend {
	t.Helper()
	backend := memory.NewSessionBackend()
	SeedSession(t, backend.Scope(sessionID), "T-"+sessionID, identity)
	return backend
}
