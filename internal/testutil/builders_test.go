package testutil

import (
	"context"
	"testing"

	domainauth "github.com/lanoire/lanoire-web/internal/domain/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityBuilder(t *testing.T) {
	b := NewIdentity().WithID(7).WithRoles("Detective", "Cadet")
	first := b.Build()
	b.WithRoles("Judge")

	assert.Equal(t, int64(7), first.ID)
	assert.Equal(t, []string{"Detective", "Cadet"}, first.RoleNames())
	assert.Len(t, b.Build().Roles, 3)

	parsed, ok := domainauth.ParseIdentity(b.JSON())
	require.True(t, ok)
	assert.True(t, parsed.HasRole("Judge"))
}

func TestNewSignedInBackend(t *testing.T) {
	backend := NewSignedInBackend(t, "sid-1", NewIdentity().Superuser())
	store := backend.Scope("sid-1")
	ctx := context.Background()

	access, err := store.Get(ctx, domainauth.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "T-sid-1", access)

	raw, err := store.Get(ctx, domainauth.KeyUser)
	require.NoError(t, err)
	id, ok := domainauth.ParseIdentity(raw)
	require.True(t, ok)
	assert.True(t, id.IsSuperAdmin())
}

func TestSeedSession_PartialWithoutIdentity(t *testing.T) {
	backend := NewSignedInBackend(t, "other", nil)
	store := backend.Scope("other")

	raw, err := store.Get(context.Background(), domainauth.KeyUser)
	require.NoError(t, err)
	assert.Empty(t, raw)
}
