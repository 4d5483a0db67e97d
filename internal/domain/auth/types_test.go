package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityWithRoles(names ...string) Identity {
	id := Identity{Username: "cole"}
	for i, n := range names {
		id.Roles = append(id.Roles, Role{ID: int64(i + 1), Name: n})
	}
	return id
}

func TestIdentity_HasRole(t *testing.T) {
	id := identityWithRoles("Detective", "Cadet")

	tests := []struct {
		name string
		role string
		want bool
	}{
		{name: "exact match", role: "Detective", want: true},
		{name: "second role", role: "Cadet", want: true},
		{name: "case sensitive", role: "detective", want: false},
		{name: "no prefix match", role: "Detect", want: false},
		{name: "no trailing space match", role: "Detective ", want: false},
		{name: "empty name", role: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, id.HasRole(tt.role))
		})
	}
}

func TestIdentity_HasAnyRole(t *testing.T) {
	id := identityWithRoles("Coroner")

	assert.True(t, id.HasAnyRole("Judge", "Coroner"))
	assert.False(t, id.HasAnyRole("Judge", "Captain"))
	assert.False(t, id.HasAnyRole())
	assert.False(t, Identity{}.HasAnyRole("Coroner"))
}

func TestIdentity_IsSuperAdmin(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want bool
	}{
		{name: "superuser flag only", id: Identity{IsSuperuser: true}, want: true},
		{name: "super admin role only", id: identityWithRoles("Cadet", SuperAdminRole), want: true},
		{name: "neither", id: identityWithRoles("Captain"), want: false},
		{name: "role name differs in case", id: identityWithRoles("system administrator"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.id.IsSuperAdmin())
		})
	}
}

func TestIdentity_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want string
	}{
		{name: "full name", id: Identity{Username: "cole", FirstName: "Cole", LastName: "Phelps"}, want: "Cole Phelps"},
		{name: "first name only", id: Identity{Username: "cole", FirstName: "Cole"}, want: "Cole"},
		{name: "last name only", id: Identity{Username: "cole", LastName: "Phelps"}, want: "Phelps"},
		{name: "falls back to username", id: Identity{Username: "cole", FirstName: "  "}, want: "cole"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.id.DisplayName())
		})
	}
}

func TestIdentity_RoleNames(t *testing.T) {
	assert.Equal(t, []string{"Judge", "Captain"}, identityWithRoles("Judge", "Captain").RoleNames())
	assert.Empty(t, Identity{}.RoleNames())
}

func TestParseIdentity_Absent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "whitespace", raw: "   "},
		{name: "null", raw: "null"},
		{name: "corrupt json", raw: "{bad"},
		{name: "json string", raw: `"cole"`},
		{name: "json array", raw: `[{"id":1}]`},
		{name: "uncoercible roles", raw: `{"id":1,"roles":"Detective"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ParseIdentity(tt.raw)
			assert.False(t, ok)
			assert.Nil(t, id)
		})
	}
}

func TestParseIdentity_MissingOptionalFields(t *testing.T) {
	id, ok := ParseIdentity(`{"username":"cole"}`)
	require.True(t, ok)

	assert.Equal(t, "cole", id.Username)
	assert.Zero(t, id.ID)
	assert.Empty(t, id.Email)
	assert.False(t, id.IsSuperuser)
	assert.Empty(t, id.Roles)
	assert.False(t, id.IsSuperAdmin())
}

func TestParseIdentity_NullFieldsAreZero(t *testing.T) {
	id, ok := ParseIdentity(`{"id":4,"first_name":null,"roles":null}`)
	require.True(t, ok)

	assert.Equal(t, int64(4), id.ID)
	assert.Empty(t, id.FirstName)
	assert.Empty(t, id.Roles)
}

func TestParseIdentity_CoercesScalarDrift(t *testing.T) {
	id, ok := ParseIdentity(`{"id":"7","is_superuser":1,"roles":[{"id":"3","name":"Detective"}]}`)
	require.True(t, ok)

	assert.Equal(t, int64(7), id.ID)
	assert.True(t, id.IsSuperuser)
	assert.Equal(t, []Role{{ID: 3, Name: "Detective"}}, id.Roles)
}

func TestParseIdentity_IgnoresUnknownFields(t *testing.T) {
	id, ok := ParseIdentity(`{"id":2,"username":"roy","badge":"1247","roles":[{"id":5,"name":"Captain","level":3}]}`)
	require.True(t, ok)

	assert.Equal(t, "roy", id.Username)
	assert.True(t, id.HasRole("Captain"))
}

func TestEncodeIdentity_RoundTrips(t *testing.T) {
	want := Identity{ID: 9, Username: "roy", IsSuperuser: true, Roles: []Role{{ID: 1, Name: SuperAdminRole}}}

	raw, err := EncodeIdentity(want)
	require.NoError(t, err)
	got, ok := ParseIdentity(raw)
	require.True(t, ok)
	assert.Equal(t, want, *got)
}

func TestStorageKeys(t *testing.T) {
	assert.Equal(t, []StorageKey{KeyAccessToken, KeyRefreshToken, KeyUser}, StorageKeys())
}
