package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"encoding/json"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// SuperAdminRole is the role name that bypasses every role-restricted destination.
// The backend exposes it as a plain role, so it is matched by exact name.
const SuperAdminRole = "System Administrator"

// StorageKey names one of the persisted session entries of a browser context.
type StorageKey string

const (
	KeyAccessToken  StorageKey = "access_token"
	KeyRefreshToken StorageKey = "refresh_token"
	KeyUser         StorageKey = "user"
)

// StorageKeys lists every persisted session entry in a stable order.
func StorageKeys() []StorageKey {
	return []StorageKey{KeyAccessToken, KeyRefreshToken, KeyUser}
}

// Role is a named permission grouping. Comparison is by exact Name.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Identity is the snapshot of the authenticated user persisted next to the credentials.
// Absent fields decode to their zero values.
type Identity struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
	Roles       []Role `json:"roles"`
}

// HasRole reports whether the identity holds a role with exactly this name.
func (i Identity) HasRole(name string) bool {
	for _, r := range i.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity holds at least one of the named roles.
func (i Identity) HasAnyRole(names ...string) bool {
	for _, n := range names {
		if i.HasRole(n) {
			return true
		}
	}
	return false
}

// IsSuperAdmin reports whether the identity bypasses role checks.
func (i Identity) IsSuperAdmin() bool {
	return i.IsSuperuser || i.HasRole(SuperAdminRole)
}

// DisplayName returns "First Last", falling back to the username.
func (i Identity) DisplayName() string {
	full := strings.TrimSpace(i.FirstName + " " + i.LastName)
	if full != "" {
		return full
	}
	return i.Username
}

// RoleNames returns the names of the held roles in backend order.
func (i Identity) RoleNames() []string {
	names := make([]string, 0, len(i.Roles))
	for _, r := range i.Roles {
		names = append(names, r.Name)
	}
	return names
}

// Tokens are the credentials issued by the backend on login or registration.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// ParseIdentity decodes a persisted identity snapshot.
// Scalar fields are weakly typed ("7" for an id, 1 for a flag) so backend shape
// drift does not discard the snapshot. It reports false for empty input, input
// that is not a JSON object, and values that cannot be coerced.
func ParseIdentity(raw string) (*Identity, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		return nil, false
	}
	var id Identity
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &id,
	})
	if err != nil {
		return nil, false
	}
	if err := dec.Decode(fields); err != nil {
		return nil, false
	}
	return &id, true
}

// EncodeIdentity serialises an identity snapshot for persistence.
func EncodeIdentity(id Identity) (string, error) {
	data, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
