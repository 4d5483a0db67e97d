// Package access decides, per navigation attempt, whether a destination renders
// or the browser is redirected. Decisions are pure and never return errors:
// anything ambiguous is treated as "not signed in".
package access

import (
	"context"

	domainauth "github.com/lanoire/lanoire-web/internal/domain/auth"
	"github.com/lanoire/lanoire-web/internal/ports"
)

const (
	// SignInPath is where unauthenticated browsers are sent.
	SignInPath = "/login"
	// LandingPath is where authenticated browsers are sent when a page is not for them.
	LandingPath = "/dashboard"
)

// Snapshot is the session state a gate decision is based on.
type Snapshot struct {
	// AccessToken is the persisted access credential, "" when absent.
	AccessToken string
	// RawIdentity is the persisted identity snapshot text, "" when absent.
	RawIdentity string
	// Identity is the decoded snapshot; nil when absent or corrupt.
	Identity *domainauth.Identity
}

// HasCredential reports whether an access credential is persisted.
func (s Snapshot) HasCredential() bool { return s.AccessToken != "" }

// HasFullSession reports whether the credential and a readable identity snapshot are
// both persisted. A corrupt snapshot counts as no snapshot.
func (s Snapshot) HasFullSession() bool { return s.AccessToken != "" && s.Identity != nil }

// NewSnapshot builds a Snapshot from raw persisted values.
func NewSnapshot(accessToken, rawIdentity string) Snapshot {
	id, _ := domainauth.ParseIdentity(rawIdentity)
	return Snapshot{AccessToken: accessToken, RawIdentity: rawIdentity, Identity: id}
}

// Load reads the current snapshot from the store. Read failures yield an empty
// entry for that key so the resulting decisions fail closed.
func Load(ctx context.Context, store ports.SessionStore) Snapshot {
	if store == nil {
		return Snapshot{}
	}
	token, err := store.Get(ctx, domainauth.KeyAccessToken)
	if err != nil {
		token = ""
	}
	raw, err := store.Get(ctx, domainauth.KeyUser)
	if err != nil {
		raw = ""
	}
	return NewSnapshot(token, raw)
}

// Decision is the outcome of a gate: render the destination or redirect.
type Decision struct {
	Render   bool
	Redirect string
}

// Rendered is the decision to render the requested destination.
func Rendered() Decision { return Decision{Render: true} }

// RedirectTo is the decision to send the browser elsewhere.
func RedirectTo(path string) Decision { return Decision{Redirect: path} }

// Authenticated renders when an access credential is present, regardless of
// whether an identity snapshot accompanies it. Validity is discovered lazily by
// the backend answering 401.
func Authenticated(s Snapshot) Decision {
	if !s.HasCredential() {
		return RedirectTo(SignInPath)
	}
	return Rendered()
}

// GuestOnly renders sign-in style pages unless a full session is present.
// A credential without an identity snapshot still renders the guest page.
func GuestOnly(s Snapshot) Decision {
	if s.HasFullSession() {
		return RedirectTo(LandingPath)
	}
	return Rendered()
}

// RoleRestricted renders when the identity holds any of the required roles.
// Super admins always render; an empty requirement admits any identity.
// An authenticated but unauthorized identity is sent to the landing page.
func RoleRestricted(s Snapshot, required []string) Decision {
	if s.Identity == nil {
		return RedirectTo(SignInPath)
	}
	if s.Identity.IsSuperAdmin() {
		return Rendered()
	}
	if len(required) == 0 {
		return Rendered()
	}
	if !s.Identity.HasAnyRole(required...) {
		return RedirectTo(LandingPath)
	}
	return Rendered()
}
