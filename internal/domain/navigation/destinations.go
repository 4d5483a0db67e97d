// Package navigation describes the named destinations of the front end and
// the access level each one requires.
package navigation

import (
	"github.com/lanoire/lanoire-web/internal/domain/access"
	domainauth "github.com/lanoire/lanoire-web/internal/domain/auth"
)

// Level is the kind of gate guarding a destination.
type Level int

const (
	// Public destinations bypass the gate.
	Public Level = iota
	// Guest destinations are only for browsers without a full session.
	Guest
	// Authenticated destinations need an access credential.
	Authenticated
	// Restricted destinations need an access credential and one of Roles.
	Restricted
)

// Police staff roles that may open case and evidence pages.
var policeStaff = []string{
	"Police Officer", "Patrol Officer", "Detective", "Sergeant", "Captain", "Police Chief", "Cadet",
}

// Destination is a named navigation target.
type Destination struct {
	Path  string
	Title string
	Level Level
	Roles []string
	// InMenu marks destinations listed in the main menu.
	InMenu bool
}

// Decide applies the destination's gate to a session snapshot.
func (d Destination) Decide(s access.Snapshot) access.Decision {
	switch d.Level {
	case Public:
		return access.Rendered()
	case Guest:
		return access.GuestOnly(s)
	case Authenticated:
		return access.Authenticated(s)
	case Restricted:
		if dec := access.Authenticated(s); !dec.Render {
			return dec
		}
		return access.RoleRestricted(s, d.Roles)
	default:
		return access.RedirectTo(access.SignInPath)
	}
}

// Registry is an ordered set of destinations.
type Registry struct {
	items []Destination
	index map[string]int
}

// NewRegistry builds a registry preserving the given order. Later duplicates of a path are ignored.
func NewRegistry(items ...Destination) *Registry {
	r := &Registry{index: make(map[string]int, len(items))}
	for _, d := range items {
		if _, dup := r.index[d.Path]; dup {
			continue
		}
		r.index[d.Path] = len(r.items)
		r.items = append(r.items, d)
	}
	return r
}

// All returns the destinations in registration order.
func (r *Registry) All() []Destination {
	out := make([]Destination, len(r.items))
	copy(out, r.items)
	return out
}

// Lookup finds a destination by path.
func (r *Registry) Lookup(path string) (Destination, bool) {
	i, ok := r.index[path]
	if !ok {
		return Destination{}, false
	}
	return r.items[i], true
}

// Menu returns the menu destinations the given snapshot may open, in order.
func (r *Registry) Menu(s access.Snapshot) []Destination {
	var out []Destination
	for _, d := range r.items {
		if d.InMenu && d.Decide(s).Render {
			out = append(out, d)
		}
	}
	return out
}

// Default returns the La Noire destination map.
func Default() *Registry {
	admin := []string{domainauth.SuperAdminRole}
	return NewRegistry(
		Destination{Path: "/", Title: "Home", Level: Public},
		Destination{Path: "/login", Title: "Sign in", Level: Guest},
		Destination{Path: "/register", Title: "Register", Level: Guest},
		Destination{Path: "/dashboard", Title: "Dashboard", Level: Authenticated, InMenu: true},
		Destination{Path: "/complaints", Title: "Complaints", Level: Authenticated, InMenu: true},
		Destination{Path: "/complaints/new", Title: "New Complaint", Level: Authenticated, InMenu: true},
		Destination{
			Path: "/investigation/intensive-pursuit", Title: "Intensive Pursuit",
			Level: Authenticated, InMenu: true,
		},
		Destination{Path: "/notifications", Title: "Notifications", Level: Authenticated, InMenu: true},
		Destination{Path: "/cases", Title: "Cases", Level: Restricted, Roles: policeStaff, InMenu: true},
		Destination{Path: "/evidence", Title: "Evidence", Level: Restricted, Roles: policeStaff, InMenu: true},
		Destination{
			Path: "/evidence-review", Title: "Evidence Review",
			Level: Restricted, Roles: []string{"Coroner"}, InMenu: true,
		},
		Destination{
			Path: "/detective-board", Title: "Detective Board",
			Level: Restricted, Roles: []string{"Detective"}, InMenu: true,
		},
		Destination{
			Path: "/reports", Title: "Reports",
			Level: Restricted, Roles: []string{"Judge", "Captain", "Police Chief"}, InMenu: true,
		},
		Destination{Path: "/rewards", Title: "Rewards", Level: Authenticated, InMenu: true},
		Destination{Path: "/statistics", Title: "Statistics", Level: Authenticated, InMenu: true},
		Destination{Path: "/profile", Title: "Profile", Level: Authenticated},
		Destination{Path: "/admin", Title: "Admin", Level: Restricted, Roles: admin, InMenu: true},
		Destination{Path: "/admin/users", Title: "Users", Level: Restricted, Roles: admin},
		Destination{Path: "/admin/roles", Title: "Roles", Level: Restricted, Roles: admin},
		Destination{Path: "/admin/permissions", Title: "Permissions", Level: Restricted, Roles: admin},
		Destination{Path: "/admin/cases", Title: "Cases", Level: Restricted, Roles: admin},
		Destination{Path: "/admin/complaints", Title: "Complaints", Level: Restricted, Roles: admin},
		Destination{Path: "/admin/rewards", Title: "Rewards", Level: Restricted, Roles: admin},
	)
}
