package httpx

import (
	"context"

	"github.com/lanoire/lanoire-web/internal/domain/access"
	"github.com/lanoire/lanoire-web/internal/ports"
)

// BrowserSession is the session context resolved for one request.
type BrowserSession struct {
	// ID is the session cookie value, "" when the browser has none.
	ID       string
	Store    ports.SessionStore
	Snapshot access.Snapshot
}

// SignedIn reports whether the browser holds an access credential.
func (s *BrowserSession) SignedIn() bool {
	return s != nil && s.Snapshot.HasCredential()
}

// sessionKey is an unexported context key type to avoid collisions across packages.
type sessionKey struct{}

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *BrowserSession) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the browser session from context and a boolean indicating presence.
func SessionFromContext(ctx context.Context) (*BrowserSession, bool) {
	if s, ok := ctx.Value(sessionKey{}).(*BrowserSession); ok && s != nil {
		return s, true
	}
	return nil, false
}
