package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lanoire/lanoire-web/internal/domain/access"
	"github.com/lanoire/lanoire-web/internal/ports"
)

// DefaultSessionCookieName names the cookie holding the browser session ID.
const DefaultSessionCookieName = "session_id"

// SessionCookies maps the session cookie of a request to its session store.
type SessionCookies struct {
	Backend ports.SessionBackend
	Name    string
	Domain  string
	Now     func() time.Time
}

func (c SessionCookies) name() string {
	if c.Name == "" {
		return DefaultSessionCookieName
	}
	return c.Name
}

func (c SessionCookies) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Resolve returns the session for the request's cookie. A browser without a
// cookie gets an empty, unnamed store so every read answers "absent".
func (c SessionCookies) Resolve(r *http.Request) *BrowserSession {
	id := ""
	if cookie, err := r.Cookie(c.name()); err == nil {
		id = strings.TrimSpace(cookie.Value)
	}
	store := c.Backend.Scope(id)
	return &BrowserSession{
		ID:       id,
		Store:    store,
		Snapshot: access.Load(r.Context(), store),
	}
}

// Rotate allocates a fresh session ID and its store. Sign-in always writes into
// a new ID so a pre-existing cookie value is never promoted to a signed-in session.
func (c SessionCookies) Rotate() (string, ports.SessionStore) {
	id := uuid.NewString()
	return id, c.Backend.Scope(id)
}

// Issue writes the session cookie, expiring it with the session.
func (c SessionCookies) Issue(w http.ResponseWriter, r *http.Request, id string, expiresAt time.Time) {
	maxAge := int(expiresAt.Sub(c.now()).Seconds())
	if maxAge <= 0 {
		// Expiry already passed or unknown: keep it for the browser session only.
		maxAge = 0
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    id,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// Clear expires the session cookie. It mirrors the attributes used by Issue.
func (c SessionCookies) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// isSecureRequest reports HTTPS, directly or through a proxy.
// X-Forwarded-Proto may carry a comma separated chain.
func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	for _, proto := range strings.Split(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}
