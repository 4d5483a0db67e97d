package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/lanoire/lanoire-web/internal/domain/access"
	"github.com/lanoire/lanoire-web/internal/domain/navigation"
)

// redirectParam carries the page to return to after signing in.
const redirectParam = "redirect_uri"

// Gate resolves browser sessions and enforces destination access levels.
type Gate struct {
	Cookies SessionCookies
}

// Sessions returns a middleware that resolves the request's session once and
// stores it in the context for later gates and handlers.
func (g *Gate) Sessions() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := SessionFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := SetSessionInContext(r.Context(), g.Cookies.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// session returns the context session, resolving it when Sessions was not applied.
func (g *Gate) session(r *http.Request) *BrowserSession {
	if s, ok := SessionFromContext(r.Context()); ok {
		return s
	}
	return g.Cookies.Resolve(r)
}

// Guard returns a middleware applying dest's gate on every request.
// For browser requests a refusal redirects; for API requests it is a 401 or 403 JSON response.
func (g *Gate) Guard(dest navigation.Destination) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := g.session(r)
			dec := dest.Decide(sess.Snapshot)
			if dec.Render {
				next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), sess)))
				return
			}

			if !IsBrowserRequest(r) {
				writeGateRefusal(w, dec)
				return
			}
			if dec.Redirect == access.SignInPath {
				redirectToSignIn(w, r)
				return
			}
			redirectBrowser(w, r, dec.Redirect)
		})
	}
}

// RequireAuthenticated admits requests holding an access credential.
func (g *Gate) RequireAuthenticated() func(http.Handler) http.Handler {
	return g.Guard(navigation.Destination{Level: navigation.Authenticated})
}

// GuestOnly admits requests without a full session.
func (g *Gate) GuestOnly() func(http.Handler) http.Handler {
	return g.Guard(navigation.Destination{Level: navigation.Guest})
}

// RequireRoles admits signed-in identities holding any of roles.
func (g *Gate) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return g.Guard(navigation.Destination{Level: navigation.Restricted, Roles: roles})
}

func writeGateRefusal(w http.ResponseWriter, dec access.Decision) {
	if dec.Redirect == access.SignInPath {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}
	WriteError(w, ErrorParams{
		Code:    http.StatusForbidden,
		ErrCode: "insufficient_permissions",
		Err:     errors.New("insufficient permissions"),
	})
}

// redirectBrowser sends the browser to location. htmx requests get an
// Hx-Redirect so the whole page navigates instead of swapping a fragment.
func redirectBrowser(w http.ResponseWriter, r *http.Request, location string) {
	if IsHTMX(r) {
		SetHXRedirect(w, location)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// redirectToSignIn redirects to the sign-in page, remembering the current page.
func redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	redirectBrowser(w, r, signInURL(redirectPathForRequest(r)))
}

func signInURL(returnTo string) string {
	u := url.URL{Path: access.SignInPath}
	if returnTo != "" && returnTo != "/" {
		q := url.Values{}
		q.Set(redirectParam, returnTo)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func redirectPathForRequest(r *http.Request) string {
	if IsHTMX(r) {
		if current := safeRedirectFromURL(r.Header.Get("Hx-Current-Url")); current != "" {
			return current
		}
	}
	if r.Method != http.MethodGet {
		return ""
	}
	return safeRedirectPath(r.URL.RequestURI())
}

func safeRedirectFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	// Reject scheme-relative or host-only references.
	if u.Host != "" && !u.IsAbs() {
		return ""
	}
	if u.IsAbs() {
		return safeRedirectPath(u.RequestURI())
	}
	return safeRedirectPath(raw)
}

// safeRedirectPath keeps redirects on this origin: the candidate must be a
// relative path starting with a single "/". Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" || strings.HasPrefix(candidate, "//") || strings.Contains(candidate, "\\") {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}

// postSignInPath picks where a fresh session lands: the remembered page, or
// the landing page when there is none or it is a guest-only page.
func postSignInPath(candidate string) string {
	p := safeRedirectPath(candidate)
	if p == "/" || p == access.SignInPath || strings.HasPrefix(p, access.SignInPath+"?") ||
		strings.HasPrefix(p, "/register") {
		return access.LandingPath
	}
	return p
}
