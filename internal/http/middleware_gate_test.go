package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lanoire/lanoire-web/internal/adapters/memory"
	"github.com/lanoire/lanoire-web/internal/domain/navigation"
	"github.com/lanoire/lanoire-web/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gateFor(t *testing.T, identity *testutil.IdentityBuilder) *Gate {
	t.Helper()
	return &Gate{Cookies: SessionCookies{Backend: testutil.NewSignedInBackend(t, "sid-1", identity)}}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFromContext(r.Context()); !ok {
			http.Error(w, "no session in context", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func gateRequest(path, sid string, api bool) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if api {
		req.Header.Set("Accept", "application/json")
	} else {
		req.Header.Set("Accept", "text/html")
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: DefaultSessionCookieName, Value: sid})
	}
	return req
}

func TestGate_Guard(t *testing.T) {
	detective := testutil.NewIdentity().WithRoles("Detective")
	tests := []struct {
		name         string
		identity     *testutil.IdentityBuilder
		sid          string
		path         string
		middleware   func(g *Gate) func(http.Handler) http.Handler
		wantStatus   int
		wantLocation string
	}{
		{
			name:         "authenticated without cookie",
			path:         "/complaints",
			middleware:   func(g *Gate) func(http.Handler) http.Handler { return g.RequireAuthenticated() },
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/login?redirect_uri=%2Fcomplaints",
		},
		{
			name:       "authenticated with session",
			identity:   detective,
			sid:        "sid-1",
			path:       "/complaints",
			middleware: func(g *Gate) func(http.Handler) http.Handler { return g.RequireAuthenticated() },
			wantStatus: http.StatusOK,
		},
		{
			name:       "authenticated with credential only",
			sid:        "sid-1",
			path:       "/complaints",
			middleware: func(g *Gate) func(http.Handler) http.Handler { return g.RequireAuthenticated() },
			wantStatus: http.StatusOK,
		},
		{
			name:         "guest with full session",
			identity:     detective,
			sid:          "sid-1",
			path:         "/login",
			middleware:   func(g *Gate) func(http.Handler) http.Handler { return g.GuestOnly() },
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/dashboard",
		},
		{
			name:       "guest with credential only",
			sid:        "sid-1",
			path:       "/login",
			middleware: func(g *Gate) func(http.Handler) http.Handler { return g.GuestOnly() },
			wantStatus: http.StatusOK,
		},
		{
			name:       "guest without cookie",
			path:       "/login",
			middleware: func(g *Gate) func(http.Handler) http.Handler { return g.GuestOnly() },
			wantStatus: http.StatusOK,
		},
		{
			name:       "role held",
			identity:   detective,
			sid:        "sid-1",
			path:       "/detective-board",
			middleware: func(g *Gate) func(http.Handler) http.Handler { return g.RequireRoles("Detective") },
			wantStatus: http.StatusOK,
		},
		{
			name:         "role missing",
			identity:     detective,
			sid:          "sid-1",
			path:         "/evidence-review",
			middleware:   func(g *Gate) func(http.Handler) http.Handler { return g.RequireRoles("Coroner") },
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/dashboard",
		},
		{
			name:       "super admin bypasses roles",
			identity:   testutil.NewIdentity().Superuser(),
			sid:        "sid-1",
			path:       "/evidence-review",
			middleware: func(g *Gate) func(http.Handler) http.Handler { return g.RequireRoles("Coroner") },
			wantStatus: http.StatusOK,
		},
		{
			name:       "empty role requirement admits any identity",
			identity:   testutil.NewIdentity(),
			sid:        "sid-1",
			path:       "/anything",
			middleware: func(g *Gate) func(http.Handler) http.Handler { return g.RequireRoles() },
			wantStatus: http.StatusOK,
		},
		{
			name:         "roles without identity",
			sid:          "sid-1",
			path:         "/cases",
			middleware:   func(g *Gate) func(http.Handler) http.Handler { return g.RequireRoles("Detective") },
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/login?redirect_uri=%2Fcases",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := gateFor(t, tt.identity)
			rec := httptest.NewRecorder()
			tt.middleware(g)(okHandler()).ServeHTTP(rec, gateRequest(tt.path, tt.sid, false))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
		})
	}
}

func TestGate_APIRefusalsAreJSON(t *testing.T) {
	g := gateFor(t, testutil.NewIdentity().WithRoles("Detective"))

	rec := httptest.NewRecorder()
	g.RequireAuthenticated()(okHandler()).ServeHTTP(rec, gateRequest("/api/notifications", "", true))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authentication_required","message":"authentication required"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	g.RequireRoles("Judge")(okHandler()).ServeHTTP(rec, gateRequest("/api/reports", "sid-1", true))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient_permissions")
}

func TestGate_HTMXRedirect(t *testing.T) {
	g := gateFor(t, nil)
	req := gateRequest("/cases", "", false)
	req.Header.Set("Hx-Request", "true")
	rec := httptest.NewRecorder()

	g.Guard(navigation.Destination{Level: navigation.Authenticated})(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/login?redirect_uri=%2Fcases", rec.Header().Get("Hx-Redirect"))
}

func TestGate_PublicAlwaysRenders(t *testing.T) {
	g := &Gate{Cookies: SessionCookies{Backend: memory.NewSessionBackend()}}
	rec := httptest.NewRecorder()

	g.Guard(navigation.Destination{Level: navigation.Public})(okHandler()).ServeHTTP(rec, gateRequest("/", "", false))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGate_SessionsResolvesOnce(t *testing.T) {
	g := gateFor(t, testutil.NewIdentity())
	var seen *BrowserSession
	h := g.Sessions()(g.Sessions()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionFromContext(r.Context())
	})))

	h.ServeHTTP(httptest.NewRecorder(), gateRequest("/", "sid-1", false))

	require.NotNil(t, seen)
	assert.Equal(t, "sid-1", seen.ID)
	assert.True(t, seen.SignedIn())
	require.NotNil(t, seen.Snapshot.Identity)
	assert.Equal(t, "cole.phelps", seen.Snapshot.Identity.Username)
}

func TestSafeRedirectPath(t *testing.T) {
	tests := map[string]string{
		"":                                 "/",
		"/cases?page=2":                    "/cases?page=2",
		"cases":                            "/",
		"//evil.example/x":                 "/",
		"https://evil.example/x":           "/",
		"/\\evil.example":                  "/",
		"javascript:alert(1)":              "/",
		"/investigation/intensive-pursuit": "/investigation/intensive-pursuit",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeRedirectPath(in), in)
	}
}

func TestPostSignInPath(t *testing.T) {
	tests := map[string]string{
		"":                        "/dashboard",
		"/":                       "/dashboard",
		"/login":                  "/dashboard",
		"/login?redirect_uri=%2F": "/dashboard",
		"/register":               "/dashboard",
		"/cases":                  "/cases",
		"https://evil.example/":   "/dashboard",
	}
	for in, want := range tests {
		assert.Equal(t, want, postSignInPath(in), in)
	}
}
