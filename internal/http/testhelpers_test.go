package httpx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lanoire/lanoire-web/internal/adapters/backend"
	"github.com/lanoire/lanoire-web/internal/adapters/memory"
	"github.com/lanoire/lanoire-web/internal/service"
	"github.com/lanoire/lanoire-web/internal/testutil"
	"github.com/stretchr/testify/require"
)

const (
	templatePathFromTest = "../../web/templates"
	staticPathFromTest   = "../../web/static"
	testCSRFToken        = "csrf-test-token"
)

type backendCall struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

type backendReply struct {
	status int
	body   string
}

// stubBackend answers "METHOD /path" routes with queued replies. The last
// reply of a route repeats. Unknown routes answer 404.
type stubBackend struct {
	mu     sync.Mutex
	routes map[string][]backendReply
	calls  []backendCall
}

func newStubBackend() *stubBackend {
	return &stubBackend{routes: map[string][]backendReply{}}
}

func (s *stubBackend) on(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.routes[key] = append(s.routes[key], backendReply{status: status, body: body})
}

func (s *stubBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.calls = append(s.calls, backendCall{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
		Body:   string(data),
	})
	key := r.Method + " " + r.URL.Path
	replies := s.routes[key]
	reply := backendReply{status: http.StatusNotFound, body: `{"detail":"Not found."}`}
	if len(replies) > 0 {
		reply = replies[0]
		if len(replies) > 1 {
			s.routes[key] = replies[1:]
		}
	}
	s.mu.Unlock()

	w.WriteHeader(reply.status)
	_, _ = io.WriteString(w, reply.body)
}

func (s *stubBackend) callsTo(method, path string) []backendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []backendCall
	for _, c := range s.calls {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// testApp is the router wired to a stub backend and an in-memory session backend.
type testApp struct {
	t        *testing.T
	handler  http.Handler
	sessions *memory.SessionBackend
	backend  *stubBackend
	clock    *testutil.Clock
}

func newTestApp(t *testing.T, sessions *memory.SessionBackend) *testApp {
	t.Helper()
	if sessions == nil {
		sessions = memory.NewSessionBackend()
	}
	stub := newStubBackend()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	client, err := backend.New(backend.Config{BaseURL: srv.URL + "/api/v1", Timeout: 5 * time.Second})
	require.NoError(t, err)
	notifications, err := service.NewNotificationService(service.NotificationServiceOptions{})
	require.NoError(t, err)
	clock := testutil.NewClock(testutil.TestTime())

	h, err := NewRouter(RouterServices{
		Auth:          service.NewAuthService(service.AuthServiceOptions{Transport: client, Now: clock.Now}),
		Notifications: notifications,
		Transport:     client,
		Sessions:      sessions,
		TemplateFS:    os.DirFS(templatePathFromTest),
		StaticFS:      os.DirFS(staticPathFromTest),
		Now:           clock.Now,
	})
	require.NoError(t, err)
	return &testApp{t: t, handler: h, sessions: sessions, backend: stub, clock: clock}
}

type reqOpts struct {
	sid   string
	form  url.Values
	htmx  bool
	api   bool
	extra http.Header
}

func (a *testApp) do(method, path string, o reqOpts) *httptest.ResponseRecorder {
	a.t.Helper()
	var body io.Reader
	if o.form != nil {
		body = strings.NewReader(o.form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if o.form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	switch {
	case o.api:
		req.Header.Set("Accept", "application/json")
	default:
		req.Header.Set("Accept", "text/html")
	}
	if o.htmx {
		req.Header.Set("Hx-Request", "true")
	}
	if o.sid != "" {
		req.AddCookie(&http.Cookie{Name: DefaultSessionCookieName, Value: o.sid})
	}
	if method != http.MethodGet && method != http.MethodHead {
		req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRFToken})
		req.Header.Set(DefaultCSRFHeaderName, testCSRFToken)
	}
	for k, vs := range o.extra {
		req.Header[http.CanonicalHeaderKey(k)] = vs
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// responseCookie returns the named cookie set on the response, or nil.
func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// successEnvelope wraps data in the backend's success envelope.
func successEnvelope(data string) string {
	return `{"status":"success","data":` + data + `}`
}
