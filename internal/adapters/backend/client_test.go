package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/lanoire/lanoire-web/internal/adapters/memory"
	domainauth "github.com/lanoire/lanoire-web/internal/domain/auth"
	"github.com/lanoire/lanoire-web/internal/mocks"
	"github.com/lanoire/lanoire-web/internal/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type seenRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []seenRequest
	status   int
	body     string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, seenRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   string(data),
	})
	status, body := f.status, f.body
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeBackend) last(t *testing.T) seenRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func (f *fakeBackend) reply(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.body = status, body
}

func newTestClient(t *testing.T, fb *fakeBackend) *Client {
	t.Helper()
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/api/v1/", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Set(ctx, domainauth.KeyAccessToken, "T1"))
	require.NoError(t, store.Set(ctx, domainauth.KeyRefreshToken, "R1"))
	require.NoError(t, store.Set(ctx, domainauth.KeyUser, `{"id":1,"roles":[]}`))
	return store
}

func TestNew_ValidatesBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		wantErr bool
	}{
		{name: "empty", base: "  ", wantErr: true},
		{name: "bad scheme", base: "ftp://files.example.com", wantErr: true},
		{name: "http", base: "http://localhost:8000/api/v1"},
		{name: "https trailing slash", base: "https://api.example.com/api/v1/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{BaseURL: tt.base})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestClient_URLJoinsWithSingleSlashes(t *testing.T) {
	c, err := New(Config{BaseURL: "https://api.example.com/api/v1/"})
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/api/v1/auth/sessions/", c.URL("auth/sessions/"))
	assert.Equal(t, "https://api.example.com/api/v1/auth/sessions/", c.URL("/auth/sessions/"))
	assert.Equal(t, "https://api.example.com/api/v1/cases/3/", c.URL("//cases//3/"))
}

func TestCaller_AuthenticatedVerbsAttachBearer(t *testing.T) {
	fb := &fakeBackend{body: `{"status":"success","data":{"ok":true}}`}
	api := newTestClient(t, fb).WithSession(seededStore(t))
	ctx := context.Background()

	body := map[string]any{"title": "x"}
	calls := []struct {
		method string
		run    func() (json.RawMessage, error)
	}{
		{http.MethodGet, func() (json.RawMessage, error) { return api.Get(ctx, "cases/") }},
		{http.MethodPost, func() (json.RawMessage, error) { return api.Post(ctx, "cases/", body) }},
		{http.MethodPut, func() (json.RawMessage, error) { return api.Put(ctx, "cases/1/", body) }},
		{http.MethodPatch, func() (json.RawMessage, error) { return api.Patch(ctx, "cases/1/", body) }},
		{http.MethodDelete, func() (json.RawMessage, error) { return api.Delete(ctx, "cases/1/") }},
	}

	for _, tc := range calls {
		t.Run(tc.method, func(t *testing.T) {
			_, err := tc.run()
			require.NoError(t, err)
			req := fb.last(t)
			assert.Equal(t, tc.method, req.Method)
			assert.Equal(t, "Bearer T1", req.Header.Get("Authorization"))
			assert.Equal(t, "application/json", req.Header.Get("Accept"))
		})
	}
}

func TestCaller_BodyVerbsSetContentType(t *testing.T) {
	fb := &fakeBackend{body: `{"status":"success","data":null}`}
	api := newTestClient(t, fb).WithSession(memory.NewStore())
	ctx := context.Background()

	_, err := api.Post(ctx, "complaints/", map[string]string{"title": "Stolen car"})
	require.NoError(t, err)
	req := fb.last(t)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"title":"Stolen car"}`, req.Body)
	assert.Empty(t, req.Header.Get("Authorization"), "no credential stored")

	_, err = api.Get(ctx, "complaints/")
	require.NoError(t, err)
	req = fb.last(t)
	assert.Empty(t, req.Header.Get("Content-Type"))
	assert.Empty(t, req.Body)
}

func TestCaller_NilBodySendsNothing(t *testing.T) {
	fb := &fakeBackend{body: `{"status":"success"}`}
	api := newTestClient(t, fb).WithSession(memory.NewStore())

	_, err := api.Post(context.Background(), "auth/sessions/current/", nil)
	require.NoError(t, err)
	assert.Empty(t, fb.last(t).Body)
}

func TestCaller_PublicVerbsNeverSendCredential(t *testing.T) {
	fb := &fakeBackend{body: `{"status":"success","data":[]}`}
	api := newTestClient(t, fb).WithSession(seededStore(t))
	ctx := context.Background()

	_, err := api.GetPublic(ctx, "rewards/lookup/")
	require.NoError(t, err)
	assert.Empty(t, fb.last(t).Header.Get("Authorization"))

	_, err = api.PostPublic(ctx, "auth/sessions/", map[string]string{"identifier": "cole"})
	require.NoError(t, err)
	req := fb.last(t)
	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestCaller_JoinsPathAndQuery(t *testing.T) {
	fb := &fakeBackend{body: `{"status":"success","data":[]}`}
	api := newTestClient(t, fb).WithSession(memory.NewStore())

	_, err := api.Get(context.Background(), "/investigation/notifications/?page=2&page_size=20")
	require.NoError(t, err)
	req := fb.last(t)
	assert.Equal(t, "/api/v1/investigation/notifications/", req.Path)
	assert.Equal(t, "page=2&page_size=20", req.Query)
}

func TestCaller_ForwardsRequestID(t *testing.T) {
	fb := &fakeBackend{body: `{"status":"success","data":null}`}
	api := newTestClient(t, fb).WithSession(memory.NewStore())

	ctx := requestid.NewContext(context.Background(), "req-42")
	_, err := api.Get(ctx, "cases/")
	require.NoError(t, err)
	assert.Equal(t, "req-42", fb.last(t).Header.Get(requestid.Header))
}

func TestCaller_SuccessReturnsDataExactly(t *testing.T) {
	fb := &fakeBackend{}
	api := newTestClient(t, fb).WithSession(memory.NewStore())

	for _, data := range []string{`null`, `[]`, `{}`, `{"id":9}`} {
		fb.reply(http.StatusOK, `{"status":"success","data":`+data+`}`)
		got, err := api.Get(context.Background(), "x/")
		require.NoError(t, err)
		assert.JSONEq(t, data, string(got))
	}
}

func TestCaller_Passthrough(t *testing.T) {
	fb := &fakeBackend{body: `{"count":2,"results":[{"id":1},{"id":2}]}`}
	api := newTestClient(t, fb).WithSession(memory.NewStore())

	got, err := api.Get(context.Background(), "cases/")
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":2,"results":[{"id":1},{"id":2}]}`, string(got))
}

func TestCaller_UnauthorizedClearsSessionOnce(t *testing.T) {
	bodies := map[string]string{
		"empty":      ``,
		"envelope":   `{"status":"error","message":"Token expired"}`,
		"not json":   `<html>401</html>`,
		"plain list": `[]`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := mocks.NewMockSessionStore(ctrl)
			store.EXPECT().Get(gomock.Any(), domainauth.KeyAccessToken).Return("T1", nil)
			store.EXPECT().Clear(gomock.Any()).Return(nil).Times(1)

			fb := &fakeBackend{status: http.StatusUnauthorized, body: body}
			api := newTestClient(t, fb).WithSession(store)

			_, err := api.Get(context.Background(), "auth/profile/")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnauthorized))
			assert.False(t, errors.Is(err, ErrRequestFailed))
			assert.Equal(t, 401, StatusOf(err))
		})
	}
}

func TestCaller_UnauthorizedMessage(t *testing.T) {
	fb := &fakeBackend{status: http.StatusUnauthorized, body: `{"detail":"Given token not valid"}`}
	api := newTestClient(t, fb).WithSession(seededStore(t))

	_, err := api.Get(context.Background(), "auth/profile/")
	require.Error(t, err)
	assert.Equal(t, "detail: Given token not valid", err.Error())

	fb.reply(http.StatusUnauthorized, ``)
	_, err = api.Get(context.Background(), "auth/profile/")
	require.Error(t, err)
	assert.Equal(t, "Unauthorized", err.Error())
}

func TestCaller_UnauthorizedEmptiesRealStore(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	fb := &fakeBackend{status: http.StatusUnauthorized}
	api := newTestClient(t, fb).WithSession(store)

	_, err := api.Get(ctx, "cases/")
	require.ErrorIs(t, err, ErrUnauthorized)
	for _, key := range domainauth.StorageKeys() {
		v, getErr := store.Get(ctx, key)
		require.NoError(t, getErr)
		assert.Empty(t, v, key)
	}

	// A second 401 leaves the store in the same empty state.
	_, err = api.Get(ctx, "cases/")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, fb.last(t).Header.Get("Authorization"))
}

func TestCaller_UnauthorizedOnPublicVerbAlsoClears(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSessionStore(ctrl)
	store.EXPECT().Clear(gomock.Any()).Return(nil).Times(1)

	fb := &fakeBackend{status: http.StatusUnauthorized, body: `{"message":"Invalid credentials"}`}
	api := newTestClient(t, fb).WithSession(store)

	_, err := api.PostPublic(context.Background(), "auth/sessions/", map[string]string{"identifier": "x"})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Invalid credentials", err.Error())
}

func TestCaller_UnauthorizedReportsClearFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSessionStore(ctrl)
	clearErr := errors.New("redis down")
	store.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", nil)
	store.EXPECT().Clear(gomock.Any()).Return(clearErr)

	fb := &fakeBackend{status: http.StatusUnauthorized}
	api := newTestClient(t, fb).WithSession(store)

	_, err := api.Get(context.Background(), "cases/")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, clearErr)
}

func TestCaller_RequestFailed(t *testing.T) {
	fb := &fakeBackend{
		status: http.StatusBadRequest,
		body:   `{"status":"error","errors":{"email":["Invalid"],"password":["Too short","Required"]}}`,
	}
	api := newTestClient(t, fb).WithSession(memory.NewStore())

	_, err := api.PostPublic(context.Background(), "auth/registrations/", map[string]string{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))

	var rf *RequestFailedError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, http.StatusBadRequest, rf.Status)
	assert.Equal(t, "email: Invalid; password: Too short, Required", rf.Message)
	body, ok := rf.Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "error", body["status"])
}

func TestCaller_StatusTextFallback(t *testing.T) {
	fb := &fakeBackend{status: http.StatusServiceUnavailable, body: `{}`}
	api := newTestClient(t, fb).WithSession(memory.NewStore())

	_, err := api.Get(context.Background(), "stats/")
	require.Error(t, err)
	assert.Equal(t, "Service Unavailable", err.Error())
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(err))
}

func TestCaller_MalformedResponse(t *testing.T) {
	fb := &fakeBackend{status: http.StatusBadGateway, body: `<html>bad gateway</html>`}
	api := newTestClient(t, fb).WithSession(memory.NewStore())

	_, err := api.Get(context.Background(), "cases/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
	assert.Equal(t, "Bad Gateway", err.Error())
}

func TestCaller_NetworkErrorIsNotClassified(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: base, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.WithSession(memory.NewStore()).Get(context.Background(), "cases/")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnauthorized))
	assert.False(t, errors.Is(err, ErrRequestFailed))
	assert.False(t, errors.Is(err, ErrMalformedResponse))
	assert.Equal(t, 0, StatusOf(err))
}

type recordingSink struct {
	mu     sync.Mutex
	counts []map[string]string
	timed  int
}

func (r *recordingSink) Count(_ string, _ int64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = append(r.counts, tags)
}

func (r *recordingSink) Timing(string, time.Duration, map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timed++
}

func TestCaller_EmitsMetrics(t *testing.T) {
	fb := &fakeBackend{status: http.StatusCreated, body: `{"status":"success","data":{"id":3}}`}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	sink := &recordingSink{}
	c, err := New(Config{BaseURL: srv.URL, Metrics: sink})
	require.NoError(t, err)

	_, err = c.WithSession(memory.NewStore()).Post(context.Background(), "complaints/", map[string]string{})
	require.NoError(t, err)

	require.Len(t, sink.counts, 1)
	assert.Equal(t, map[string]string{"method": "POST", "status": "201"}, sink.counts[0])
	assert.Equal(t, 1, sink.timed)
}

func TestCaller_CountsTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	sink := &recordingSink{}
	c, err := New(Config{BaseURL: base, Timeout: time.Second, Metrics: sink})
	require.NoError(t, err)

	_, err = c.WithSession(memory.NewStore()).Get(context.Background(), "cases/")
	require.Error(t, err)

	require.Len(t, sink.counts, 2)
	assert.Equal(t, map[string]string{"method": "GET", "status": "0"}, sink.counts[0])
	assert.Equal(t, "GET", sink.counts[1]["method"])
	assert.Equal(t, "connection_refused", sink.counts[1]["error"])
}

func TestLoginScenario_PersistThenAuthenticate(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{
		body: `{"status":"success","data":{"tokens":{"access":"T1","refresh":"R1"},"user":{"id":1,"roles":[]}}}`,
	}
	store := memory.NewStore()
	api := newTestClient(t, fb).WithSession(store)

	payload, err := api.PostPublic(ctx, "auth/sessions/", map[string]string{"identifier": "cole", "password": "pw"})
	require.NoError(t, err)

	type loginData struct {
		Tokens domainauth.Tokens `json:"tokens"`
		User   json.RawMessage   `json:"user"`
	}
	data, err := Decode[loginData](payload)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, domainauth.KeyAccessToken, data.Tokens.Access))
	require.NoError(t, store.Set(ctx, domainauth.KeyRefreshToken, data.Tokens.Refresh))
	require.NoError(t, store.Set(ctx, domainauth.KeyUser, string(data.User)))

	access, _ := store.Get(ctx, domainauth.KeyAccessToken)
	refresh, _ := store.Get(ctx, domainauth.KeyRefreshToken)
	rawUser, _ := store.Get(ctx, domainauth.KeyUser)
	assert.Equal(t, "T1", access)
	assert.Equal(t, "R1", refresh)
	identity, ok := domainauth.ParseIdentity(rawUser)
	require.True(t, ok)
	assert.Equal(t, int64(1), identity.ID)

	fb.reply(http.StatusOK, `{"status":"success","data":[]}`)
	_, err = api.Get(ctx, "cases/")
	require.NoError(t, err)
	assert.Equal(t, "Bearer T1", fb.last(t).Header.Get("Authorization"))
}
