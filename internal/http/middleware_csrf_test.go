package httpx

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csrfHandler() (http.Handler, *string) {
	var token string
	return CSRFProtection(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = CSRFTokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})), &token
}

func TestCSRFProtection_GetIssuesToken(t *testing.T) {
	h, token := csrfHandler()
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	cookie := responseCookie(rec, DefaultCSRFCookieName)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.Equal(t, cookie.Value, *token)
	assert.False(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
}

func TestCSRFProtection_ExistingCookieIsReused(t *testing.T) {
	h, token := csrfHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "known"})
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Nil(t, responseCookie(rec, DefaultCSRFCookieName))
	assert.Equal(t, "known", *token)
}

func TestCSRFProtection_Post(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
		form   string
		want   int
	}{
		{name: "no cookie", header: "known", want: http.StatusForbidden},
		{name: "no token", cookie: "known", want: http.StatusForbidden},
		{name: "header match", cookie: "known", header: "known", want: http.StatusOK},
		{name: "header mismatch", cookie: "known", header: "other", want: http.StatusForbidden},
		{name: "form match", cookie: "known", form: "known", want: http.StatusOK},
		{name: "form mismatch", cookie: "known", form: "other", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := csrfHandler()
			var req *http.Request
			if tt.form != "" {
				body := url.Values{DefaultCSRFCookieName: {tt.form}}.Encode()
				req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			} else {
				req = httptest.NewRequest(http.MethodPost, "/login", nil)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(DefaultCSRFHeaderName, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
