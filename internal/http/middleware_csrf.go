package httpx

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

const (
	// DefaultCSRFCookieName is the default name for the CSRF cookie and form field.
	DefaultCSRFCookieName = "csrf_token"
	// DefaultCSRFHeaderName is the header htmx sends the token in.
	DefaultCSRFHeaderName = "X-Csrf-Token"
	csrfTokenBytes        = 32
	csrfCookieMaxAge      = 12 * 60 * 60
)

// CSRFConfig holds configuration for CSRFProtection.
type CSRFConfig struct {
	CookieName   string
	HeaderName   string
	CookieDomain string
}

type csrfKey struct{}

// CSRFTokenFromContext returns the token forms must echo back.
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfKey{}).(string)
	return token
}

// CSRFProtection guards state-changing requests with a double-submit cookie.
// The token is accepted from the header or, for form posts, the csrf_token field.
func CSRFProtection(cfg CSRFConfig) func(http.Handler) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCSRFCookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultCSRFHeaderName
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(cfg.CookieName); err == nil {
				token = c.Value
			}
			if token == "" {
				var err error
				if token, err = newCSRFToken(); err != nil {
					http.Error(w, "unable to generate CSRF token", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:   cfg.CookieName,
					Value:  token,
					Path:   "/",
					Domain: cfg.CookieDomain,
					// htmx reads it to fill the header.
					HttpOnly: false,
					Secure:   isSecureRequest(r),
					SameSite: http.SameSiteStrictMode,
					MaxAge:   csrfCookieMaxAge,
				})
				// A freshly minted token cannot match anything the client sent.
				if unsafeMethod(r.Method) {
					http.Error(w, "CSRF token validation failed", http.StatusForbidden)
					return
				}
			}

			r = r.WithContext(context.WithValue(r.Context(), csrfKey{}, token))
			if unsafeMethod(r.Method) && !csrfTokenMatches(r, token, cfg) {
				http.Error(w, "CSRF token validation failed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unsafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

func newCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("csrf token generation failed: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func csrfTokenMatches(r *http.Request, cookieToken string, cfg CSRFConfig) bool {
	sent := r.Header.Get(cfg.HeaderName)
	if sent == "" {
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data") {
			if err := r.ParseForm(); err != nil {
				return false
			}
			sent = r.PostFormValue(cfg.CookieName)
		}
	}
	return sent != "" && subtle.ConstantTimeCompare([]byte(sent), []byte(cookieToken)) == 1
}
