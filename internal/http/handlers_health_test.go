package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealth(t *testing.T) {
	t.Run("no checks", func(t *testing.T) {
		rec := httptest.NewRecorder()
		(&HealthHandlers{}).Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("head", func(t *testing.T) {
		rec := httptest.NewRecorder()
		(&HealthHandlers{}).Health(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("failing check", func(t *testing.T) {
		h := &HealthHandlers{Checks: map[string]HealthCheck{
			"redis":   func(context.Context) error { return errors.New("connection refused") },
			"backend": func(context.Context) error { return nil },
		}}
		rec := httptest.NewRecorder()
		h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"unavailable","checks":{"redis":"connection refused"}}`, rec.Body.String())
	})
}
