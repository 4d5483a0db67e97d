package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lanoire/lanoire-web/internal/adapters/backend"
)

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}

// WriteBackendError maps a normalized backend failure onto a JSON error response.
// The message is the normalizer's user-facing text.
func WriteBackendError(w http.ResponseWriter, err error) {
	WriteError(w, backendErrorParams(err))
}

func backendErrorParams(err error) ErrorParams {
	var (
		unauthorized *backend.UnauthorizedError
		failed       *backend.RequestFailedError
		malformed    *backend.MalformedResponseError
	)
	switch {
	case errors.As(err, &unauthorized):
		return ErrorParams{Code: http.StatusUnauthorized, ErrCode: "unauthorized", Err: errors.New(unauthorized.Message)}
	case errors.As(err, &failed):
		code := failed.Status
		if code < http.StatusBadRequest || code > 599 {
			code = http.StatusBadGateway
		}
		return ErrorParams{Code: code, ErrCode: "request_failed", Err: errors.New(failed.Message)}
	case errors.As(err, &malformed):
		return ErrorParams{Code: http.StatusBadGateway, ErrCode: "malformed_response", Err: errors.New(malformed.Message)}
	default:
		return ErrorParams{
			Code:    http.StatusBadGateway,
			ErrCode: "backend_unavailable",
			Err:     errors.New("case-management service unavailable"),
		}
	}
}
