package backend

import (
	"encoding/json"
	"errors"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrMalformedResponse = errors.New("malformed response")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRequestFailed     = errors.New("request failed")
)

const malformedFallback = "Invalid response from server"

// MalformedResponseError is returned when the response body is not JSON.
type MalformedResponseError struct {
	Status  int
	Message string
}

func (e *MalformedResponseError) Error() string { return e.Message }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// UnauthorizedError is returned for HTTP 401. By the time the caller sees it the
// session entries have been cleared; ClearErr records a failed clear.
type UnauthorizedError struct {
	Message  string
	ClearErr error
}

func (e *UnauthorizedError) Error() string { return e.Message }

func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

func (e *UnauthorizedError) Unwrap() error { return e.ClearErr }

// RequestFailedError is any other non-success outcome.
type RequestFailedError struct {
	Status  int
	Message string
	// Body is the decoded response body (map, slice, or scalar).
	Body any
	// Raw is the response body text as received.
	Raw json.RawMessage
}

func (e *RequestFailedError) Error() string { return e.Message }

func (e *RequestFailedError) Is(target error) bool { return target == ErrRequestFailed }

// StatusOf returns the HTTP status carried by a normalizer error, or 0.
func StatusOf(err error) int {
	var rf *RequestFailedError
	if errors.As(err, &rf) {
		return rf.Status
	}
	if errors.Is(err, ErrUnauthorized) {
		return 401
	}
	var mr *MalformedResponseError
	if errors.As(err, &mr) {
		return mr.Status
	}
	return 0
}
