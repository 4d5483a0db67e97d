// Package requestid carries a per-request correlation ID through contexts so
// outbound backend calls can be tied to the browser request that caused them.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header used in both directions.
const Header = "X-Request-Id"

type ctxKey struct{}

// New returns a fresh request ID.
func New() string { return uuid.NewString() }

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request ID in ctx, or "".
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
