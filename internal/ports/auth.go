// Package ports defines interfaces (hexagonal ports) for session and backend access.
// Implementations live in internal/adapters; orchestration in internal/service.
package ports

import (
	"context"
	"encoding/json"

	domainauth "github.com/lanoire/lanoire-web/internal/domain/auth"
)

// SessionStore reads and writes the persisted session entries of one browser context.
// Get returns "" for entries that were never set or have been cleared.
// Clear removes every entry and is a no-op on an empty store.
type SessionStore interface {
	Get(ctx context.Context, key domainauth.StorageKey) (string, error)
	Set(ctx context.Context, key domainauth.StorageKey, value string) error
	Clear(ctx context.Context) error
}

// SessionBackend hands out SessionStores scoped to a browser session identifier.
type SessionBackend interface {
	Scope(sessionID string) SessionStore
}

// API issues normalized requests against the case-management backend.
// Authenticated verbs attach the persisted access credential; the *Public
// verbs never do. All verbs return the unwrapped success payload.
type API interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	Put(ctx context.Context, path string, body any) (json.RawMessage, error)
	Patch(ctx context.Context, path string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, path string) (json.RawMessage, error)
	GetPublic(ctx context.Context, path string) (json.RawMessage, error)
	PostPublic(ctx context.Context, path string, body any) (json.RawMessage, error)
}

// Transport binds the backend client to the session store of one browser context.
type Transport interface {
	WithSession(store SessionStore) API
}
