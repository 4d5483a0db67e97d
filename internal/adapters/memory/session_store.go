// Package memory provides in-process adapters for development and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	domainauth "github.com/lanoire/lanoire-web/internal/domain/auth"
	"github.com/lanoire/lanoire-web/internal/ports"
)

// ErrEmptySessionID is returned when writing to a store with no session ID.
var ErrEmptySessionID = errors.New("session ID cannot be empty")

// SessionBackend keeps every browser's session entries in a map.
// Entries never expire; use the Redis backend outside development.
type SessionBackend struct {
	mu       sync.RWMutex
	sessions map[string]map[domainauth.StorageKey]string
}

var _ ports.SessionBackend = (*SessionBackend)(nil)

// NewSessionBackend creates an empty backend.
func NewSessionBackend() *SessionBackend {
	return &SessionBackend{sessions: make(map[string]map[domainauth.StorageKey]string)}
}

// Scope returns the store for one session ID.
//
//nolint:ireturn // satisfies ports.SessionBackend.
func (b *SessionBackend) Scope(sessionID string) ports.SessionStore {
	return &Store{backend: b, id: sessionID}
}

// Len reports how many browser sessions hold at least one entry.
func (b *SessionBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// Store is one browser's view of a SessionBackend.
type Store struct {
	backend *SessionBackend
	id      string
}

var _ ports.SessionStore = (*Store)(nil)

// NewStore returns a standalone store, handy for tests and single-user tools.
func NewStore() *Store {
	return &Store{backend: NewSessionBackend(), id: "local"}
}

func (s *Store) Get(_ context.Context, key domainauth.StorageKey) (string, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	return s.backend.sessions[s.id][key], nil
}

func (s *Store) Set(_ context.Context, key domainauth.StorageKey, value string) error {
	if s.id == "" {
		return ErrEmptySessionID
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	entries, ok := s.backend.sessions[s.id]
	if !ok {
		entries = make(map[domainauth.StorageKey]string, len(domainauth.StorageKeys()))
		s.backend.sessions[s.id] = entries
	}
	entries[key] = value
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	delete(s.backend.sessions, s.id)
	return nil
}
