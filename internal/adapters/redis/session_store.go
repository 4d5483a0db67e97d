// Package redis provides Redis-based adapters for lanoire-web.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/lanoire/lanoire-web/internal/domain/auth"
	"github.com/lanoire/lanoire-web/internal/ports"
)

const (
	defaultPrefix = "session:"
	defaultTTL    = 24 * time.Hour
)

// ErrEmptySessionID is returned when writing to a store with no session ID.
var ErrEmptySessionID = errors.New("session ID cannot be empty")

// SessionBackend keeps one Redis hash per browser session. Every write
// refreshes the hash TTL so an active browser keeps its session.
type SessionBackend struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ ports.SessionBackend = (*SessionBackend)(nil)

// SessionBackendOptions configures NewSessionBackend.
type SessionBackendOptions struct {
	Client redis.UniversalClient
	// Prefix defaults to "session:".
	Prefix string
	// TTL defaults to 24h.
	TTL time.Duration
}

// NewSessionBackend creates a Redis-backed session backend.
func NewSessionBackend(opts SessionBackendOptions) *SessionBackend {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SessionBackend{client: opts.Client, prefix: prefix, ttl: ttl}
}

// Scope returns the store for one session ID.
//
//nolint:ireturn // satisfies ports.SessionBackend.
func (b *SessionBackend) Scope(sessionID string) ports.SessionStore {
	return &SessionStore{backend: b, id: sessionID}
}

func (b *SessionBackend) key(id string) string { return b.prefix + id }

// SessionStore is one browser's view of a SessionBackend.
type SessionStore struct {
	backend *SessionBackend
	id      string
}

var _ ports.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) Get(ctx context.Context, key domainauth.StorageKey) (string, error) {
	if s.id == "" {
		return "", nil
	}
	v, err := s.backend.client.HGet(ctx, s.backend.key(s.id), string(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis hget %s: %w", key, err)
	}
	return v, nil
}

func (s *SessionStore) Set(ctx context.Context, key domainauth.StorageKey, value string) error {
	if s.id == "" {
		return ErrEmptySessionID
	}
	k := s.backend.key(s.id)
	pipe := s.backend.client.TxPipeline()
	pipe.HSet(ctx, k, string(key), value)
	pipe.Expire(ctx, k, s.backend.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

// Clear deletes the whole hash. Deleting a missing key is not an error.
func (s *SessionStore) Clear(ctx context.Context) error {
	if s.id == "" {
		return nil
	}
	if err := s.backend.client.Del(ctx, s.backend.key(s.id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// TTL reports the remaining lifetime of the session hash, or a negative
// duration when it does not exist.
func (s *SessionStore) TTL(ctx context.Context) (time.Duration, error) {
	d, err := s.backend.client.TTL(ctx, s.backend.key(s.id)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis ttl: %w", err)
	}
	return d, nil
}
