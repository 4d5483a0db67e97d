package config

import (
	"fmt"
	"strings"
	"time"
)

// SessionStoreKind selects where browser sessions are kept.
type SessionStoreKind string

const (
	// SessionStoreRedis keeps sessions in Redis so they survive restarts and
	// are shared between replicas.
	SessionStoreRedis SessionStoreKind = "redis"
	// SessionStoreMemory keeps sessions in process (development only).
	SessionStoreMemory SessionStoreKind = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionStoreKind.
func (k *SessionStoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "redis", "memory":
		*k = SessionStoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionStoreKind: %q (valid options: redis, memory)", v)
	}
}

// SessionConfig controls browser session storage.
type SessionConfig struct {
	Store SessionStoreKind `env:"SESSION_STORE"       envDefault:"redis"`
	// TTL bounds a session whose credentials carry no expiry.
	TTL        time.Duration `env:"SESSION_TTL"         envDefault:"24h"`
	CookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"session_id"`
	KeyPrefix  string        `env:"SESSION_KEY_PREFIX"  envDefault:"lanoire:session:"`
}

// Sanitize applies defaults to blank or non-positive values.
func (s *SessionConfig) Sanitize() {
	if s.Store == "" {
		s.Store = SessionStoreRedis
	}
	if s.TTL <= 0 {
		s.TTL = 24 * time.Hour
	}
	if s.CookieName = strings.TrimSpace(s.CookieName); s.CookieName == "" {
		s.CookieName = "session_id"
	}
	if s.KeyPrefix = strings.TrimSpace(s.KeyPrefix); s.KeyPrefix == "" {
		s.KeyPrefix = "lanoire:session:"
	}
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}
