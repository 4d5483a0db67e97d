package config

import (
	"os"
	"strings"
	"time"
)

// BackendConfig locates the case-management REST API.
type BackendConfig struct {
	// BaseURL is the API root, e.g. "https://api.lanoire.example/api/v1".
	// VITE_API_URL is read when API_BASE_URL is unset.
	BaseURL string        `env:"API_BASE_URL"`
	Timeout time.Duration `env:"API_TIMEOUT"  envDefault:"15s"`
}

// Sanitize trims the base URL, applies the legacy fallback, and drops a trailing slash.
func (b *BackendConfig) Sanitize() {
	b.BaseURL = strings.TrimSpace(b.BaseURL)
	if b.BaseURL == "" {
		b.BaseURL = strings.TrimSpace(os.Getenv("VITE_API_URL"))
	}
	b.BaseURL = strings.TrimRight(b.BaseURL, "/")
	if b.Timeout <= 0 {
		b.Timeout = 15 * time.Second
	}
}
