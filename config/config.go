package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - backend.go: case-management API configuration
//   - session.go: session store and Redis configuration
//   - http.go: HTTP server configuration
//   - notifications.go: notification polling configuration
type AppConfig struct {
	// IsDev controls development mode behavior (template reloading, on-disk assets).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Case-management API configuration
	Backend BackendConfig

	// Session configuration
	Session SessionConfig
	Redis   RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Notification polling configuration
	Notifications NotificationsConfig

	// Observability configuration
	Observability ObservabilityConfig

	// CLI configuration
	CLI CLIConfig
}

// CLIConfig configures the command-line client.
type CLIConfig struct {
	// SessionFile is where the CLI keeps its session entries.
	// Empty means the user config directory.
	SessionFile string `env:"CLI_SESSION_FILE"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Backend.Sanitize()
	c.Session.Sanitize()
	c.HTTP.Sanitize()
	c.Notifications.Sanitize()
	c.Observability.Sanitize()
	c.CLI.SessionFile = strings.TrimSpace(c.CLI.SessionFile)

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// Validate reports settings the server cannot start with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("API_BASE_URL (or VITE_API_URL) is required"))
	}
	if err := c.HTTP.ValidateCookieDomain(); err != nil {
		errs = append(errs, err)
	}
	if c.Session.Store == SessionStoreRedis && strings.TrimSpace(c.Redis.URI) == "" &&
		len(c.Redis.ClusterNodes) == 0 && len(c.Redis.SentinelNodes) == 0 {
		errs = append(errs, fmt.Errorf("SESSION_STORE=%s needs a Redis address", c.Session.Store))
	}
	return errors.Join(errs...)
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
