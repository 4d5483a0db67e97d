package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/lanoire/lanoire-web/config"
	httpx "github.com/lanoire/lanoire-web/internal/http"
	"github.com/redis/go-redis/v9"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewHTTPServer builds the HTTP server without starting it.
func NewHTTPServer(cfg *HTTPServerConfig) (*http.Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler, err := buildHTTPHandler(httpHandlerConfig{
		Logger: logger,
		Services: httpx.RouterServices{
			Auth:                 cfg.Services.Auth,
			Notifications:        cfg.Services.Notifications,
			Transport:            cfg.Services.Transport,
			Sessions:             cfg.Services.Sessions,
			HealthChecks:         healthChecks(cfg.RedisClient),
			CookieName:           appCfg.Session.CookieName,
			CookieDomain:         appCfg.HTTP.CookieDomain,
			NotificationPageSize: appCfg.Notifications.PageSize,
			IsDev:                appCfg.IsDev,
			Logger:               logger,
		},
	})
	if err != nil {
		return nil, err
	}

	addr := appCfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}, nil
}

type httpHandlerConfig struct {
	Logger   *slog.Logger
	Services httpx.RouterServices
}

// buildHTTPHandler wraps the router.
// Order: Recover -> Logging -> RequestID -> Router.
func buildHTTPHandler(cfg httpHandlerConfig) (http.Handler, error) {
	h, err := httpx.NewRouter(cfg.Services)
	if err != nil {
		return nil, err
	}
	h = httpx.RequestID()(h)
	h = httpx.Logging(cfg.Logger)(h)
	h = httpx.Recover(cfg.Logger)(h)
	return h, nil
}

// healthChecks probes the dependencies the server cannot work without.
func healthChecks(client redis.UniversalClient) map[string]httpx.HealthCheck {
	if client == nil {
		return nil
	}
	return map[string]httpx.HealthCheck{
		"redis": func(ctx context.Context) error { return client.Ping(ctx).Err() },
	}
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(cfg.Context, timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}
	return nil
}
