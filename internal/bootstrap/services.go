package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lanoire/lanoire-web/config"
	"github.com/lanoire/lanoire-web/internal/adapters/backend"
	"github.com/lanoire/lanoire-web/internal/adapters/memory"
	redisadapter "github.com/lanoire/lanoire-web/internal/adapters/redis"
	"github.com/lanoire/lanoire-web/internal/observability/statsd"
	"github.com/lanoire/lanoire-web/internal/ports"
	"github.com/lanoire/lanoire-web/internal/service"
	"github.com/redis/go-redis/v9"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Transport     *backend.Client
	Sessions      ports.SessionBackend
	Auth          *service.AuthService
	Notifications *service.NotificationService
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	// RedisClient is required when the session store is redis.
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
	Now         func() time.Time
}

// buildObservability configures the metrics sink. A sink that cannot be
// dialled is logged and left out.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obs := ObservabilityContainer{MetricsConfig: cfg.Metrics}
	if !cfg.Metrics.IsEnabled() {
		return obs
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  cfg.Metrics.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return obs
	}
	obs.MetricsSink = client
	return obs
}

// newSessionBackend picks the session store named by cfg.
//
//nolint:ireturn // the HTTP layer only depends on the port.
func newSessionBackend(cfg config.SessionConfig, client redis.UniversalClient) (ports.SessionBackend, error) {
	switch cfg.Store {
	case config.SessionStoreMemory:
		return memory.NewSessionBackend(), nil
	case config.SessionStoreRedis, "":
		if client == nil {
			return nil, errors.New("redis session store requires a redis client")
		}
		return redisadapter.NewSessionBackend(redisadapter.SessionBackendOptions{
			Client: client,
			Prefix: cfg.KeyPrefix,
			TTL:    cfg.TTL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

// NewServices wires the backend client, session store, and services.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	obs := buildObservability(logger, cfg.Observability)

	var metrics statsd.Sink
	if obs.MetricsSink != nil {
		metrics = obs.MetricsSink
	}
	client, err := backend.New(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create backend client: %w", err)
	}

	sessions, err := newSessionBackend(cfg.Session, deps.RedisClient)
	if err != nil {
		return ServiceContainer{}, err
	}

	notifications, err := service.NewNotificationService(service.NotificationServiceOptions{
		ListExpr: cfg.Notifications.ListExpr,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create notification service: %w", err)
	}

	return ServiceContainer{
		Transport: client,
		Sessions:  sessions,
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Transport:  client,
			SessionTTL: cfg.Session.TTL,
			Now:        deps.Now,
			Logger:     logger,
		}),
		Notifications: notifications,
		Observability: obs,
	}, nil
}
