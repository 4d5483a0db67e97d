package httpx

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	lanoire "github.com/lanoire/lanoire-web"
	"github.com/lanoire/lanoire-web/internal/domain/access"
	"github.com/lanoire/lanoire-web/internal/domain/navigation"
	"github.com/lanoire/lanoire-web/internal/ports"
	"github.com/lanoire/lanoire-web/internal/service"
)

const (
	templatesDir = "web/templates"
	staticDir    = "web/static"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth          AuthService
	Notifications *service.NotificationService
	Transport     ports.Transport
	Sessions      ports.SessionBackend
	// Registry defaults to navigation.Default().
	Registry     *navigation.Registry
	HealthChecks map[string]HealthCheck

	CookieName   string
	CookieDomain string
	// NotificationPageSize is the page each toast poll reads.
	NotificationPageSize int
	// TemplateFS and StaticFS override the embedded or on-disk assets.
	TemplateFS fs.FS
	StaticFS   fs.FS
	Now        func() time.Time

	IsDev  bool         // Development mode flag for hot reloading.
	Logger *slog.Logger // Logger for template and HTTP errors (optional)
}

// NewRouter creates the HTTP router with browser detection, CSRF protection,
// and session resolution applied.
func NewRouter(services RouterServices) (http.Handler, error) {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := services.Registry
	if registry == nil {
		registry = navigation.Default()
	}

	templateFS, staticFS, err := assetFS(services)
	if err != nil {
		return nil, err
	}
	renderer, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: templateFS,
		DevMode:    services.IsDev,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create template renderer: %w", err)
	}

	cookies := SessionCookies{
		Backend: services.Sessions,
		Name:    services.CookieName,
		Domain:  services.CookieDomain,
		Now:     services.Now,
	}
	gate := &Gate{Cookies: cookies}
	ui := UIDeps{Renderer: renderer, Registry: registry, Cookies: cookies, Logger: logger}

	feeds := NewToastFeeds(ToastFeedsOptions{
		Service:   services.Notifications,
		Transport: services.Transport,
		PageSize:  services.NotificationPageSize,
		Now:       services.Now,
		Logger:    logger,
	})
	authHandlers := &AuthHandlers{UIDeps: ui, Auth: services.Auth, OnSignOut: feeds.Drop}
	pageHandlers := &PageHandlers{UIDeps: ui, Notifications: services.Notifications, Transport: services.Transport}
	notificationHandlers := &NotificationHandlers{
		Service:   services.Notifications,
		Transport: services.Transport,
		Feeds:     feeds,
		Cookies:   cookies,
	}

	mux := http.NewServeMux()
	health := &HealthHandlers{Checks: services.HealthChecks}
	mux.Handle("GET /healthz", http.HandlerFunc(health.Health))
	mux.Handle("HEAD /healthz", http.HandlerFunc(health.Health))
	mux.Handle("GET /static/", staticHandler(staticFS))

	registerAuthRoutes(mux, gate, authHandlers)
	registerPageRoutes(mux, gate, registry, pageHandlers)
	registerNotificationRoutes(mux, gate, notificationHandlers)
	mux.Handle("/", http.HandlerFunc(pageHandlers.NotFound))

	var h http.Handler = mux
	h = gate.Sessions()(h)
	h = CSRFProtection(CSRFConfig{CookieDomain: services.CookieDomain})(h)
	h = BrowserDetection()(h)
	return h, nil
}

func registerAuthRoutes(mux *http.ServeMux, gate *Gate, h *AuthHandlers) {
	guest := gate.GuestOnly()
	mux.Handle("GET "+access.SignInPath, guest(http.HandlerFunc(h.LoginPage)))
	mux.Handle("POST "+access.SignInPath, guest(http.HandlerFunc(h.Login)))
	mux.Handle("GET /register", guest(http.HandlerFunc(h.RegisterPage)))
	mux.Handle("POST /register", guest(http.HandlerFunc(h.Register)))
	mux.Handle("POST /logout", http.HandlerFunc(h.Logout))

	signedIn := gate.RequireAuthenticated()
	mux.Handle("GET /profile", signedIn(http.HandlerFunc(h.Profile)))
	mux.Handle("POST /profile/refresh", signedIn(http.HandlerFunc(h.RefreshProfile)))
	mux.Handle("POST /profile/password", signedIn(http.HandlerFunc(h.ChangePassword)))
}

// pagesWithHandlers are destinations served by a dedicated handler.
var pagesWithHandlers = map[string]bool{
	"/":               true,
	access.SignInPath: true,
	"/register":       true,
	"/profile":        true,
	"/notifications":  true,
}

func registerPageRoutes(mux *http.ServeMux, gate *Gate, registry *navigation.Registry, h *PageHandlers) {
	mux.Handle("GET /{$}", http.HandlerFunc(h.Home))
	if dest, ok := registry.Lookup("/notifications"); ok {
		mux.Handle("GET /notifications", gate.Guard(dest)(http.HandlerFunc(h.NotificationsPage)))
	}
	for _, dest := range registry.All() {
		if pagesWithHandlers[dest.Path] {
			continue
		}
		mux.Handle("GET "+dest.Path, gate.Guard(dest)(h.Destination(dest)))
	}
}

func registerNotificationRoutes(mux *http.ServeMux, gate *Gate, h *NotificationHandlers) {
	signedIn := gate.RequireAuthenticated()
	mux.Handle("GET /api/notifications", signedIn(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/notifications/fresh", signedIn(http.HandlerFunc(h.Fresh)))
	mux.Handle("POST /api/notifications/{id}/read", signedIn(http.HandlerFunc(h.MarkRead)))
}

// assetFS picks the template and static filesystems: explicit overrides,
// then disk in dev mode, then the embedded copies.
func assetFS(services RouterServices) (fs.FS, fs.FS, error) {
	templateFS, staticFS := services.TemplateFS, services.StaticFS
	if services.IsDev {
		if templateFS == nil {
			templateFS = os.DirFS(templatesDir)
		}
		if staticFS == nil {
			staticFS = os.DirFS(staticDir)
		}
	}
	var err error
	if templateFS == nil {
		if templateFS, err = fs.Sub(lanoire.TemplateFS, templatesDir); err != nil {
			return nil, nil, fmt.Errorf("template sub-filesystem: %w", err)
		}
	}
	if staticFS == nil {
		if staticFS, err = fs.Sub(lanoire.StaticFS, staticDir); err != nil {
			return nil, nil, fmt.Errorf("static sub-filesystem: %w", err)
		}
	}
	return templateFS, staticFS, nil
}

func staticHandler(fsys fs.FS) http.Handler {
	files := http.StripPrefix("/static/", http.FileServerFS(fsys))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	})
}
