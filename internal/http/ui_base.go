package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lanoire/lanoire-web/internal/adapters/backend"
	"github.com/lanoire/lanoire-web/internal/domain/access"
	domainauth "github.com/lanoire/lanoire-web/internal/domain/auth"
	"github.com/lanoire/lanoire-web/internal/domain/navigation"
	"github.com/lanoire/lanoire-web/internal/ports"
	"github.com/lanoire/lanoire-web/internal/service"
)

// AuthService is the account flow surface the handlers need.
type AuthService interface {
	Login(ctx context.Context, store ports.SessionStore, in service.LoginInput) (*service.SessionResult, error)
	Register(ctx context.Context, store ports.SessionStore, in service.RegisterInput) (*service.SessionResult, error)
	Logout(ctx context.Context, store ports.SessionStore) error
	RefreshProfile(ctx context.Context, sessionID string, store ports.SessionStore) (*domainauth.Identity, error)
	ChangePassword(ctx context.Context, store ports.SessionStore, in service.ChangePasswordInput) error
}

// NotificationService is the notification surface the handlers need.
type NotificationService interface {
	List(ctx context.Context, api ports.API, in service.ListInput) ([]service.Notification, error)
	MarkRead(ctx context.Context, api ports.API, id string) error
}

// Compile-time interface assertions to ensure concrete services satisfy their UI interfaces.
var (
	_ AuthService         = (*service.AuthService)(nil)
	_ NotificationService = (*service.NotificationService)(nil)
)

// UIDeps groups what every HTML handler needs.
type UIDeps struct {
	Renderer *TemplateRenderer
	Registry *navigation.Registry
	Cookies  SessionCookies
	Logger   *slog.Logger
}

func (d UIDeps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// pageData builds the shared view model for title.
func (d UIDeps) pageData(r *http.Request, title string) PageData {
	return basePageData(r, d.Registry, title)
}

// titleFor returns the registered title of path, or fallback.
func (d UIDeps) titleFor(path, fallback string) string {
	if d.Registry != nil {
		if dest, ok := d.Registry.Lookup(path); ok && dest.Title != "" {
			return dest.Title
		}
	}
	return fallback
}

func (d UIDeps) render(w http.ResponseWriter, r *http.Request, p RenderParams) {
	// Render logs and answers 500 on its own failures.
	_ = d.Renderer.Render(w, r, p)
}

// renderError renders the error page with status.
func (d UIDeps) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := d.pageData(r, http.StatusText(status))
	data.Error = message
	data.StatusCode = status
	d.render(w, r, RenderParams{Page: "error", Status: status, Data: data})
}

// signedOut handles a backend 401: the normalizer has already cleared the
// store, so the cookie goes too and the browser is sent to sign in.
func (d UIDeps) signedOut(w http.ResponseWriter, r *http.Request) {
	d.Cookies.Clear(w, r)
	redirectToSignIn(w, r)
}

// reloadSession refreshes the context session after a flow changed its store.
func reloadSession(r *http.Request) *http.Request {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		return r
	}
	fresh := *sess
	fresh.Snapshot = access.Load(r.Context(), sess.Store)
	return r.WithContext(SetSessionInContext(r.Context(), &fresh))
}

// userMessage turns a flow error into text fit for a form banner. Backend
// failures carry the normalizer's message; anything else gets fallback.
func userMessage(err error, fallback string) string {
	var (
		failed       *backend.RequestFailedError
		unauthorized *backend.UnauthorizedError
		malformed    *backend.MalformedResponseError
	)
	switch {
	case errors.As(err, &failed):
		return failed.Message
	case errors.As(err, &unauthorized):
		return unauthorized.Message
	case errors.As(err, &malformed):
		return malformed.Message
	case errors.Is(err, service.ErrCredentialsRequired):
		return "Please fill in every required field."
	case errors.Is(err, service.ErrPasswordMismatch):
		return "Passwords do not match."
	default:
		return fallback
	}
}

// formErrorStatus picks the status of a re-rendered form.
func formErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrCredentialsRequired), errors.Is(err, service.ErrPasswordMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized
	}
	if status := backend.StatusOf(err); status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		return status
	}
	return http.StatusBadGateway
}
