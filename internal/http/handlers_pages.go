package httpx

import (
	"errors"
	"net/http"

	"github.com/lanoire/lanoire-web/internal/adapters/backend"
	"github.com/lanoire/lanoire-web/internal/domain/navigation"
	"github.com/lanoire/lanoire-web/internal/ports"
	"github.com/lanoire/lanoire-web/internal/service"
)

const notificationsPageSize = 50

// PageHandlers serves the navigation destinations.
type PageHandlers struct {
	UIDeps
	Notifications NotificationService
	Transport     ports.Transport
}

// Home renders the public landing page.
// GET /.
func (h *PageHandlers) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, RenderParams{Page: "home", Data: h.pageData(r, h.titleFor("/", "Home"))})
}

// Destination renders the shell page of a registered destination.
func (h *PageHandlers) Destination(dest navigation.Destination) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, RenderParams{Page: "destination", Data: h.pageData(r, dest.Title)})
	}
}

// NotificationsPage lists the first page of notifications.
// GET /notifications.
func (h *PageHandlers) NotificationsPage(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	rows, err := h.Notifications.List(r.Context(), h.Transport.WithSession(sess.Store),
		service.ListInput{Page: 1, PageSize: notificationsPageSize})
	if errors.Is(err, backend.ErrUnauthorized) {
		h.signedOut(w, r)
		return
	}

	data := h.pageData(r, h.titleFor("/notifications", "Notifications"))
	if err != nil {
		h.logger().WarnContext(r.Context(), "failed to list notifications", "error", err)
		data.Error = userMessage(err, "Notifications are unavailable right now.")
	}
	data.Notifications = rows
	h.render(w, r, RenderParams{Page: "notifications", Data: data})
}

// NotFound renders the 404 page for unknown paths.
func (h *PageHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	if !IsBrowserRequest(r) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("not found")})
		return
	}
	h.renderError(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}
