package httpx

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"

	"github.com/lanoire/lanoire-web/internal/domain/access"
	"github.com/lanoire/lanoire-web/internal/ports"
	"github.com/lanoire/lanoire-web/internal/service"
)

// htmxStopPolling is the status that tells htmx to stop a polling trigger.
const htmxStopPolling = 286

const maxPageSize = 100

var toastTemplate = template.Must(template.New("toasts").Parse(
	`{{range .}}<div class="toast" role="status" data-notification="{{.ID}}">{{.Summary}}</div>{{end}}`,
))

// NotificationHandlers serves the notification JSON API.
type NotificationHandlers struct {
	Service   NotificationService
	Transport ports.Transport
	Feeds     *ToastFeeds
	Cookies   SessionCookies
}

// List returns a page of notifications.
// GET /api/notifications?page=&page_size=.
func (h *NotificationHandlers) List(w http.ResponseWriter, r *http.Request) {
	in := service.ListInput{
		Page:     positiveQueryInt(r, "page", 0),
		PageSize: positiveQueryInt(r, "page_size", 0),
	}
	if in.PageSize > maxPageSize {
		in.PageSize = maxPageSize
	}

	sess, _ := SessionFromContext(r.Context())
	rows, err := h.Service.List(r.Context(), h.Transport.WithSession(sess.Store), in)
	if err != nil {
		WriteBackendError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"results": rows})
}

// MarkRead acknowledges one notification.
// POST /api/notifications/{id}/read.
func (h *NotificationHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	err := h.Service.MarkRead(r.Context(), h.Transport.WithSession(sess.Store), r.PathValue("id"))
	if err != nil {
		WriteBackendError(w, err)
		return
	}
	SetHXTrigger(w, "notifications:read", map[string]string{"id": r.PathValue("id")})
	w.WriteHeader(http.StatusNoContent)
}

// Fresh renders toasts for notifications this browser has not been shown.
// When the session has been invalidated polling is stopped.
// GET /api/notifications/fresh.
func (h *NotificationHandlers) Fresh(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	fresh, ok := h.Feeds.Check(r.Context(), sess)
	if !ok && !access.Load(r.Context(), sess.Store).HasCredential() {
		h.Feeds.Drop(sess.ID)
		h.Cookies.Clear(w, r)
		w.WriteHeader(htmxStopPolling)
		return
	}
	if len(fresh) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var buf bytes.Buffer
	if err := toastTemplate.Execute(&buf, fresh); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func positiveQueryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
