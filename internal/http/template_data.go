package httpx

import (
	"net/http"

	domainauth "github.com/lanoire/lanoire-web/internal/domain/auth"
	"github.com/lanoire/lanoire-web/internal/domain/navigation"
	"github.com/lanoire/lanoire-web/internal/service"
)

// PageData is the view model every page template receives.
type PageData struct {
	Title     string
	Path      string
	SignedIn  bool
	Identity  *domainauth.Identity
	Menu      []navigation.Destination
	CSRFToken string

	// Error and Flash are banner messages.
	Error string
	Flash string
	// Form echoes submitted values back into a re-rendered form.
	Form        map[string]string
	RedirectURI string

	Notifications []service.Notification
	StatusCode    int
}

// basePageData fills the fields shared by every page from the request context.
func basePageData(r *http.Request, registry *navigation.Registry, title string) PageData {
	data := PageData{
		Title:     title,
		Path:      r.URL.Path,
		CSRFToken: CSRFTokenFromContext(r.Context()),
	}
	if sess, ok := SessionFromContext(r.Context()); ok {
		data.SignedIn = sess.SignedIn()
		data.Identity = sess.Snapshot.Identity
		if registry != nil {
			data.Menu = registry.Menu(sess.Snapshot)
		}
	}
	return data
}
