package httpx

import (
	"errors"
	"net/http"

	"github.com/lanoire/lanoire-web/internal/adapters/backend"
	"github.com/lanoire/lanoire-web/internal/domain/access"
	"github.com/lanoire/lanoire-web/internal/service"
)

const (
	loginFailedMessage    = "Login failed. Please try again."
	registerFailedMessage = "Registration failed. Please try again."
	refreshFailedMessage  = "Could not reload your profile. Please try again."
	passwordFailedMessage = "Could not change your password. Please try again."
)

// AuthHandlers serves the account pages.
type AuthHandlers struct {
	UIDeps
	Auth AuthService
	// OnSignOut is told when a browser session ends.
	OnSignOut func(sessionID string)
}

// LoginPage renders the sign-in form.
// GET /login.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r, h.titleFor(access.SignInPath, "Sign in"))
	data.RedirectURI = r.URL.Query().Get(redirectParam)
	h.render(w, r, RenderParams{Page: "login", Data: data})
}

// Login signs in and starts a new browser session.
// POST /login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	in := service.LoginInput{
		Identifier: r.PostFormValue("identifier"),
		Password:   r.PostFormValue("password"),
	}
	returnTo := r.PostFormValue(redirectParam)

	sid, store := h.Cookies.Rotate()
	res, err := h.Auth.Login(r.Context(), store, in)
	if err != nil {
		h.logger().InfoContext(r.Context(), "sign in failed", "error", err)
		data := h.pageData(r, h.titleFor(access.SignInPath, "Sign in"))
		data.Error = userMessage(err, loginFailedMessage)
		data.Form = map[string]string{"identifier": in.Identifier}
		data.RedirectURI = returnTo
		h.render(w, r, RenderParams{Page: "login", Status: formErrorStatus(err), Data: data})
		return
	}

	h.retire(r)
	h.Cookies.Issue(w, r, sid, res.ExpiresAt)
	h.logger().InfoContext(r.Context(), "user signed in", "user_id", res.Identity.ID)
	redirectBrowser(w, r, postSignInPath(returnTo))
}

// RegisterPage renders the registration form.
// GET /register.
func (h *AuthHandlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, RenderParams{Page: "register", Data: h.pageData(r, h.titleFor("/register", "Register"))})
}

// Register creates an account and signs it in.
// POST /register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	in := service.RegisterInput{
		FirstName:       r.PostFormValue("first_name"),
		LastName:        r.PostFormValue("last_name"),
		Username:        r.PostFormValue("username"),
		Email:           r.PostFormValue("email"),
		PhoneNumber:     r.PostFormValue("phone_number"),
		NationalID:      r.PostFormValue("national_id"),
		Password:        r.PostFormValue("password"),
		PasswordConfirm: r.PostFormValue("password_confirm"),
	}

	sid, store := h.Cookies.Rotate()
	res, err := h.Auth.Register(r.Context(), store, in)
	if err != nil {
		h.logger().InfoContext(r.Context(), "registration failed", "error", err)
		data := h.pageData(r, h.titleFor("/register", "Register"))
		data.Error = userMessage(err, registerFailedMessage)
		data.Form = map[string]string{
			"first_name":   in.FirstName,
			"last_name":    in.LastName,
			"username":     in.Username,
			"email":        in.Email,
			"phone_number": in.PhoneNumber,
			"national_id":  in.NationalID,
		}
		h.render(w, r, RenderParams{Page: "register", Status: formErrorStatus(err), Data: data})
		return
	}

	h.retire(r)
	h.Cookies.Issue(w, r, sid, res.ExpiresAt)
	h.logger().InfoContext(r.Context(), "user registered", "user_id", res.Identity.ID)
	redirectBrowser(w, r, access.LandingPath)
}

// retire clears whatever the browser's previous cookie pointed at.
func (h *AuthHandlers) retire(r *http.Request) {
	prev, ok := SessionFromContext(r.Context())
	if !ok || prev.ID == "" {
		return
	}
	if err := prev.Store.Clear(r.Context()); err != nil {
		h.logger().WarnContext(r.Context(), "failed to clear previous session", "error", err)
	}
	h.notifySignOut(prev.ID)
}

func (h *AuthHandlers) notifySignOut(sid string) {
	if h.OnSignOut != nil && sid != "" {
		h.OnSignOut(sid)
	}
}

// Logout ends the session locally even when the backend cannot be reached.
// POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := SessionFromContext(r.Context()); ok {
		if err := h.Auth.Logout(r.Context(), sess.Store); err != nil {
			h.logger().WarnContext(r.Context(), "failed to clear session on logout", "error", err)
		}
		h.notifySignOut(sess.ID)
	}
	h.Cookies.Clear(w, r)
	redirectBrowser(w, r, access.SignInPath)
}

// Profile renders the signed-in identity.
// GET /profile.
func (h *AuthHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, RenderParams{Page: "profile", Data: h.pageData(r, h.titleFor("/profile", "Profile"))})
}

// RefreshProfile reloads the identity snapshot from the backend.
// POST /profile/refresh.
func (h *AuthHandlers) RefreshProfile(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	_, err := h.Auth.RefreshProfile(r.Context(), sess.ID, sess.Store)
	if errors.Is(err, backend.ErrUnauthorized) {
		h.notifySignOut(sess.ID)
		h.signedOut(w, r)
		return
	}

	r = reloadSession(r)
	data := h.pageData(r, h.titleFor("/profile", "Profile"))
	status := http.StatusOK
	if err != nil {
		h.logger().WarnContext(r.Context(), "profile refresh failed", "error", err)
		data.Error = userMessage(err, refreshFailedMessage)
		status = formErrorStatus(err)
	} else {
		data.Flash = "Profile updated."
	}
	h.render(w, r, RenderParams{Page: "profile", Status: status, Data: data})
}

// ChangePassword replaces the signed-in user's password.
// POST /profile/password.
func (h *AuthHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	sess, _ := SessionFromContext(r.Context())
	err := h.Auth.ChangePassword(r.Context(), sess.Store, service.ChangePasswordInput{
		CurrentPassword: r.PostFormValue("current_password"),
		NewPassword:     r.PostFormValue("new_password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	})
	if errors.Is(err, backend.ErrUnauthorized) {
		h.notifySignOut(sess.ID)
		h.signedOut(w, r)
		return
	}

	data := h.pageData(r, h.titleFor("/profile", "Profile"))
	status := http.StatusOK
	if err != nil {
		data.Error = userMessage(err, passwordFailedMessage)
		status = formErrorStatus(err)
	} else {
		data.Flash = "Password changed."
	}
	h.render(w, r, RenderParams{Page: "profile", Status: status, Data: data})
}
