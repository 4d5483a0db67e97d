package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lanoire/lanoire-web/internal/adapters/backend"
	domainauth "github.com/lanoire/lanoire-web/internal/domain/auth"
	"github.com/lanoire/lanoire-web/internal/ports"
	"golang.org/x/sync/singleflight"
)

// Backend resource paths for the account flows.
const (
	PathSessions       = "auth/sessions/"
	PathCurrentSession = "auth/sessions/current/"
	PathRegistrations  = "auth/registrations/"
	PathProfile        = "auth/profile/"
	PathChangePassword = "auth/password/"
)

const (
	defaultSessionTTL = 24 * time.Hour
	logoutTimeout     = 5 * time.Second
)

var (
	// ErrMissingTokens is returned when a sign-in succeeds without an access credential.
	ErrMissingTokens = errors.New("authentication response did not include an access token")
	// ErrCredentialsRequired is returned when the identifier or password is blank.
	ErrCredentialsRequired = errors.New("identifier and password are required")
	// ErrPasswordMismatch is returned when a confirmation does not match its password.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrInvalidIdentity is returned when the backend sends an unusable identity snapshot.
	ErrInvalidIdentity = errors.New("backend returned an invalid user profile")
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Transport ports.Transport
	// SessionTTL is used when no credential carries an expiry.
	SessionTTL time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

// AuthService runs the account flows against the backend and keeps a browser
// context's session store in step with them.
type AuthService struct {
	transport ports.Transport
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger
	profiles  singleflight.Group
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{transport: opts.Transport, ttl: ttl, now: now, logger: logger}
}

// LoginInput is the sign-in form.
type LoginInput struct {
	// Identifier is a username, email, phone number, or national ID.
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// RegisterInput is the self-registration form.
type RegisterInput struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phone_number"`
	NationalID      string `json:"national_id"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// ChangePasswordInput is the password change form.
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	// ConfirmPassword is checked locally and never sent.
	ConfirmPassword string `json:"-"`
}

// SessionResult describes a freshly persisted session.
type SessionResult struct {
	Identity  domainauth.Identity
	ExpiresAt time.Time
}

type authPayload struct {
	Tokens domainauth.Tokens `json:"tokens"`
	User   json.RawMessage   `json:"user"`
}

// Login signs in with a public request and persists the issued session.
func (s *AuthService) Login(ctx context.Context, store ports.SessionStore, in LoginInput) (*SessionResult, error) {
	in.Identifier = strings.TrimSpace(in.Identifier)
	if in.Identifier == "" || in.Password == "" {
		return nil, ErrCredentialsRequired
	}

	api := s.transport.WithSession(store)
	payload, err := api.PostPublic(ctx, PathSessions, in)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return s.establish(ctx, store, api, payload)
}

// Register creates an account and persists the session the backend issues for it.
func (s *AuthService) Register(ctx context.Context, store ports.SessionStore, in RegisterInput) (*SessionResult, error) {
	if in.PasswordConfirm != "" && in.Password != in.PasswordConfirm {
		return nil, ErrPasswordMismatch
	}

	api := s.transport.WithSession(store)
	payload, err := api.PostPublic(ctx, PathRegistrations, in)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return s.establish(ctx, store, api, payload)
}

// establish replaces every session entry with the issued credentials and
// identity. When the payload carries no user the profile is fetched so the
// session is never left half written.
func (s *AuthService) establish(
	ctx context.Context,
	store ports.SessionStore,
	api ports.API,
	payload json.RawMessage,
) (*SessionResult, error) {
	data, err := backend.Decode[authPayload](payload)
	if err != nil {
		return nil, err
	}
	if data.Tokens.Access == "" {
		return nil, ErrMissingTokens
	}

	if err := store.Set(ctx, domainauth.KeyAccessToken, data.Tokens.Access); err != nil {
		return nil, fmt.Errorf("persist access token: %w", err)
	}
	if err := store.Set(ctx, domainauth.KeyRefreshToken, data.Tokens.Refresh); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	rawUser := data.User
	if len(bytes.TrimSpace(rawUser)) == 0 || string(bytes.TrimSpace(rawUser)) == "null" {
		rawUser, err = api.Get(ctx, PathProfile)
		if err != nil {
			return nil, s.abandon(ctx, store, fmt.Errorf("load profile: %w", err))
		}
	}
	identity, err := s.writeIdentity(ctx, store, rawUser)
	if err != nil {
		return nil, s.abandon(ctx, store, err)
	}

	return &SessionResult{Identity: *identity, ExpiresAt: s.expiry(data.Tokens)}, nil
}

// abandon clears a session that could not be completed.
func (s *AuthService) abandon(ctx context.Context, store ports.SessionStore, cause error) error {
	if err := store.Clear(ctx); err != nil {
		return errors.Join(cause, fmt.Errorf("clear partial session: %w", err))
	}
	return cause
}

func (s *AuthService) writeIdentity(
	ctx context.Context,
	store ports.SessionStore,
	raw json.RawMessage,
) (*domainauth.Identity, error) {
	identity, ok := domainauth.ParseIdentity(string(raw))
	if !ok {
		return nil, ErrInvalidIdentity
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, ErrInvalidIdentity
	}
	if err := store.Set(ctx, domainauth.KeyUser, compact.String()); err != nil {
		return nil, fmt.Errorf("persist identity: %w", err)
	}
	return identity, nil
}

// expiry reads the exp claim of the refresh credential, then the access
// credential. Signatures are not checked.
func (s *AuthService) expiry(tokens domainauth.Tokens) time.Time {
	for _, raw := range []string{tokens.Refresh, tokens.Access} {
		if exp, ok := tokenExpiry(raw); ok {
			return exp
		}
	}
	return s.now().Add(s.ttl)
}

func tokenExpiry(raw string) (time.Time, bool) {
	if strings.Count(raw, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Logout tells the backend the session is over, then clears the store no
// matter how the backend answered.
func (s *AuthService) Logout(ctx context.Context, store ports.SessionStore) error {
	token, err := store.Get(ctx, domainauth.KeyAccessToken)
	if err == nil && token != "" {
		callCtx, cancel := context.WithTimeout(ctx, logoutTimeout)
		if _, postErr := s.transport.WithSession(store).Post(callCtx, PathCurrentSession, map[string]any{}); postErr != nil {
			s.logger.DebugContext(ctx, "backend sign-out failed", "error", postErr)
		}
		cancel()
	}

	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// RefreshProfile reloads the identity snapshot from the backend and replaces
// the stored one. Concurrent refreshes for the same sessionID share one call.
func (s *AuthService) RefreshProfile(
	ctx context.Context,
	sessionID string,
	store ports.SessionStore,
) (*domainauth.Identity, error) {
	v, err, _ := s.profiles.Do(sessionID, func() (any, error) {
		payload, err := s.transport.WithSession(store).Get(ctx, PathProfile)
		if err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		return s.writeIdentity(ctx, store, payload)
	})
	if err != nil {
		return nil, err
	}
	identity, ok := v.(*domainauth.Identity)
	if !ok {
		return nil, ErrInvalidIdentity
	}
	return identity, nil
}

// ChangePassword asks the backend to replace the signed-in user's password.
func (s *AuthService) ChangePassword(ctx context.Context, store ports.SessionStore, in ChangePasswordInput) error {
	if in.CurrentPassword == "" || in.NewPassword == "" {
		return ErrCredentialsRequired
	}
	if in.ConfirmPassword != "" && in.NewPassword != in.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if _, err := s.transport.WithSession(store).Post(ctx, PathChangePassword, in); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}
